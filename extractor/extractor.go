// Package extractor is the top-level service: it opens a browser session
// per target entity, drives the extraction cascades (banner, logo), pulls
// profile metadata from the rendered markup, and exposes the HTTP and MCP
// surfaces.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ovrld/bannerhound/adaptive"
	"github.com/ovrld/bannerhound/browser"
	"github.com/ovrld/bannerhound/cascade"
	"github.com/ovrld/bannerhound/events"
	"github.com/ovrld/bannerhound/pattern"
	"github.com/ovrld/bannerhound/ratelimit"
	"github.com/ovrld/bannerhound/vocab"
)

// Config wires the service. Store, Provider and Limiter are shared,
// injected dependencies — one of each per process, explicit everywhere.
type Config struct {
	Store    *pattern.Store
	Provider *adaptive.Provider
	Limiter  *ratelimit.Limiter
	Events   *events.Logger // nil disables auditing
	Browser  *browser.Manager
	Vocab    *vocab.Tables

	Session browser.SessionConfig

	// Cascade timings, applied to both goals.
	ObserveWindow  time.Duration
	IdleCutoff     time.Duration
	RequestTimeout time.Duration
	MaxRetries     int

	Logger *slog.Logger
}

// Profile is the extracted company metadata.
type Profile struct {
	Entity  string `json:"entity"`
	PageURL string `json:"pageUrl"`

	BannerURL string `json:"bannerUrl,omitempty"`
	LogoURL   string `json:"logoUrl,omitempty"`

	Name                string            `json:"name,omitempty"`
	Description         string            `json:"description,omitempty"`
	DescriptionMarkdown string            `json:"descriptionMarkdown,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`

	// Banner carries the banner cascade's diagnostics; the banner is the
	// primary goal, the logo run is best-effort.
	Banner *cascade.Result `json:"banner,omitempty"`
}

// Summary is the service-level diagnostics object.
type Summary struct {
	Patterns   pattern.Summary `json:"patterns"`
	Events     *events.Summary `json:"events,omitempty"`
	Sessions   int64           `json:"sessions"`
	TrustValid bool            `json:"trustValid"`
}

// Service runs extractions. Safe for concurrent use; sessions share the
// store, provider and limiter.
type Service struct {
	cfg    Config
	banner *cascade.Runner
	logo   *cascade.Runner
	logger *slog.Logger

	mu         sync.Mutex
	sessions   int64
	trustValid bool
}

// New creates the Service and its per-goal cascade runners.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("extractor: nil pattern store")
	}
	if cfg.Vocab == nil {
		cfg.Vocab = vocab.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	newRunner := func(goal string) (*cascade.Runner, error) {
		var rec cascade.Recorder
		if cfg.Events != nil {
			rec = cfg.Events
		}
		return cascade.NewRunner(cascade.Config{
			Learner:        cfg.Store,
			Provider:       cfg.Provider,
			Limiter:        cfg.Limiter,
			Recorder:       rec,
			Vocab:          cfg.Vocab,
			Goal:           goal,
			ObserveWindow:  cfg.ObserveWindow,
			IdleCutoff:     cfg.IdleCutoff,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			Logger:         cfg.Logger,
		})
	}

	bannerRunner, err := newRunner("banner")
	if err != nil {
		return nil, err
	}
	logoRunner, err := newRunner("logo")
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		banner:     bannerRunner,
		logo:       logoRunner,
		logger:     cfg.Logger,
		trustValid: true,
	}, nil
}

// Extract opens one browser session on pageURL and runs the cascades.
// Exhaustion is not an error: the returned profile simply has no banner
// URL. The error path is reserved for session setup failure.
func (s *Service) Extract(ctx context.Context, pageURL string) (*Profile, error) {
	entity, err := EntityFromURL(pageURL)
	if err != nil {
		return nil, err
	}

	if s.cfg.Browser == nil {
		return nil, fmt.Errorf("extractor: no browser manager configured")
	}
	sess, err := browser.OpenSession(ctx, s.cfg.Browser, pageURL, entity, s.cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("extractor: open session: %w", err)
	}
	defer sess.Close()

	return s.ExtractWith(ctx, sess, pageURL)
}

// ExtractWith runs the cascades against an already-open session. Split
// out so tests can drive the service with a fake automation surface.
func (s *Service) ExtractWith(ctx context.Context, sess cascade.Session, pageURL string) (*Profile, error) {
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()

	profile := &Profile{Entity: sess.Entity(), PageURL: pageURL}

	bannerRes := s.banner.Run(ctx, sess)
	profile.Banner = bannerRes
	profile.BannerURL = bannerRes.URL
	if !bannerRes.TrustValid {
		s.mu.Lock()
		s.trustValid = false
		s.mu.Unlock()
	}

	// Logo run on the same session: traffic has quiesced, so its
	// OBSERVING stage drains the residual queue and idles out quickly.
	logoRes := s.logo.Run(ctx, sess)
	profile.LogoURL = logoRes.URL

	s.fillMetadata(ctx, sess, profile)

	if s.cfg.Events != nil {
		s.cfg.Events.LogRun(ctx, events.Run{
			Entity:     profile.Entity,
			Goal:       "banner",
			ResultURL:  bannerRes.URL,
			Strategy:   bannerRes.Strategy.String(),
			Exhausted:  bannerRes.Exhausted,
			TrustValid: bannerRes.TrustValid,
			Observed:   bannerRes.Observed,
			Attempted:  bannerRes.Attempted,
		})
	}

	s.logger.Info("extractor: extraction complete",
		"entity", profile.Entity,
		"banner", profile.BannerURL != "",
		"logo", profile.LogoURL != "",
		"strategy", bannerRes.Strategy.String(),
		"exhausted", bannerRes.Exhausted)
	return profile, nil
}

// Summary returns the diagnostics object.
func (s *Service) Summary(ctx context.Context) Summary {
	s.mu.Lock()
	sessions, trust := s.sessions, s.trustValid
	s.mu.Unlock()

	sum := Summary{
		Patterns:   s.cfg.Store.Summary(),
		Sessions:   sessions,
		TrustValid: trust,
	}
	if s.cfg.Events != nil {
		if es, err := s.cfg.Events.Summarize(ctx); err == nil {
			sum.Events = &es
		}
	}
	return sum
}

// BestPatterns proxies the ranked learned patterns for diagnostics.
func (s *Service) BestPatterns(environment string, limit int) []pattern.Pattern {
	if s.cfg.Provider == nil {
		return nil
	}
	return s.cfg.Provider.BestPatterns(environment, limit)
}

// EntityFromURL resolves the entity identifier from a profile page URL:
// the last meaningful path segment ("/company/acme-corp/" → "acme-corp").
func EntityFromURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("extractor: invalid profile url %q", pageURL)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" && segs[i] != "about" && segs[i] != "posts" {
			return segs[i], nil
		}
	}
	return "", fmt.Errorf("extractor: no entity segment in %q", pageURL)
}
