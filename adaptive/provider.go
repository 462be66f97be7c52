// Package adaptive builds per-component configuration snapshots by merging
// hand-curated baselines with the best learned patterns from the store.
//
// Adaptive failure always degrades to static behavior: with a nil or empty
// store the provider serves the baseline-only snapshot, never an error.
package adaptive

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ovrld/bannerhound/pattern"
	"github.com/ovrld/bannerhound/vocab"
)

// Component names with learned enrichment. Any other component name is
// served baseline-only.
const (
	ComponentNetworkPatterns = "network_patterns"
	ComponentCallTemplates   = "direct_call_templates"
)

// Snapshot is the materialized configuration for one component. It is a
// plain structure consumable directly by the cascade; callers never
// transform it further.
type Snapshot struct {
	Component string `json:"component"`

	// Entries is the merged list: baseline entries first, then ranked
	// learned entries, deduplicated by shape.
	Entries []string `json:"entries"`

	// Adaptive is the learned-only subset of Entries, in rank order.
	// DIRECT_CALLS tries these before the static entries.
	Adaptive []string `json:"adaptive,omitempty"`

	// Patterns carries the ranked source patterns for diagnostics.
	Patterns []pattern.Pattern `json:"patterns,omitempty"`

	Environment string    `json:"environment"`
	BuiltAt     time.Time `json:"builtAt"`
}

// Config configures a Provider.
type Config struct {
	// Profile is the environment profile, resolved once at startup from
	// deployment signals and injected here.
	Profile Profile

	// TTL bounds snapshot staleness. Default: 5 minutes.
	TTL time.Duration

	// Limit caps ranked learned entries per snapshot. Default: 20.
	Limit int

	// Enabled is the adaptive-mode toggle. When false every snapshot is
	// baseline-only. Default set by cmd: on.
	Enabled bool

	Vocab  *vocab.Tables
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if c.Profile.Name == "" {
		c.Profile = Production()
	}
	if c.Vocab == nil {
		c.Vocab = vocab.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type cached struct {
	snap    *Snapshot
	expires time.Time
}

// Provider serves cached configuration snapshots. The store is an
// explicit dependency and may be nil.
type Provider struct {
	cfg   Config
	store *pattern.Store

	mu    sync.Mutex
	cache map[string]cached
}

// NewProvider creates a Provider over a pattern store (nil allowed).
func NewProvider(store *pattern.Store, cfg Config) *Provider {
	cfg.defaults()
	return &Provider{
		cfg:   cfg,
		store: store,
		cache: make(map[string]cached),
	}
}

// GetConfig returns the snapshot for a component, building it on cache
// miss or TTL expiry. Two calls without an intervening store mutation or
// expiry return the identical snapshot.
func (p *Provider) GetConfig(component string) *Snapshot {
	now := time.Now()

	p.mu.Lock()
	if c, ok := p.cache[component]; ok && now.Before(c.expires) {
		p.mu.Unlock()
		return c.snap
	}
	p.mu.Unlock()

	snap := p.build(component, now)

	p.mu.Lock()
	p.cache[component] = cached{snap: snap, expires: now.Add(p.cfg.TTL)}
	p.mu.Unlock()

	return snap
}

// Refresh drops all cached snapshots; the next GetConfig rebuilds.
func (p *Provider) Refresh() {
	p.mu.Lock()
	p.cache = make(map[string]cached)
	p.mu.Unlock()
}

// BestPatterns exposes the ranked learned patterns for a named
// environment, mainly for diagnostics endpoints.
func (p *Provider) BestPatterns(environment string, limit int) []pattern.Pattern {
	if p.store == nil {
		return nil
	}
	prof := ProfileByName(environment)
	return p.store.BestPatterns(prof.MinSuccessRate, prof.RateTolerance, limit)
}

func (p *Provider) build(component string, now time.Time) *Snapshot {
	snap := &Snapshot{
		Component:   component,
		Environment: p.cfg.Profile.Name,
		BuiltAt:     now.UTC(),
		Entries:     append([]string(nil), p.cfg.Vocab.Baselines[component]...),
	}

	if !p.cfg.Enabled || p.store == nil {
		return snap
	}

	ranked := p.store.BestPatterns(p.cfg.Profile.MinSuccessRate, p.cfg.Profile.RateTolerance, p.cfg.Limit)
	if len(ranked) == 0 {
		return snap
	}
	snap.Patterns = ranked

	seen := make(map[string]bool, len(snap.Entries))
	for _, e := range snap.Entries {
		seen[e] = true
	}

	for _, pt := range ranked {
		entry := p.entryFor(component, pt)
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		snap.Entries = append(snap.Entries, entry)
		snap.Adaptive = append(snap.Adaptive, entry)
	}

	p.cfg.Logger.Debug("adaptive: snapshot built",
		"component", component, "baseline", len(p.cfg.Vocab.Baselines[component]),
		"learned", len(snap.Adaptive), "environment", snap.Environment)
	return snap
}

// entryFor renders one ranked pattern as a component entry.
func (p *Provider) entryFor(component string, pt pattern.Pattern) string {
	switch component {
	case ComponentNetworkPatterns:
		return pt.Shape

	case ComponentCallTemplates:
		// Only target-bearing path shapes convert into replayable
		// request templates.
		if pt.Kind != pattern.KindPath || !pt.YieldsTargetData || pt.Domain == "" {
			return ""
		}
		return "https://" + pt.Domain + strings.TrimSuffix(pt.Shape, "/") + "/{entity}"

	default:
		return ""
	}
}
