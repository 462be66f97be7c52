package pattern

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ovrld/bannerhound/vocab"
)

// CleanupPolicy decides when a learned pattern is dropped. The thresholds
// are empirical; keep them configurable rather than second-guessing them.
type CleanupPolicy struct {
	// MaxRate: patterns at or above this success rate are kept.
	MaxRate float64
	// MinAttempts: patterns with fewer attempts are kept (not enough data).
	MinAttempts int
	// Retention: patterns used within this window are kept.
	Retention time.Duration
}

// Config configures a Store.
type Config struct {
	// Path of the JSON snapshot. Empty = in-memory only (tests).
	Path string

	// AutosaveEvery persists after this many observations. Default: 50.
	AutosaveEvery int

	// SampleCap bounds the per-pattern fingerprint cache. Default: 3.
	SampleCap int

	Cleanup CleanupPolicy

	Vocab  *vocab.Tables
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.AutosaveEvery <= 0 {
		c.AutosaveEvery = 50
	}
	if c.SampleCap <= 0 {
		c.SampleCap = 3
	}
	if c.Cleanup.MaxRate <= 0 {
		c.Cleanup.MaxRate = 0.1
	}
	if c.Cleanup.MinAttempts <= 0 {
		c.Cleanup.MinAttempts = 10
	}
	if c.Cleanup.Retention <= 0 {
		c.Cleanup.Retention = 30 * 24 * time.Hour
	}
	if c.Vocab == nil {
		c.Vocab = vocab.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store holds learned patterns keyed by "{kind}:{shape}". One instance is
// shared by all extraction sessions in the process; it is an explicit
// dependency of its consumers, never a package-level singleton.
type Store struct {
	cfg Config

	mu        sync.Mutex
	patterns  map[string]*Pattern
	baselines []string
	meta      Metadata
	metrics   Metrics
	unsaved   int
}

// NewStore creates a Store and loads the snapshot at cfg.Path if present.
// Load failure is non-fatal: the loader falls back to the backup copy,
// then to regenerated defaults.
func NewStore(cfg Config) *Store {
	cfg.defaults()
	s := &Store{
		cfg:       cfg,
		patterns:  make(map[string]*Pattern),
		baselines: append([]string(nil), cfg.Vocab.Baselines["network_patterns"]...),
		meta: Metadata{
			Version:   snapshotVersion,
			CreatedAt: time.Now().UTC(),
		},
	}
	if cfg.Path != "" {
		s.load()
	}
	return s
}

// RecordObservation feeds one observed request outcome into the learner.
// It never fails to the caller: malformed input is logged and swallowed,
// and persistence errors leave the in-memory state authoritative.
//
// sample, when non-nil, is the response body; if it matches the
// target-data indicator vocabulary the touched patterns are flagged as
// target-bearing and an anonymized fingerprint is cached.
func (s *Store) RecordObservation(rawURL, method string, succeeded bool, sample []byte) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		s.cfg.Logger.Debug("pattern: discarding malformed observation", "url", rawURL, "error", err)
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}

	keys := DeriveKeys(u, s.cfg.Vocab.IsTargetDomain)
	if len(keys) == 0 {
		return
	}

	targetBearing := succeeded && sample != nil && s.cfg.Vocab.MatchesIndicator(string(sample))
	now := time.Now().UTC()

	s.mu.Lock()
	for _, key := range keys {
		p, ok := s.patterns[key]
		if !ok {
			kind, shape := SplitKey(key)
			p = &Pattern{
				Key:          key,
				Kind:         kind,
				Shape:        shape,
				Domain:       u.Hostname(),
				Method:       method,
				DiscoveredAt: now,
			}
			s.patterns[key] = p
		}

		p.TotalAttempts++
		t := now
		p.LastUsedAt = &t
		if succeeded {
			p.SuccessfulAttempts++
			p.LastSuccessAt = &t
			if targetBearing {
				p.YieldsTargetData = true
				p.Samples = append(p.Samples, fingerprint(sample))
				if len(p.Samples) > s.cfg.SampleCap {
					p.Samples = p.Samples[len(p.Samples)-s.cfg.SampleCap:]
				}
			}
		}
		p.recompute()
	}

	s.metrics.TotalObservations++
	if succeeded {
		s.metrics.TotalSuccesses++
	}
	s.meta.LastUpdatedAt = now
	s.unsaved++
	due := s.cfg.Path != "" && s.unsaved >= s.cfg.AutosaveEvery
	if due {
		s.unsaved = 0
	}
	s.mu.Unlock()

	if due {
		if err := s.Persist(); err != nil {
			s.cfg.Logger.Warn("pattern: autosave failed", "error", err)
		}
	}
}

// BestPatterns returns up to limit learned patterns whose success rate is
// at least minRate, ranked:
//
//  1. target-bearing patterns first,
//  2. higher success rate, where rates within tolerance of each other are
//     treated as tied,
//  3. more recent last success.
func (s *Store) BestPatterns(minRate, tolerance float64, limit int) []Pattern {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	selected := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if p.SuccessRate >= minRate {
			selected = append(selected, clone(p))
		}
	}
	s.mu.Unlock()

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.YieldsTargetData != b.YieldsTargetData {
			return a.YieldsTargetData
		}
		if diff := a.SuccessRate - b.SuccessRate; diff > tolerance || diff < -tolerance {
			return a.SuccessRate > b.SuccessRate
		}
		// Near-equal rates: recency wins.
		return lastSuccess(a).After(lastSuccess(b))
	})

	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// Baselines returns the immutable hand-curated fallback shapes.
func (s *Store) Baselines() []string {
	return append([]string(nil), s.baselines...)
}

// Get returns a copy of one pattern.
func (s *Store) Get(key string) (Pattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[key]
	if !ok {
		return Pattern{}, false
	}
	return clone(p), true
}

// Len reports the number of learned patterns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patterns)
}

// Cleanup removes stale low-value patterns and reports how many were
// dropped. A pattern goes iff its rate is below MaxRate AND it has more
// than MinAttempts AND it was last used before the retention window.
// Baseline shapes are never learned patterns, so they are never touched.
// Idempotent.
func (s *Store) Cleanup() int {
	return s.CleanupAt(time.Now().UTC())
}

// CleanupAt is Cleanup with an explicit reference time.
func (s *Store) CleanupAt(now time.Time) int {
	cutoff := now.Add(-s.cfg.Cleanup.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, p := range s.patterns {
		if p.SuccessRate >= s.cfg.Cleanup.MaxRate {
			continue
		}
		if p.TotalAttempts <= s.cfg.Cleanup.MinAttempts {
			continue
		}
		if p.LastUsedAt != nil && p.LastUsedAt.After(cutoff) {
			continue
		}
		delete(s.patterns, key)
		removed++
	}
	if removed > 0 {
		s.meta.LastUpdatedAt = now
		s.cfg.Logger.Info("pattern: cleanup removed stale patterns", "removed", removed, "remaining", len(s.patterns))
	}
	return removed
}

// Summary returns diagnostics counters.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Patterns:          len(s.patterns),
		Baselines:         len(s.baselines),
		TotalObservations: s.metrics.TotalObservations,
		TotalSuccesses:    s.metrics.TotalSuccesses,
		LastUpdatedAt:     s.meta.LastUpdatedAt,
	}
}

// All returns copies of every learned pattern, unordered.
func (s *Store) All() []Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, clone(p))
	}
	return out
}

func clone(p *Pattern) Pattern {
	c := *p
	if p.LastUsedAt != nil {
		t := *p.LastUsedAt
		c.LastUsedAt = &t
	}
	if p.LastSuccessAt != nil {
		t := *p.LastSuccessAt
		c.LastSuccessAt = &t
	}
	c.Samples = append([]string(nil), p.Samples...)
	return c
}

func lastSuccess(p Pattern) time.Time {
	if p.LastSuccessAt == nil {
		return time.Time{}
	}
	return *p.LastSuccessAt
}

// fingerprint anonymizes a response sample: content hash prefix plus
// length, never the payload itself.
func fingerprint(sample []byte) string {
	sum := sha256.Sum256(sample)
	return fmt.Sprintf("%x:%d", sum[:8], len(sample))
}
