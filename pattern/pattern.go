// Package pattern implements the learned request-shape store: discovery of
// pattern keys from observed traffic, per-pattern success statistics, and
// durable JSON persistence with backup fallback.
//
// The store is process-wide shared state. Every extraction session feeds
// observations into one instance; all mutation is serialized behind a
// single mutex.
package pattern

import (
	"time"
)

// Kind prefixes for pattern keys.
const (
	KindPath   = "path"
	KindQuery  = "query"
	KindDomain = "domain"
)

// Pattern is a learned request-shape record. Key acts as identity:
// "{kind}:{shape}".
type Pattern struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Shape  string `json:"shape"`
	Domain string `json:"domain,omitempty"`
	Method string `json:"method,omitempty"`

	DiscoveredAt  time.Time  `json:"discoveredAt"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`

	TotalAttempts      int     `json:"totalAttempts"`
	SuccessfulAttempts int     `json:"successfulAttempts"`
	SuccessRate        float64 `json:"successRate"`

	// YieldsTargetData is set once any successful response is confirmed
	// to carry target-domain indicators.
	YieldsTargetData bool `json:"yieldsTargetData"`

	// Samples is a bounded cache of anonymized response fingerprints,
	// diagnostics only. Never used in ranking.
	Samples []string `json:"samples,omitempty"`
}

// recompute derives SuccessRate from its inputs. Called on every update;
// the rate is never stored independently of the counters.
func (p *Pattern) recompute() {
	if p.TotalAttempts == 0 {
		p.SuccessRate = 0
		return
	}
	p.SuccessRate = float64(p.SuccessfulAttempts) / float64(p.TotalAttempts)
}

// Metadata describes the store snapshot.
type Metadata struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	PatternCount  int       `json:"patternCount"`
}

// Metrics are aggregate counters across all observations.
type Metrics struct {
	TotalObservations int `json:"totalObservations"`
	TotalSuccesses    int `json:"totalSuccesses"`
}

// Summary is the diagnostics view exposed to callers.
type Summary struct {
	Patterns          int       `json:"patterns"`
	Baselines         int       `json:"baselines"`
	TotalObservations int       `json:"totalObservations"`
	TotalSuccesses    int       `json:"totalSuccesses"`
	LastUpdatedAt     time.Time `json:"lastUpdatedAt"`
}

// snapshotVersion is the persisted layout version. Field names and nesting
// are stable across versions: loaders ignore unknown fields and only the
// top-level sections are required.
const snapshotVersion = 1
