// Package vocab holds the declarative keyword and indicator tables that
// drive pattern learning, candidate validation and scoring.
//
// The tables are data, not code: a versioned YAML document, embedded as a
// default and overridable per deployment, validated at load time. The
// engine never hardcodes an indicator literal.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var embedded []byte

// Goal is an extraction target (banner, logo). Include and Exclude
// vocabularies are disjoint between goals: a banner run must never accept
// an avatar asset and vice versa.
type Goal struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Scoring weights for the candidate selector. Weights are additive and
// intentionally unnormalized.
type Scoring struct {
	// Keywords maps a URL substring to its score contribution. Tiered:
	// a primary-asset keyword carries more weight than a generic one.
	Keywords map[string]int `yaml:"keywords"`
	// FormatBonus is added once when the URL hints a modern image format.
	FormatBonus int `yaml:"format_bonus"`
	// PlaceholderPenalty is subtracted per placeholder token hit.
	PlaceholderPenalty int `yaml:"placeholder_penalty"`
	// Formats lists modern-format hints (webp, avif).
	Formats []string `yaml:"formats"`
}

// Tables is the full vocabulary document.
type Tables struct {
	Version int `yaml:"version"`

	// TargetIndicators are case-insensitive substrings whose presence in a
	// response body marks the payload as target-bearing.
	TargetIndicators []string `yaml:"target_indicators"`

	// KeyNames are JSON key names inspected during recursive body scans.
	KeyNames []string `yaml:"key_names"`

	// TargetDomains are hostname suffixes of the target domain family;
	// observations on these hosts produce domain: patterns.
	TargetDomains []string `yaml:"target_domains"`

	// AllowedOrigins are hostname suffixes a candidate URL may come from.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Placeholders are tokens marking dummy/blank assets.
	Placeholders []string `yaml:"placeholders"`

	// Goals keys extraction goals (banner, logo) to their vocabularies.
	Goals map[string]Goal `yaml:"goals"`

	Scoring Scoring `yaml:"scoring"`

	// Baselines maps an adaptive-configuration component to its
	// hand-curated fallback entries. Baselines never expire.
	Baselines map[string][]string `yaml:"baselines"`
}

// Load reads a vocabulary file, or the embedded default when path is
// empty. The document shape is validated before it is returned.
func Load(path string) (*Tables, error) {
	data := embedded
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("vocab: read %s: %w", path, err)
		}
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("vocab: parse: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Default returns the embedded vocabulary. Panics only if the embedded
// document is itself invalid, which is a build defect.
func Default() *Tables {
	t, err := Load("")
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks the document shape so a malformed deployment override
// fails at startup, not mid-extraction.
func (t *Tables) Validate() error {
	if t.Version <= 0 {
		return fmt.Errorf("vocab: version must be positive, got %d", t.Version)
	}
	if len(t.TargetIndicators) == 0 {
		return fmt.Errorf("vocab: target_indicators is empty")
	}
	if len(t.KeyNames) == 0 {
		return fmt.Errorf("vocab: key_names is empty")
	}
	if len(t.TargetDomains) == 0 {
		return fmt.Errorf("vocab: target_domains is empty")
	}
	if len(t.Goals) == 0 {
		return fmt.Errorf("vocab: no goals defined")
	}
	for name, g := range t.Goals {
		if len(g.Include) == 0 {
			return fmt.Errorf("vocab: goal %q has no include tokens", name)
		}
		if len(g.Exclude) == 0 {
			return fmt.Errorf("vocab: goal %q has no exclude tokens", name)
		}
	}
	if len(t.Scoring.Keywords) == 0 {
		return fmt.Errorf("vocab: scoring.keywords is empty")
	}
	return nil
}

// Goal returns the vocabulary for one extraction goal.
func (t *Tables) Goal(name string) (Goal, error) {
	g, ok := t.Goals[name]
	if !ok {
		return Goal{}, fmt.Errorf("vocab: unknown goal %q", name)
	}
	return g, nil
}

// MatchesIndicator reports whether body contains any target-data
// indicator. The match is a case-insensitive substring test.
func (t *Tables) MatchesIndicator(body string) bool {
	lower := strings.ToLower(body)
	for _, ind := range t.TargetIndicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}

// IsTargetDomain reports whether host belongs to the target domain family.
func (t *Tables) IsTargetDomain(host string) bool {
	return hasDomainSuffix(host, t.TargetDomains)
}

// IsAllowedOrigin reports whether host is an accepted candidate origin.
func (t *Tables) IsAllowedOrigin(host string) bool {
	return hasDomainSuffix(host, t.AllowedOrigins)
}

func hasDomainSuffix(host string, suffixes []string) bool {
	host = strings.ToLower(host)
	for _, s := range suffixes {
		s = strings.ToLower(s)
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
