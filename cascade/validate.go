package cascade

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ovrld/bannerhound/vocab"
)

// gate validates candidates before they enter the pool. Vocabularies are
// goal-specific: banner and logo runs use disjoint include/exclude sets.
type gate struct {
	tables *vocab.Tables
	goal   vocab.Goal
}

func newGate(tables *vocab.Tables, goal vocab.Goal) *gate {
	return &gate{tables: tables, goal: goal}
}

var doubleSlashRe = regexp.MustCompile(`([^:])//+`)

// Normalize repairs common URL artifacts instead of rejecting them:
// escaped slashes from JSON bodies, scheme-relative prefixes, and doubled
// path slashes. Returns false only when no parseable absolute URL
// remains.
func (g *gate) Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.ReplaceAll(s, `\/`, `/`)

	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if !strings.Contains(s, "://") {
		return "", false
	}
	s = doubleSlashRe.ReplaceAllString(s, "$1/")

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// Accept applies the validation gate to a normalized URL: allowed origin
// family, no goal exclusion token, no placeholder token, and at least one
// positive indicator (goal keyword or a wide-aspect dimension hint).
func (g *gate) Accept(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	if !g.tables.IsAllowedOrigin(u.Hostname()) {
		return false
	}

	lower := strings.ToLower(normalized)
	for _, tok := range g.goal.Exclude {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return false
		}
	}
	for _, tok := range g.tables.Placeholders {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return false
		}
	}

	for _, tok := range g.goal.Include {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	if w, h, ok := dimensionHint(lower); ok && h > 0 && float64(w)/float64(h) > 1.5 {
		return true
	}
	return false
}

var dimRe = regexp.MustCompile(`(\d{2,5})[x_](\d{2,5})`)

// dimensionHint extracts a WxH (or W_H) pair embedded in a URL.
func dimensionHint(lower string) (w, h int, ok bool) {
	m := dimRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, false
	}
	w = atoi(m[1])
	h = atoi(m[2])
	return w, h, w > 0 && h > 0
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
