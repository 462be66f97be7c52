package cascade

import (
	"strings"

	"github.com/ovrld/bannerhound/vocab"
)

// Candidate is a transient pooled result. Candidates live for one session
// and are discarded after selection.
type Candidate struct {
	URL      string
	Strategy State
	Score    int
}

// pool accumulates validated candidates, deduplicated by URL, in
// insertion order.
type pool struct {
	list []Candidate
	seen map[string]bool
}

func newPool() *pool {
	return &pool{seen: make(map[string]bool)}
}

// add pools a candidate; duplicates are ignored. Reports whether the URL
// was new.
func (p *pool) add(url string, strategy State) bool {
	if p.seen[url] {
		return false
	}
	p.seen[url] = true
	p.list = append(p.list, Candidate{URL: url, Strategy: strategy})
	return true
}

func (p *pool) size() int { return len(p.list) }

// scorer ranks candidates with additive, independent, unnormalized
// weights from the vocabulary.
type scorer struct {
	tables *vocab.Tables
}

// Score computes a candidate's score:
//
//   - each keyword hit adds its configured weight (tiered: primary-asset
//     keywords outweigh generic ones),
//   - a wide-aspect dimension hint adds a ratio-scaled bonus plus a
//     width-scaled bonus,
//   - modern-format hints add a small bonus,
//   - placeholder tokens subtract large penalties.
func (sc *scorer) Score(rawURL string) int {
	lower := strings.ToLower(rawURL)
	score := 0

	for kw, weight := range sc.tables.Scoring.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += weight
		}
	}

	if w, h, ok := dimensionHint(lower); ok && h > 0 {
		ratio := float64(w) / float64(h)
		switch {
		case ratio > 3:
			score += 40
		case ratio > 2:
			score += 25
		case ratio > 1.5:
			score += 12
		}
		switch {
		case w >= 1400:
			score += 20
		case w >= 800:
			score += 10
		}
	}

	for _, f := range sc.tables.Scoring.Formats {
		if strings.Contains(lower, strings.ToLower(f)) {
			score += sc.tables.Scoring.FormatBonus
			break
		}
	}

	for _, tok := range sc.tables.Placeholders {
		if strings.Contains(lower, strings.ToLower(tok)) {
			score -= sc.tables.Scoring.PlaceholderPenalty
		}
	}

	return score
}

// Select returns the highest-scoring candidate, or nil on an empty pool.
// Ties break on insertion order (first seen wins) — an arbitrary,
// documented tie-break, not a quality signal.
func (sc *scorer) Select(p *pool) *Candidate {
	if p.size() == 0 {
		return nil
	}
	best := -1
	for i := range p.list {
		p.list[i].Score = sc.Score(p.list[i].URL)
		if best < 0 || p.list[i].Score > p.list[best].Score {
			best = i
		}
	}
	c := p.list[best]
	return &c
}
