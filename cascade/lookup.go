package cascade

import (
	"context"
	"sort"
)

// LookupEntry is one row of the direct-lookup table: a structural locator
// queried against the live page, an extraction mode, and a priority
// (lower tries first).
type LookupEntry struct {
	Selector string
	// Mode is the attribute to read, or "style" to parse a
	// background-image declaration out of the style attribute.
	Mode     string
	Priority int
}

// defaultLookupTable is the fixed, priority-ordered fallback table. It
// encodes priority itself, so the lookup stage short-circuits on the
// first visible match instead of pooling.
func defaultLookupTable(goal string) []LookupEntry {
	if goal == "logo" {
		return []LookupEntry{
			{Selector: "img.org-top-card-primary-content__logo", Mode: "src", Priority: 1},
			{Selector: ".org-top-card-primary-content__logo-container img", Mode: "src", Priority: 2},
			{Selector: "img[src*='company-logo']", Mode: "src", Priority: 3},
			{Selector: "img[data-delayed-url*='company-logo']", Mode: "data-delayed-url", Priority: 4},
		}
	}
	return []LookupEntry{
		{Selector: ".org-top-card-primary-content__cover img", Mode: "src", Priority: 1},
		{Selector: "img.cover-img__image", Mode: "src", Priority: 2},
		{Selector: "img[src*='company-background']", Mode: "src", Priority: 3},
		{Selector: ".org-top-card__background", Mode: "style", Priority: 4},
		{Selector: ".profile-background-image img", Mode: "src", Priority: 5},
		{Selector: "img[data-delayed-url*='background']", Mode: "data-delayed-url", Priority: 6},
	}
}

// directLookup queries the fixed table against the live page. The first
// visible match wins; no pooling, no scoring.
func (r *Runner) directLookup(ctx context.Context, sess Session, res *Result) string {
	entries := append([]LookupEntry(nil), r.table...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority < entries[j].Priority })

	for _, e := range entries {
		if ctx.Err() != nil {
			return ""
		}
		attrs, ok := sess.QueryVisible(ctx, e.Selector)
		if !ok {
			continue
		}

		var raw string
		if e.Mode == "style" {
			if urls := styleURLs(attrs["style"]); len(urls) > 0 {
				raw = urls[0]
			}
		} else {
			raw = attrs[e.Mode]
		}
		if raw == "" {
			continue
		}

		n, valid := r.gate.Normalize(raw)
		r.record(ctx, sess, StateLookup, raw, "DOM", valid, nil, res)
		if valid {
			r.cfg.Logger.Info("cascade: direct lookup hit",
				"entity", sess.Entity(), "selector", e.Selector, "priority", e.Priority)
			return n
		}
	}
	return ""
}
