package cascade

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var cssURLRe = regexp.MustCompile(`(?i)background(?:-image)?\s*:\s*url\(\s*([^)]+?)\s*\)`)

// dataAttrs are element attributes that lazily carry asset URLs.
var dataAttrs = []string{"data-delayed-url", "data-background-image", "data-bg", "data-src"}

// structural re-parses the fully rendered markup offline — not the live
// DOM — for embedded structured data, indicator-bearing inline scripts,
// background-image style declarations and meta/data-attribute fields.
func (r *Runner) structural(ctx context.Context, sess Session, pl *pool, res *Result) {
	markup, err := sess.RenderedHTML(ctx)
	if err != nil {
		r.cfg.Logger.Debug("cascade: rendered markup unavailable", "entity", sess.Entity(), "error", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		r.cfg.Logger.Debug("cascade: markup parse failed", "entity", sess.Entity(), "error", err)
		return
	}

	var found []string

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}
		typ, _ := s.Attr("type")
		if typ == "application/ld+json" || r.cfg.Vocab.MatchesIndicator(text) {
			found = append(found, scanBody(text, r.cfg.Vocab)...)
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		found = append(found, styleURLs(s.Text())...)
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("style"); ok {
			found = append(found, styleURLs(v)...)
		}
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		name, _ := s.Attr("name")
		switch {
		case strings.HasPrefix(prop, "og:image"),
			strings.HasPrefix(name, "twitter:image"):
			if content, ok := s.Attr("content"); ok {
				found = append(found, content)
			}
		}
	})

	for _, attr := range dataAttrs {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(attr); ok {
				found = append(found, v)
			}
		})
	}

	// Each hit passes the same validation gate as every other strategy;
	// normalized hits are recorded as attempts either way.
	for _, raw := range dedupe(found) {
		n, ok := r.gate.Normalize(raw)
		if !ok {
			continue
		}
		accepted := r.gate.Accept(n)
		if accepted {
			pl.add(n, StateStructural)
		}
		r.record(ctx, sess, StateStructural, n, "GET", accepted, nil, res)
	}
}

func styleURLs(css string) []string {
	var out []string
	for _, m := range cssURLRe.FindAllStringSubmatch(css, -1) {
		out = append(out, strings.Trim(m[1], `"'`))
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
