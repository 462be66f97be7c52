package extractor

import (
	"context"
	"encoding/json"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// fillMetadata pulls name, description and attributes out of the rendered
// markup: JSON-LD organization blocks first, meta tags as fallback.
// Best-effort throughout — a page without metadata yields an empty
// profile section, never an error.
func (s *Service) fillMetadata(ctx context.Context, sess interface {
	RenderedHTML(ctx context.Context) (string, error)
}, profile *Profile) {
	markup, err := sess.RenderedHTML(ctx)
	if err != nil {
		s.logger.Debug("extractor: metadata markup unavailable", "entity", profile.Entity, "error", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return
	}

	if org := findOrganization(doc); org != nil {
		profile.Name = org.Name
		profile.Description = org.Description
		if profile.LogoURL == "" {
			profile.LogoURL = org.Logo
		}
		profile.Attributes = org.attributes()
	}

	if profile.Name == "" {
		profile.Name = metaContent(doc, `meta[property="og:title"]`)
	}
	if profile.Description == "" {
		profile.Description = metaContent(doc, `meta[name="description"]`)
		if profile.Description == "" {
			profile.Description = metaContent(doc, `meta[property="og:description"]`)
		}
	}

	if profile.Description != "" {
		profile.Description, profile.DescriptionMarkdown = cleanDescription(profile.Description)
	}
}

// organization is the subset of a JSON-LD Organization block we keep.
type organization struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	URL         string `json:"url"`
	Slogan      string `json:"slogan"`
	NumEmployee json.RawMessage `json:"numberOfEmployees"`
	Address     struct {
		Locality string `json:"addressLocality"`
		Country  string `json:"addressCountry"`
	} `json:"address"`
}

func (o *organization) attributes() map[string]string {
	attrs := make(map[string]string)
	if o.URL != "" {
		attrs["website"] = o.URL
	}
	if o.Slogan != "" {
		attrs["slogan"] = o.Slogan
	}
	if o.Address.Locality != "" {
		attrs["locality"] = o.Address.Locality
	}
	if o.Address.Country != "" {
		attrs["country"] = o.Address.Country
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// findOrganization scans ld+json blocks for the first Organization node.
// Blocks may hold a single object or an array; logo may be a string or a
// nested ImageObject.
func findOrganization(doc *goquery.Document) *organization {
	var found *organization
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		for _, node := range ldNodes(raw) {
			var org organization
			if err := json.Unmarshal(node, &org); err != nil {
				continue
			}
			if !strings.Contains(strings.ToLower(org.Type), "organization") {
				continue
			}
			org.Logo = unwrapImage(node, org.Logo)
			found = &org
			return false
		}
		return true
	})
	return found
}

func ldNodes(raw string) []json.RawMessage {
	if strings.HasPrefix(raw, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		return nil
	}
	return []json.RawMessage{json.RawMessage(raw)}
}

// unwrapImage handles logo given as {"@type":"ImageObject","url":...}.
func unwrapImage(node json.RawMessage, logo string) string {
	if logo != "" {
		return logo
	}
	var nested struct {
		Logo struct {
			URL string `json:"url"`
		} `json:"logo"`
	}
	if err := json.Unmarshal(node, &nested); err == nil {
		return nested.Logo.URL
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	if content, ok := doc.Find(selector).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

var (
	descPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// cleanDescription sanitizes a description that may carry markup and
// renders a markdown variant of it.
func cleanDescription(raw string) (text, markdown string) {
	safe := descPolicy.Sanitize(raw)

	md, err := htmltomarkdown.ConvertString(safe)
	if err != nil {
		md = ""
	}

	text = strings.TrimSpace(plainPolicy.Sanitize(safe))
	return text, strings.TrimSpace(md)
}
