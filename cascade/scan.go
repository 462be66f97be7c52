package cascade

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ovrld/bannerhound/vocab"
)

var bodyURLRe = regexp.MustCompile(`https?://[^\s"'\\<>)]+`)

// scanBody extracts candidate URLs from a response body: a full-text URL
// sweep plus, for JSON payloads, a recursive key-name inspection against
// the vocabulary. Escaped slashes are unfolded first so JSON-embedded
// URLs survive the sweep.
func scanBody(body string, tables *vocab.Tables) []string {
	unescaped := strings.ReplaceAll(body, `\/`, `/`)

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.Trim(s, `"',;`)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, m := range bodyURLRe.FindAllString(unescaped, -1) {
		add(m)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err == nil {
		walkJSON(doc, "", tables, add)
	}

	return out
}

// walkJSON descends the document. A string value is a candidate when its
// own key — or any ancestor key — matches the vocabulary key names, so
// nested artifact objects under a matching key are swept whole.
func walkJSON(node any, underKey string, tables *vocab.Tables, add func(string)) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := underKey
			if matchesKeyName(k, tables) {
				key = strings.ToLower(k)
			}
			walkJSON(child, key, tables, add)
		}
	case []any:
		for _, child := range v {
			walkJSON(child, underKey, tables, add)
		}
	case string:
		if underKey != "" && strings.Contains(v, "://") {
			add(v)
		}
	}
}

func matchesKeyName(key string, tables *vocab.Tables) bool {
	lower := strings.ToLower(key)
	for _, name := range tables.KeyNames {
		if strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}
