package cascade

import (
	"testing"

	"github.com/ovrld/bannerhound/vocab"
)

func TestScanBody_URLSweep(t *testing.T) {
	// WHAT: Plain-text URLs are found regardless of surrounding syntax.
	body := `<script>var a = "https://media.licdn.com/dms/image/abc";</script>
	fetch('https://www.linkedin.com/voyager/api/organization/companies')`
	found := scanBody(body, vocab.Default())

	wantAll(t, found,
		"https://media.licdn.com/dms/image/abc",
		"https://www.linkedin.com/voyager/api/organization/companies")
}

func TestScanBody_EscapedSlashes(t *testing.T) {
	// WHAT: JSON-escaped URLs are unfolded before the sweep.
	// WHY: API bodies deliver every slash as \/ and would otherwise hide
	// all their URLs from the regex.
	body := `{"u":"https:\/\/media.licdn.com\/dms\/image\/abc"}`
	found := scanBody(body, vocab.Default())
	wantAll(t, found, "https://media.licdn.com/dms/image/abc")
}

func TestScanBody_RecursiveKeyMatch(t *testing.T) {
	// WHAT: A URL string nested anywhere under a matching key is found,
	// even when its own key does not match.
	// WHY: Artifact objects nest the real URL several levels below the
	// semantic key (backgroundImage -> artifacts[] -> fileIdentifyingUrl).
	body := `{
		"elements": [{
			"backgroundImage": {
				"artifacts": [
					{"fileIdentifyingUrlPathSegment": "scheme://nested/under/matching/key"}
				]
			},
			"unrelated": {"value": "scheme://should/not/appear"}
		}]
	}`
	found := scanBody(body, vocab.Default())

	wantAll(t, found, "scheme://nested/under/matching/key")
	for _, f := range found {
		if f == "scheme://should/not/appear" {
			t.Error("string under a non-matching key was swept")
		}
	}
}

func TestScanBody_Deduplicates(t *testing.T) {
	// WHAT: A URL present both in text and under a JSON key appears once.
	body := `{"coverImage": "https://media.licdn.com/dms/image/abc"}`
	found := scanBody(body, vocab.Default())

	count := 0
	for _, f := range found {
		if f == "https://media.licdn.com/dms/image/abc" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("URL appeared %d times", count)
	}
}

func TestScanBody_NonJSONBody(t *testing.T) {
	// WHAT: A non-JSON body still gets the text sweep and never errors.
	found := scanBody("plain text with https://media.licdn.com/x inside", vocab.Default())
	wantAll(t, found, "https://media.licdn.com/x")
}

func wantAll(t *testing.T, found []string, want ...string) {
	t.Helper()
	set := make(map[string]bool, len(found))
	for _, f := range found {
		set[f] = true
	}
	for _, w := range want {
		if !set[w] {
			t.Errorf("missing %q in %v", w, found)
		}
	}
}
