package extractor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRoutes_SummaryEndpoint(t *testing.T) {
	// WHAT: GET /summary returns the diagnostics JSON.
	svc := testService(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/summary")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var sum Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sum.TrustValid {
		t.Error("fresh service should report valid trust")
	}
}

func TestRoutes_ExtractRejectsBadBody(t *testing.T) {
	// WHAT: A body without a url field is a 400, not a crashed extraction.
	svc := testService(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/extract", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRoutes_PatternsEndpoint(t *testing.T) {
	// WHAT: GET /patterns answers even without a provider configured.
	svc := testService(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/patterns?environment=development&limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Environment string `json:"environment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Environment != "development" {
		t.Errorf("environment = %q", body.Environment)
	}
}
