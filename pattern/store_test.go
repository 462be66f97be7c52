package pattern

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ovrld/bannerhound/vocab"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(Config{Vocab: vocab.Default()})
}

const targetBody = `{"backgroundImage":"https://media.licdn.com/dms/image/v2/abc/company-background_10000/0?e=123"}`

func TestRecordObservation_CountersInvariant(t *testing.T) {
	// WHAT: successfulAttempts never exceeds totalAttempts and the rate is
	// always their quotient.
	// WHY: Ranking and cleanup both trust these counters blindly.
	s := newTestStore(t)
	u := "https://www.linkedin.com/voyager/api/organization/companies"

	s.RecordObservation(u, "GET", true, nil)
	s.RecordObservation(u, "GET", false, nil)
	s.RecordObservation(u, "GET", true, nil)

	p, ok := s.Get("path:/voyager/api/")
	if !ok {
		t.Fatal("pattern not learned")
	}
	if p.TotalAttempts != 3 || p.SuccessfulAttempts != 2 {
		t.Fatalf("counters = %d/%d, want 2/3", p.SuccessfulAttempts, p.TotalAttempts)
	}
	if p.SuccessfulAttempts > p.TotalAttempts {
		t.Error("successes exceed attempts")
	}
	want := 2.0 / 3.0
	if p.SuccessRate < want-1e-9 || p.SuccessRate > want+1e-9 {
		t.Errorf("rate = %v, want %v", p.SuccessRate, want)
	}
}

func TestRecordObservation_MalformedURLIgnored(t *testing.T) {
	// WHAT: A malformed observation is swallowed without learning anything.
	// WHY: The learner must never fail its caller; bad input is just noise.
	s := newTestStore(t)
	s.RecordObservation("://not-a-url", "GET", true, nil)
	s.RecordObservation("", "GET", true, nil)
	if s.Len() != 0 {
		t.Errorf("learned %d patterns from garbage", s.Len())
	}
}

func TestRecordObservation_TargetBearingFlag(t *testing.T) {
	// WHAT: A successful observation whose body carries a target indicator
	// flags the pattern and caches an anonymized fingerprint.
	// WHY: Target-bearing patterns rank first; the flag is the main signal.
	s := newTestStore(t)
	u := "https://www.linkedin.com/voyager/api/organization/companies"

	s.RecordObservation(u, "GET", true, []byte(targetBody))

	p, ok := s.Get("path:/organization/companies/")
	if !ok {
		t.Fatal("pattern not learned")
	}
	if !p.YieldsTargetData {
		t.Error("target-bearing flag not set")
	}
	if len(p.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(p.Samples))
	}
	if p.Samples[0] == targetBody {
		t.Error("raw payload stored instead of fingerprint")
	}
}

func TestRecordObservation_FailureNeverSetsFlag(t *testing.T) {
	// WHAT: A failed observation never marks a pattern target-bearing, even
	// with an indicator-bearing body.
	// WHY: An error page mentioning "coverPhoto" is not evidence.
	s := newTestStore(t)
	u := "https://www.linkedin.com/voyager/api/organization/companies"

	s.RecordObservation(u, "GET", false, []byte(targetBody))

	p, _ := s.Get("path:/organization/companies/")
	if p.YieldsTargetData {
		t.Error("flag set from a failed attempt")
	}
}

func TestRecordObservation_SampleCap(t *testing.T) {
	// WHAT: The fingerprint cache keeps only the most recent SampleCap entries.
	// WHY: Samples are diagnostics; the store must stay bounded.
	s := NewStore(Config{Vocab: vocab.Default(), SampleCap: 2})
	u := "https://www.linkedin.com/voyager/api/organization/companies"

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"backgroundImage":"https://media.licdn.com/x/%d"}`, i)
		s.RecordObservation(u, "GET", true, []byte(body))
	}

	p, _ := s.Get("path:/voyager/api/")
	if len(p.Samples) != 2 {
		t.Errorf("samples = %d, want cap 2", len(p.Samples))
	}
}

func TestBestPatterns_TargetBearingFirst(t *testing.T) {
	// WHAT: Target-bearing patterns outrank plain ones regardless of rate.
	// WHY: A proven data source beats a merely reachable endpoint.
	s := newTestStore(t)

	// High rate, never target-bearing.
	for i := 0; i < 10; i++ {
		s.RecordObservation("https://www.linkedin.com/feed/updates/x", "GET", true, nil)
	}
	// Lower rate, target-bearing.
	s.RecordObservation("https://api.linkedin.com/voyager/graphql?queryId=abc", "GET", true, []byte(targetBody))
	s.RecordObservation("https://api.linkedin.com/voyager/graphql?queryId=abc", "GET", false, nil)

	ranked := s.BestPatterns(0.0, 0.1, 50)
	if len(ranked) == 0 {
		t.Fatal("no ranked patterns")
	}
	if !ranked[0].YieldsTargetData {
		t.Errorf("top pattern %q is not target-bearing", ranked[0].Key)
	}
}

func TestBestPatterns_MinRateFilter(t *testing.T) {
	// WHAT: Patterns below the minimum success rate are excluded entirely.
	// WHY: The environment profile decides what is proven enough to replay.
	s := newTestStore(t)
	for i := 0; i < 4; i++ {
		s.RecordObservation("https://www.linkedin.com/flaky/endpoint/x", "GET", false, nil)
	}
	s.RecordObservation("https://www.linkedin.com/flaky/endpoint/x", "GET", true, nil)

	if got := s.BestPatterns(0.5, 0.1, 50); len(got) != 0 {
		t.Errorf("rate 0.2 patterns passed a 0.5 floor: %v", got)
	}
	if got := s.BestPatterns(0.2, 0.1, 50); len(got) == 0 {
		t.Error("rate 0.2 patterns missing at a 0.2 floor")
	}
}

func TestBestPatterns_ToleranceBandBreaksOnRecency(t *testing.T) {
	// WHAT: Rates within the tolerance band are tied; the more recent
	// success wins the tie.
	// WHY: 0.84 vs 0.86 is noise, but freshness is a real signal.
	s := newTestStore(t)
	now := time.Now().UTC()
	older := now.Add(-time.Hour)

	s.mu.Lock()
	s.patterns["path:/old/shape/"] = &Pattern{
		Key: "path:/old/shape/", Kind: KindPath, Shape: "/old/shape/",
		TotalAttempts: 100, SuccessfulAttempts: 86, SuccessRate: 0.86,
		LastSuccessAt: &older,
	}
	s.patterns["path:/new/shape/"] = &Pattern{
		Key: "path:/new/shape/", Kind: KindPath, Shape: "/new/shape/",
		TotalAttempts: 100, SuccessfulAttempts: 84, SuccessRate: 0.84,
		LastSuccessAt: &now,
	}
	s.mu.Unlock()

	ranked := s.BestPatterns(0.0, 0.1, 10)
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d, want 2", len(ranked))
	}
	if ranked[0].Key != "path:/new/shape/" {
		t.Errorf("recency should win inside the band, got %q first", ranked[0].Key)
	}

	// Outside the band the higher rate wins regardless of recency.
	ranked = s.BestPatterns(0.0, 0.01, 10)
	if ranked[0].Key != "path:/old/shape/" {
		t.Errorf("higher rate should win outside the band, got %q first", ranked[0].Key)
	}
}

func TestCleanup_RemovesOnlyStaleLowValue(t *testing.T) {
	// WHAT: Cleanup removes a pattern only when rate, attempts and last-use
	// age all cross their thresholds; it is idempotent.
	// WHY: Each criterion alone is survivable — together they mean dead weight.
	s := NewStore(Config{
		Vocab:   vocab.Default(),
		Cleanup: CleanupPolicy{MaxRate: 0.1, MinAttempts: 10, Retention: 30 * 24 * time.Hour},
	})
	now := time.Now().UTC()
	stale := now.Add(-40 * 24 * time.Hour)
	fresh := now.Add(-5 * 24 * time.Hour)

	mk := func(key string, attempts, successes int, lastUsed time.Time) *Pattern {
		p := &Pattern{Key: key, Kind: KindPath, Shape: key, TotalAttempts: attempts,
			SuccessfulAttempts: successes, LastUsedAt: &lastUsed}
		p.recompute()
		return p
	}
	s.mu.Lock()
	s.patterns["path:/dead/shape/"] = mk("path:/dead/shape/", 20, 1, stale)     // all three: goes
	s.patterns["path:/fresh/shape/"] = mk("path:/fresh/shape/", 20, 1, fresh)   // recently used: stays
	s.patterns["path:/young/shape/"] = mk("path:/young/shape/", 5, 0, stale)    // too few attempts: stays
	s.patterns["path:/proven/shape/"] = mk("path:/proven/shape/", 20, 15, stale) // good rate: stays
	s.mu.Unlock()

	if removed := s.CleanupAt(now); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := s.Get("path:/dead/shape/"); ok {
		t.Error("stale low-value pattern survived")
	}
	for _, key := range []string{"path:/fresh/shape/", "path:/young/shape/", "path:/proven/shape/"} {
		if _, ok := s.Get(key); !ok {
			t.Errorf("%q should have survived cleanup", key)
		}
	}

	if removed := s.CleanupAt(now); removed != 0 {
		t.Errorf("second cleanup removed %d, want 0", removed)
	}
}

func TestCleanup_BaselinesUntouched(t *testing.T) {
	// WHAT: Baseline shapes survive any number of cleanup passes.
	// WHY: Hand-curated fallbacks are configuration, not learned state.
	s := newTestStore(t)
	before := s.Baselines()
	s.Cleanup()
	s.Cleanup()
	after := s.Baselines()
	if len(before) == 0 || len(after) != len(before) {
		t.Errorf("baselines changed: %d -> %d", len(before), len(after))
	}
}

func TestLearningScenario_VoyagerDiscovery(t *testing.T) {
	// WHAT: Ten observations of a voyager organization URL make its shapes
	// rank above unrelated noise in the next configuration.
	// WHY: This is the adaptation loop end to end: observe, learn, serve.
	s := newTestStore(t)
	voyager := "https://www.linkedin.com/voyager/api/organization/companies?universalName=acme"

	for i := 0; i < 10; i++ {
		s.RecordObservation(voyager, "GET", true, []byte(targetBody))
	}
	for i := 0; i < 10; i++ {
		s.RecordObservation("https://www.linkedin.com/static/assets/bundle.js", "GET", false, nil)
	}

	ranked := s.BestPatterns(0.5, 0.1, 5)
	if len(ranked) == 0 {
		t.Fatal("nothing learned")
	}
	for _, p := range ranked {
		if !p.YieldsTargetData {
			t.Errorf("noise pattern %q ranked among the proven ones", p.Key)
		}
	}
	if _, ok := s.Get("query:universalName"); !ok {
		t.Error("query parameter shape was not learned")
	}
}

func TestPersist_Roundtrip(t *testing.T) {
	// WHAT: Persist then reload reproduces patterns, counters and metadata.
	// WHY: Learned state must survive restarts to be worth learning.
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.json")

	s := NewStore(Config{Path: path, Vocab: vocab.Default()})
	u := "https://www.linkedin.com/voyager/api/organization/companies"
	s.RecordObservation(u, "GET", true, []byte(targetBody))
	s.RecordObservation(u, "GET", false, nil)
	if err := s.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	s2 := NewStore(Config{Path: path, Vocab: vocab.Default()})
	p, ok := s2.Get("path:/voyager/api/")
	if !ok {
		t.Fatal("pattern lost in roundtrip")
	}
	if p.TotalAttempts != 2 || p.SuccessfulAttempts != 1 {
		t.Errorf("counters = %d/%d, want 1/2", p.SuccessfulAttempts, p.TotalAttempts)
	}
	if !p.YieldsTargetData {
		t.Error("target-bearing flag lost in roundtrip")
	}
	sum := s2.Summary()
	if sum.TotalObservations != 2 || sum.TotalSuccesses != 1 {
		t.Errorf("metrics = %+v", sum)
	}
}

func TestLoad_BackupFallback(t *testing.T) {
	// WHAT: A corrupt snapshot falls back to the sibling backup copy.
	// WHY: A crash mid-write must cost at most one save interval of learning.
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.json")

	s := NewStore(Config{Path: path, Vocab: vocab.Default()})
	s.RecordObservation("https://www.linkedin.com/voyager/api/organization/companies", "GET", true, nil)
	if err := s.Persist(); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	// Second persist copies the good snapshot to .bak first.
	if err := s.Persist(); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	s2 := NewStore(Config{Path: path, Vocab: vocab.Default()})
	if _, ok := s2.Get("path:/voyager/api/"); !ok {
		t.Error("backup fallback did not restore the learned pattern")
	}
}

func TestLoad_MissingSectionsRegeneratesDefaults(t *testing.T) {
	// WHAT: A snapshot missing required sections is discarded and the store
	// starts empty with vocabulary baselines intact.
	// WHY: A partial document is worse than none; baselines never depend on it.
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.json")
	if err := os.WriteFile(path, []byte(`{"baselinePatterns":["/voyager/api/"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(Config{Path: path, Vocab: vocab.Default()})
	if s.Len() != 0 {
		t.Errorf("learned %d patterns from an unusable snapshot", s.Len())
	}
	if len(s.Baselines()) == 0 {
		t.Error("baselines must come from the vocabulary regardless of snapshot state")
	}
}

func TestLoad_ClampsCorruptCounters(t *testing.T) {
	// WHAT: A hand-edited snapshot where successes exceed attempts is
	// clamped on load and the rate recomputed.
	// WHY: The counters invariant must hold for every pattern ever served.
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.json")

	snap := map[string]any{
		"metadata": Metadata{Version: 1, CreatedAt: time.Now().UTC()},
		"apiEndpoints": map[string]*Pattern{
			"path:/voyager/api/": {
				Kind: KindPath, Shape: "/voyager/api/",
				TotalAttempts: 3, SuccessfulAttempts: 9, SuccessRate: 3.0,
			},
		},
		"successMetrics": Metrics{},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(Config{Path: path, Vocab: vocab.Default()})
	p, ok := s.Get("path:/voyager/api/")
	if !ok {
		t.Fatal("pattern not loaded")
	}
	if p.SuccessfulAttempts != 3 {
		t.Errorf("successes = %d, want clamped to 3", p.SuccessfulAttempts)
	}
	if p.SuccessRate != 1.0 {
		t.Errorf("rate = %v, want recomputed 1.0", p.SuccessRate)
	}
}
