package events

import (
	"context"
	"testing"
	"time"

	"github.com/ovrld/bannerhound/dbopen"
	_ "modernc.org/sqlite"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return NewLogger(db)
}

func TestLogAttempt_And_Summarize(t *testing.T) {
	// WHAT: Attempts and runs land in the tables and aggregate correctly.
	l := newTestLogger(t)
	ctx := context.Background()

	l.LogAttempt(ctx, "acme-corp", "observing", "https://www.linkedin.com/voyager/api/x", true)
	l.LogAttempt(ctx, "acme-corp", "direct_calls", "https://www.linkedin.com/voyager/api/y", false)
	l.LogRun(ctx, Run{Entity: "acme-corp", Goal: "banner", ResultURL: "https://media.licdn.com/x", Strategy: "observing", TrustValid: true})
	l.LogRun(ctx, Run{Entity: "other-co", Goal: "banner", Exhausted: true, TrustValid: true})

	sum, err := l.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Runs != 2 || sum.Succeeded != 1 || sum.Exhausted != 1 || sum.Attempts != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestPrune_RemovesOldRows(t *testing.T) {
	// WHAT: Rows older than the retention window are deleted; fresh rows stay.
	l := newTestLogger(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Unix()
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO extraction_attempts (entity, strategy, url, success, created_at)
		VALUES ('stale-co', 'observing', 'https://x', 1, ?)`, old); err != nil {
		t.Fatal(err)
	}
	l.LogAttempt(ctx, "fresh-co", "observing", "https://y", true)

	if pruned := l.Prune(ctx, 24*time.Hour); pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	sum, err := l.Summarize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Attempts != 1 {
		t.Errorf("attempts after prune = %d, want 1", sum.Attempts)
	}
}
