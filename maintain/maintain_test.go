package maintain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ovrld/bannerhound/dbopen"
	"github.com/ovrld/bannerhound/events"
	"github.com/ovrld/bannerhound/pattern"
	"github.com/ovrld/bannerhound/vocab"
	_ "modernc.org/sqlite"
)

func TestRun_PersistsOnShutdown(t *testing.T) {
	// WHAT: Cancelling the scheduler context writes a final snapshot.
	// WHY: Learning since the last pass must survive process shutdown.
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.json")
	store := pattern.NewStore(pattern.Config{Path: path, Vocab: vocab.Default()})
	store.RecordObservation("https://www.linkedin.com/voyager/api/organization/companies", "GET", true, nil)

	sched := New(store, nil, Config{Interval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// The immediate first pass persists; remove the file to prove the
	// shutdown pass writes again.
	time.Sleep(50 * time.Millisecond)
	os.Remove(path)
	cancel()
	<-done

	if _, err := os.Stat(path); err != nil {
		t.Errorf("no snapshot after shutdown: %v", err)
	}
}

func TestPass_CleansAndPrunes(t *testing.T) {
	// WHAT: One pass drops stale events alongside pattern cleanup.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(events.Schema))
	ev := events.NewLogger(db)
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour).Unix()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO extraction_attempts (entity, strategy, url, success, created_at)
		VALUES ('stale-co', 'observing', 'https://x', 0, ?)`, old); err != nil {
		t.Fatal(err)
	}

	store := pattern.NewStore(pattern.Config{Vocab: vocab.Default()})
	sched := New(store, ev, Config{EventRetention: 30 * 24 * time.Hour}, nil)
	sched.pass(ctx)

	sum, err := ev.Summarize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Attempts != 0 {
		t.Errorf("stale attempt survived the pass: %+v", sum)
	}
}
