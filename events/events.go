// Package events records extraction attempts and run outcomes in SQLite
// for diagnostics. Writes never propagate errors: a failing event store
// must not block extraction.
package events

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// Schema creates the event tables. Pass to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS extraction_attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity TEXT NOT NULL,
    strategy TEXT NOT NULL,
    url TEXT NOT NULL,
    success INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_entity ON extraction_attempts(entity, created_at);

CREATE TABLE IF NOT EXISTS extraction_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity TEXT NOT NULL,
    goal TEXT NOT NULL,
    result_url TEXT,
    strategy TEXT,
    exhausted INTEGER NOT NULL,
    trust_valid INTEGER NOT NULL,
    observed INTEGER NOT NULL,
    attempted INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_entity ON extraction_runs(entity, created_at);
`

// Run is one recorded cascade outcome.
type Run struct {
	Entity     string
	Goal       string
	ResultURL  string
	Strategy   string
	Exhausted  bool
	TrustValid bool
	Observed   int
	Attempted  int
}

// Summary aggregates the event log for the diagnostics endpoint.
type Summary struct {
	Runs      int64 `json:"runs"`
	Succeeded int64 `json:"succeeded"`
	Exhausted int64 `json:"exhausted"`
	Attempts  int64 `json:"attempts"`
}

// Logger writes extraction events.
type Logger struct {
	db *sql.DB
}

// NewLogger creates a Logger backed by an opened event database.
func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// LogAttempt records one strategy attempt. Errors are logged via slog and
// swallowed.
func (l *Logger) LogAttempt(ctx context.Context, entity, strategy, url string, success bool) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO extraction_attempts (entity, strategy, url, success, created_at)
		VALUES (?,?,?,?,?)`,
		entity, strategy, url, success, time.Now().Unix())
	if err != nil {
		slog.Error("events: attempt log failed", "error", err, "entity", entity)
	}
}

// LogRun records one terminal cascade outcome.
func (l *Logger) LogRun(ctx context.Context, run Run) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO extraction_runs (
			entity, goal, result_url, strategy, exhausted, trust_valid,
			observed, attempted, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		run.Entity, run.Goal, run.ResultURL, run.Strategy, run.Exhausted,
		run.TrustValid, run.Observed, run.Attempted, time.Now().Unix())
	if err != nil {
		slog.Error("events: run log failed", "error", err, "entity", run.Entity)
	}
}

// Summarize aggregates the event log.
func (l *Logger) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN result_url IS NOT NULL AND result_url != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(exhausted), 0)
		FROM extraction_runs`).Scan(&s.Runs, &s.Succeeded, &s.Exhausted)
	if err != nil {
		return Summary{}, err
	}
	err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extraction_attempts`).Scan(&s.Attempts)
	if err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Prune removes events older than the retention window and reports how
// many rows were dropped. Called by the maintenance scheduler.
func (l *Logger) Prune(ctx context.Context, retention time.Duration) int64 {
	cutoff := time.Now().Add(-retention).Unix()
	var total int64
	for _, table := range []string{"extraction_attempts", "extraction_runs"} {
		res, err := l.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			slog.Warn("events: prune failed", "table", table, "error", err)
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total
}
