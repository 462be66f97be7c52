package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ovrld/bannerhound/adaptive"
	"github.com/ovrld/bannerhound/ratelimit"
	"github.com/ovrld/bannerhound/vocab"
)

// State is a cascade stage. Stages execute strictly in sequence; the
// moment any stage yields a winner the run is done and remaining stages
// are skipped.
type State int

const (
	StateNotStarted State = iota
	StateObserving
	StateDirectCalls
	StateStructural
	StateLookup
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateObserving:
		return "observing"
	case StateDirectCalls:
		return "direct_calls"
	case StateStructural:
		return "structural_analysis"
	case StateLookup:
		return "direct_lookup"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Result is the terminal outcome of one cascade run. Exhaustion (all
// stages tried, no candidate) is a defined outcome, not an error.
type Result struct {
	// URL is the selected candidate, empty on exhaustion.
	URL      string `json:"url,omitempty"`
	Strategy State  `json:"-"`

	Exhausted bool `json:"exhausted"`

	// TrustValid turns false after an authorization-class failure
	// (401/403) during direct calls. The cascade continues regardless.
	TrustValid bool `json:"trustValid"`

	Observed  int `json:"observed"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Pooled    int `json:"pooled"`
}

// Config configures a Runner.
type Config struct {
	Learner  Learner
	Provider *adaptive.Provider
	Limiter  *ratelimit.Limiter
	Recorder Recorder

	Vocab *vocab.Tables

	// Goal selects the vocabulary (banner, logo). Default: banner.
	Goal string

	// ObserveWindow bounds the OBSERVING stage. Default: 12s.
	ObserveWindow time.Duration
	// IdleCutoff stops OBSERVING early once traffic quiesces. Default: 4s.
	IdleCutoff time.Duration
	// RequestTimeout bounds any single direct call. Default: 10s.
	RequestTimeout time.Duration
	// MaxRetries for transient direct-call failures. Default: 2.
	MaxRetries int

	// Client overrides the direct-call HTTP client (tests).
	Client *resty.Client

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Goal == "" {
		c.Goal = "banner"
	}
	if c.ObserveWindow <= 0 {
		c.ObserveWindow = 12 * time.Second
	}
	if c.IdleCutoff <= 0 {
		c.IdleCutoff = 4 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.Vocab == nil {
		c.Vocab = vocab.Default()
	}
	if c.Limiter == nil {
		c.Limiter = ratelimit.New(10, time.Minute)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Client == nil {
		c.Client = resty.New().
			SetTimeout(c.RequestTimeout).
			SetRetryCount(c.MaxRetries).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() >= 500 || r.StatusCode() == 429
			})
	}
}

// Runner executes the extraction cascade for one goal. A Runner is
// reusable across sessions; all per-session state lives in the run.
type Runner struct {
	cfg    Config
	gate   *gate
	scorer *scorer
	table  []LookupEntry
}

// NewRunner creates a Runner. Fails only on an unknown goal.
func NewRunner(cfg Config) (*Runner, error) {
	cfg.defaults()
	goal, err := cfg.Vocab.Goal(cfg.Goal)
	if err != nil {
		return nil, fmt.Errorf("cascade: %w", err)
	}
	return &Runner{
		cfg:    cfg,
		gate:   newGate(cfg.Vocab, goal),
		scorer: &scorer{tables: cfg.Vocab},
		table:  defaultLookupTable(cfg.Goal),
	}, nil
}

// Run drives the cascade for one session: observe, replay, re-parse,
// lookup — stopping at the first stage whose scored pool yields a winner.
// Stage timeouts degrade to the next stage, never fail the run.
func (r *Runner) Run(ctx context.Context, sess Session) *Result {
	res := &Result{Strategy: StateNotStarted, TrustValid: true}
	pl := newPool()

	stages := []struct {
		state State
		fn    func(context.Context, Session, *pool, *Result)
	}{
		{StateObserving, r.observe},
		{StateDirectCalls, r.directCalls},
		{StateStructural, r.structural},
	}

	for _, stage := range stages {
		if ctx.Err() != nil {
			break
		}
		stage.fn(ctx, sess, pl, res)
		res.Pooled = pl.size()

		if c := r.scorer.Select(pl); c != nil {
			res.URL = c.URL
			res.Strategy = c.Strategy
			r.cfg.Logger.Info("cascade: winner selected",
				"entity", sess.Entity(), "strategy", c.Strategy.String(),
				"score", c.Score, "pooled", pl.size())
			return res
		}
		r.cfg.Logger.Debug("cascade: stage exhausted, advancing",
			"entity", sess.Entity(), "stage", stage.state.String())
	}

	// DIRECT_LOOKUP encodes priority in its table and short-circuits
	// internally; its first visible match wins without pooling.
	if ctx.Err() == nil {
		if u := r.directLookup(ctx, sess, res); u != "" {
			res.URL = u
			res.Strategy = StateLookup
			return res
		}
	}

	res.Exhausted = true
	r.cfg.Logger.Info("cascade: exhausted without candidate", "entity", sess.Entity(),
		"observed", res.Observed, "attempted", res.Attempted)
	return res
}

// record relays one attempt outcome to the learner and the audit log.
// Learning occurs from attempts, not only from hits.
func (r *Runner) record(ctx context.Context, sess Session, state State, url, method string, success bool, sample []byte, res *Result) {
	res.Attempted++
	if success {
		res.Succeeded++
	}
	if r.cfg.Learner != nil {
		r.cfg.Learner.RecordObservation(url, method, success, sample)
	}
	if r.cfg.Recorder != nil {
		r.cfg.Recorder.LogAttempt(ctx, sess.Entity(), state.String(), url, success)
	}
}

// pools runs the validation gate over scanned URLs and pools survivors.
// Returns how many new candidates entered the pool.
func (r *Runner) pools(found []string, state State, pl *pool) int {
	pooled := 0
	for _, raw := range found {
		n, ok := r.gate.Normalize(raw)
		if !ok || !r.gate.Accept(n) {
			continue
		}
		if pl.add(n, state) {
			pooled++
		}
	}
	return pooled
}
