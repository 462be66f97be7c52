// Package cascade implements the multi-strategy extraction engine: an
// ordered sequence of techniques (network observation, direct request
// replay, structural page analysis, direct element lookup) that each pool
// scored candidates until one wins.
//
// The cascade consumes adaptive configuration and reports every attempt
// back to the pattern learner, closing the feedback loop.
package cascade

import (
	"context"
	"time"
)

// NetworkEvent is one intercepted request/response pair delivered by the
// automation surface.
type NetworkEvent struct {
	URL        string
	Method     string
	Status     int
	Body       string
	ReceivedAt time.Time
}

// Session is the page-automation surface for one target entity. The
// engine assumes these primitives exist and are reliable; browser.Session
// is the production implementation, tests use fakes.
type Session interface {
	// Entity returns the resolved entity identifier (e.g. the company's
	// universal name), substituted into request templates.
	Entity() string

	// Events delivers intercepted network responses in delivery order.
	// The channel is closed when the session ends.
	Events() <-chan NetworkEvent

	// Provoke performs one light interaction (scroll, tab nudge) to
	// trigger additional traffic.
	Provoke(ctx context.Context) error

	// RenderedHTML returns the fully rendered page markup.
	RenderedHTML(ctx context.Context) (string, error)

	// QueryVisible runs a structural query against the live page and
	// returns the first visible match's attributes (including "style").
	QueryVisible(ctx context.Context, selector string) (map[string]string, bool)
}

// Learner receives per-attempt outcomes. *pattern.Store satisfies it.
type Learner interface {
	RecordObservation(url, method string, succeeded bool, sample []byte)
}

// Recorder receives per-attempt audit events. events.Logger satisfies it;
// nil disables auditing.
type Recorder interface {
	LogAttempt(ctx context.Context, entity, strategy, url string, success bool)
}
