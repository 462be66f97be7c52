package cascade

import (
	"context"
	"time"
)

// observe passively consumes intercepted responses for a bounded window.
// The hard cap is ObserveWindow; the idle cutoff stops the stage early
// once traffic quiesces. One light interaction is triggered to provoke
// additional traffic.
func (r *Runner) observe(ctx context.Context, sess Session, pl *pool, res *Result) {
	window := time.NewTimer(r.cfg.ObserveWindow)
	defer window.Stop()
	idle := time.NewTimer(r.cfg.IdleCutoff)
	defer idle.Stop()

	go func() {
		pctx, cancel := context.WithTimeout(ctx, r.cfg.IdleCutoff)
		defer cancel()
		if err := sess.Provoke(pctx); err != nil {
			r.cfg.Logger.Debug("cascade: provoke failed", "entity", sess.Entity(), "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-window.C:
			return
		case <-idle.C:
			r.cfg.Logger.Debug("cascade: traffic quiesced", "entity", sess.Entity(), "observed", res.Observed)
			return
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			res.Observed++
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.cfg.IdleCutoff)
			r.processEvent(ctx, sess, ev, pl, res)
		}
	}
}

// processEvent scans one intercepted response and records the attempt.
// A non-JSON or otherwise unscannable body is not an error: the scan
// yields nothing and the attempt is still recorded as a failure.
func (r *Runner) processEvent(ctx context.Context, sess Session, ev NetworkEvent, pl *pool, res *Result) {
	found := scanBody(ev.Body, r.cfg.Vocab)
	pooled := r.pools(found, StateObserving, pl)

	success := pooled > 0 || r.cfg.Vocab.MatchesIndicator(ev.Body)
	var sample []byte
	if success {
		sample = []byte(ev.Body)
	}
	r.record(ctx, sess, StateObserving, ev.URL, ev.Method, success, sample, res)
}
