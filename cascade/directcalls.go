package cascade

import (
	"context"
	"net/url"
	"strings"

	"github.com/ovrld/bannerhound/adaptive"
)

// directCalls replays request templates from the adaptive snapshot one at
// a time under the shared rate limiter. Adaptive (learned) templates are
// tried before the static baseline ones.
func (r *Runner) directCalls(ctx context.Context, sess Session, pl *pool, res *Result) {
	if r.cfg.Provider == nil {
		return
	}
	snap := r.cfg.Provider.GetConfig(adaptive.ComponentCallTemplates)
	templates := orderTemplates(snap)
	entity := sess.Entity()

	for _, tpl := range templates {
		if ctx.Err() != nil {
			return
		}
		reqURL := strings.ReplaceAll(tpl, "{entity}", url.PathEscape(entity))

		if err := r.cfg.Limiter.Wait(ctx); err != nil {
			return
		}

		resp, err := r.cfg.Client.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			Get(reqURL)
		if err != nil {
			// Transient failures were already retried with backoff by
			// the client; what reaches here is final.
			r.cfg.Logger.Debug("cascade: direct call failed", "url", reqURL, "error", err)
			r.record(ctx, sess, StateDirectCalls, reqURL, "GET", false, nil, res)
			continue
		}

		code := resp.StatusCode()
		if code == 401 || code == 403 {
			res.TrustValid = false
			r.cfg.Logger.Warn("cascade: authorization failure, session trust invalidated",
				"entity", entity, "url", reqURL, "status", code)
			r.record(ctx, sess, StateDirectCalls, reqURL, "GET", false, nil, res)
			continue
		}
		if code >= 400 {
			r.record(ctx, sess, StateDirectCalls, reqURL, "GET", false, nil, res)
			continue
		}

		body := string(resp.Body())
		found := scanBody(body, r.cfg.Vocab)
		pooled := r.pools(found, StateDirectCalls, pl)

		success := pooled > 0 || r.cfg.Vocab.MatchesIndicator(body)
		var sample []byte
		if success {
			sample = []byte(body)
		}
		r.record(ctx, sess, StateDirectCalls, reqURL, "GET", success, sample, res)
	}
}

// orderTemplates puts learned templates first, then the static entries.
func orderTemplates(snap *adaptive.Snapshot) []string {
	adaptiveSet := make(map[string]bool, len(snap.Adaptive))
	out := make([]string, 0, len(snap.Entries))
	for _, t := range snap.Adaptive {
		adaptiveSet[t] = true
		out = append(out, t)
	}
	for _, t := range snap.Entries {
		if !adaptiveSet[t] {
			out = append(out, t)
		}
	}
	return out
}
