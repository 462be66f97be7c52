package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/ovrld/bannerhound/cascade"
)

// SessionConfig configures one page session.
type SessionConfig struct {
	// NavTimeout bounds navigation and load wait. Default: 30s.
	NavTimeout time.Duration

	// QueueDepth caps the pending network-event queue (drop-oldest).
	// Default: 256.
	QueueDepth int

	// MaxBodyBytes caps fetched response bodies. Default: 2MB.
	MaxBodyBytes int

	Logger *slog.Logger
}

func (c *SessionConfig) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 2 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is the rod-backed implementation of cascade.Session: one
// stealth tab on a target profile page with CDP network interception
// feeding a bounded event queue.
type Session struct {
	cfg    SessionConfig
	page   *rod.Page
	entity string
	url    string
	queue  *cascade.EventQueue
}

// OpenSession opens a stealth tab, navigates to pageURL, and starts
// network interception. entity is the resolved entity identifier for
// this profile.
func OpenSession(ctx context.Context, mgr *Manager, pageURL, entity string, cfg SessionConfig) (*Session, error) {
	cfg.defaults()

	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create stealth tab: %w", err)
	}

	s := &Session{
		cfg:    cfg,
		page:   page,
		entity: entity,
		url:    pageURL,
		queue:  cascade.NewEventQueue(cfg.QueueDepth),
	}

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: enable network domain: %w", err)
	}
	s.subscribe()

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return s, nil
}

// subscribe pumps CDP response events into the bounded queue. Bodies are
// fetched only for document/JSON-bearing responses; the queue applies a
// drop-oldest policy when the cascade lags. The pump stops when the tab
// closes.
func (s *Session) subscribe() {
	requests := make(map[proto.NetworkRequestID]*proto.NetworkRequest)

	wait := s.page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			requests[e.RequestID] = e.Request
		},
		func(e *proto.NetworkLoadingFinished) {
			delete(requests, e.RequestID)
		},
		func(e *proto.NetworkResponseReceived) {
			req := requests[e.RequestID]
			method := "GET"
			if req != nil {
				method = req.Method
			}

			ev := cascade.NetworkEvent{
				URL:        e.Response.URL,
				Method:     method,
				Status:     e.Response.Status,
				ReceivedAt: time.Now(),
			}
			if wantsBody(e.Response.MIMEType) {
				body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(s.page)
				if err == nil {
					raw := body.Body
					if len(raw) > s.cfg.MaxBodyBytes {
						raw = raw[:s.cfg.MaxBodyBytes]
					}
					ev.Body = raw
				}
			}
			s.queue.Push(ev)
		},
	)
	go wait()
}

func wantsBody(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.Contains(mime, "json") ||
		strings.Contains(mime, "html") ||
		strings.Contains(mime, "javascript") ||
		strings.Contains(mime, "text/plain")
}

// Entity implements cascade.Session.
func (s *Session) Entity() string { return s.entity }

// URL returns the profile page address.
func (s *Session) URL() string { return s.url }

// Events implements cascade.Session.
func (s *Session) Events() <-chan cascade.NetworkEvent { return s.queue.Events() }

// Provoke performs one light interaction: scroll halfway down and back,
// which triggers lazy-loaded sections and their API traffic.
func (s *Session) Provoke(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => {
		window.scrollTo({ top: document.body.scrollHeight / 2 });
		setTimeout(() => window.scrollTo({ top: 0 }), 500);
	}`)
	if err != nil {
		return fmt.Errorf("browser: provoke: %w", err)
	}
	return nil
}

// RenderedHTML serialises the complete rendered DOM as outer HTML.
func (s *Session) RenderedHTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: rendered html: %w", err)
	}
	return res.Value.Str(), nil
}

// QueryVisible implements cascade.Session: the attributes of the first
// visible element matching selector.
func (s *Session) QueryVisible(ctx context.Context, selector string) (map[string]string, bool) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil || len(els) == 0 {
		return nil, false
	}

	for _, el := range els {
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		node, err := el.Describe(0, false)
		if err != nil {
			continue
		}
		attrs := make(map[string]string, len(node.Attributes)/2)
		for i := 0; i+1 < len(node.Attributes); i += 2 {
			attrs[node.Attributes[i]] = node.Attributes[i+1]
		}
		return attrs, true
	}
	return nil, false
}

// Close closes the tab and the event queue.
func (s *Session) Close() error {
	s.queue.Close()
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}
