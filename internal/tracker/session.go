// ABOUTME: Tracking session binding one article view to an engine, limiter and persistence
// ABOUTME: Dispatches page events, releases trailing evaluations and flushes on close

package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/folio-gateway/internal/persist"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/sampler"
)

// EventKind is the kind of a page event.
type EventKind string

// Event kinds
const (
	EventLoad   EventKind = "load"
	EventScroll EventKind = "scroll"
	EventResize EventKind = "resize"
	EventWheel  EventKind = "wheel"
	EventTouch  EventKind = "touch"
	EventKey    EventKind = "key"
)

// Interaction reports whether the event is a real user interaction.
func (k EventKind) Interaction() bool {
	switch k {
	case EventScroll, EventWheel, EventTouch, EventKey:
		return true
	}
	return false
}

// Event is one page event with the geometry observed at that moment.
type Event struct {
	Kind     EventKind
	At       time.Time
	Geometry sampler.Geometry
}

// Session tracks one article for one viewer. Events must be delivered from a
// single goroutine.
type Session struct {
	cfg     Config
	id      progress.EntityID
	page    sampler.PageContext
	owner   persist.Owner
	adapter *persist.Adapter
	logger  *slog.Logger
	opts    []Option

	engine  *Engine
	limiter *Limiter
	geom    sampler.Geometry
	hasGeom bool
	closed  bool
}

// NewSession creates a session for article id viewed at page.
func NewSession(cfg Config, id progress.EntityID, page sampler.PageContext, owner persist.Owner, adapter *persist.Adapter, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:     cfg,
		id:      id,
		page:    page,
		owner:   owner,
		adapter: adapter,
		logger:  logger.With("component", "tracker", "post_id", id),
		opts:    opts,
		limiter: NewLimiter(cfg.Throttle),
	}
}

// Open loads the stored record, resized to the viewed pagination, and
// starts the engine. A record that cannot be loaded starts fresh.
func (s *Session) Open(ctx context.Context, now time.Time) *progress.Record {
	rec := s.adapter.LoadOrNew(ctx, s.owner, s.id, s.page.TotalPages, now)
	s.engine = NewEngine(s.cfg, rec, s.opts...)
	s.logger.Debug("session opened",
		"overall", rec.Overall,
		"status", rec.Status,
		"page", s.page.CurrentPage,
		"total_pages", s.page.TotalPages,
	)
	return rec.Clone()
}

// Engine returns the session's engine. It is nil until Open.
func (s *Session) Engine() *Engine {
	return s.engine
}

// HandleEvent processes one page event and returns the committed record, if
// any. Load evaluates immediately. Scroll and resize go through the rate
// limiter, except that a scroll reaching the end-of-content latch is
// evaluated at once.
func (s *Session) HandleEvent(ctx context.Context, ev Event) *CommitIntent {
	if s.engine == nil || s.closed {
		return nil
	}
	if ev.Kind.Interaction() {
		s.engine.NoteInteraction()
	}

	switch ev.Kind {
	case EventLoad:
		s.observe(ev.Geometry)
		return s.evaluate(ctx, ev.At)
	case EventScroll:
		s.observe(ev.Geometry)
		if s.engine.WouldLatch(s.geom, s.page) {
			s.limiter.Flush()
			return s.evaluate(ctx, ev.At)
		}
		if s.limiter.Allow(ev.At) {
			return s.evaluate(ctx, ev.At)
		}
	case EventResize:
		s.observe(ev.Geometry)
		if s.limiter.Allow(ev.At) {
			return s.evaluate(ctx, ev.At)
		}
	}
	return nil
}

// Tick releases a pending trailing evaluation once the throttle interval
// has passed.
func (s *Session) Tick(ctx context.Context, now time.Time) *CommitIntent {
	if s.engine == nil || s.closed || !s.hasGeom {
		return nil
	}
	if s.limiter.Tick(now) {
		return s.evaluate(ctx, now)
	}
	return nil
}

// Mark explicitly marks (locked) or unmarks the article. Marking suppresses
// tracking until unmarked.
func (s *Session) Mark(ctx context.Context, locked bool, now time.Time) (*progress.Record, error) {
	if s.engine == nil {
		s.Open(ctx, now)
	}
	rec, err := s.adapter.Mark(ctx, s.owner, s.engine.Record(), locked, now)
	if err != nil {
		s.logger.Debug("mark failed", "locked", locked, "error", err)
		s.engine.SetRecord(progress.ApplyMark(s.engine.Record(), locked, now))
		return nil, err
	}
	s.engine.SetRecord(rec)
	return rec, nil
}

// Close performs one final evaluation bypassing the limiter, then waits for
// in-flight commits. It is best-effort and safe to call more than once.
func (s *Session) Close(ctx context.Context, now time.Time) *CommitIntent {
	if s.engine == nil || s.closed {
		return nil
	}
	var intent *CommitIntent
	if s.hasGeom {
		intent = s.evaluate(ctx, now)
	}
	s.closed = true
	s.adapter.Wait()
	return intent
}

func (s *Session) observe(g sampler.Geometry) {
	s.geom = g
	s.hasGeom = true
}

func (s *Session) evaluate(ctx context.Context, now time.Time) *CommitIntent {
	intent := s.engine.OnSample(s.geom, s.page, now)
	if intent == nil {
		return nil
	}
	s.adapter.Commit(ctx, s.owner, intent.Record)
	return intent
}
