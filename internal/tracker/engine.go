// ABOUTME: Per-article decision engine deciding whether and what to commit for each sample
// ABOUTME: Applies fill-forward, dwell-gated anti-regression, the no-save zone and the commit step

package tracker

import (
	"math"
	"time"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/sampler"
)

// TransitionKind names an engine decision reported to an Observer.
type TransitionKind string

// Transition kinds
const (
	TransitionSkipLocked   TransitionKind = "skip_locked"
	TransitionSkipColdLoad TransitionKind = "skip_cold_load"
	TransitionDwellStart   TransitionKind = "dwell_start"
	TransitionDwellWait    TransitionKind = "dwell_wait"
	TransitionDwellReset   TransitionKind = "dwell_reset"
	TransitionBelowStep    TransitionKind = "below_step"
	TransitionCommit       TransitionKind = "commit"
)

// Transition describes one evaluation of the engine.
type Transition struct {
	Kind         TransitionKind
	At           time.Time
	Page         int
	Sample       float64 // current page completion
	Overall      float64 // provisional overall for this sample
	Stored       float64 // overall of the record before this sample
	Peak         float64
	InNoSaveZone bool
	Regression   bool
}

// Observer receives engine transitions. It must not call back into the engine.
type Observer func(Transition)

// CommitIntent is the record to persist after an accepted sample.
type CommitIntent struct {
	Record *progress.Record
	// Regression is set when the commit lowers the stored overall after a
	// completed dwell.
	Regression bool
}

// Engine is the state machine tracking one article for one viewing session.
// It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	sampler  *sampler.Sampler
	observer Observer

	rec           *progress.Record
	lastCommitted float64
	locked        bool
	peak          float64

	dwelling    bool
	dwellStart  time.Time
	dwellRef    float64
	dwellInZone bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver installs a debug hook receiving every transition.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine for rec, which should already be normalized.
// The peak starts at the stored overall.
func NewEngine(cfg Config, rec *progress.Record, opts ...Option) *Engine {
	e := &Engine{
		cfg:           cfg,
		sampler:       sampler.New(cfg.Sampler),
		rec:           rec.Clone(),
		lastCommitted: -1,
		locked:        rec.Locked(),
		peak:          progress.Clamp(rec.Overall, 0, 100),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NoteInteraction records a real user interaction with the page.
func (e *Engine) NoteInteraction() {
	e.sampler.NoteInteraction()
}

// WouldLatch reports whether the given geometry reaches the end-of-content latch.
func (e *Engine) WouldLatch(g sampler.Geometry, p sampler.PageContext) bool {
	return e.sampler.WouldLatch(g, e.pageContext(p))
}

// SetLocked suppresses (true) or resumes (false) tracking.
func (e *Engine) SetLocked(locked bool) {
	e.locked = locked
	e.resetDwell()
}

// SetRecord replaces the tracked record, for example after an explicit
// mark or unmark. The lock state follows the record status.
func (e *Engine) SetRecord(rec *progress.Record) {
	e.rec = rec.Clone()
	e.SetLocked(rec.Locked())
}

// Locked reports whether tracking is suppressed.
func (e *Engine) Locked() bool {
	return e.locked
}

// Peak returns the highest overall committed or loaded in this session.
func (e *Engine) Peak() float64 {
	return e.peak
}

// Record returns a copy of the tracked record.
func (e *Engine) Record() *progress.Record {
	return e.rec.Clone()
}

// OnSample evaluates one sample and returns the record to persist, or nil
// when nothing should be committed.
func (e *Engine) OnSample(g sampler.Geometry, p sampler.PageContext, now time.Time) *CommitIntent {
	if e.locked {
		e.emit(Transition{Kind: TransitionSkipLocked, At: now, Stored: e.rec.Overall, Peak: e.peak})
		return nil
	}

	p = e.resize(p, now)
	reading := e.sampler.Sample(g, p)
	page := p.CurrentPage

	pages := e.rec.Pages.Clone()
	pages[page] = reading.Percent
	pages = progress.FillForward(pages, page)
	overall := progress.ComputeOverall(pages, e.rec.TotalPages)

	t := Transition{
		At:      now,
		Page:    page,
		Sample:  reading.Percent,
		Overall: overall,
		Stored:  e.rec.Overall,
		Peak:    e.peak,
	}

	if p.SinglePage() && reading.Percent >= 100 && g.ScrollY < e.cfg.Sampler.ColdLoadOffsetPx {
		t.Kind = TransitionSkipColdLoad
		e.emit(t)
		return nil
	}

	t.InNoSaveZone = reading.CenterRatio <= e.cfg.TopNoSaveRatio && e.peak >= e.cfg.PeakGuardPercent

	if overall < e.rec.Overall-e.cfg.RegressionEpsilon {
		accepted, kind := e.dwell(overall, t.InNoSaveZone, now)
		if !accepted {
			t.Kind = kind
			e.emit(t)
			return nil
		}
		t.Regression = true
	} else if e.dwelling {
		e.resetDwell()
		e.emit(Transition{Kind: TransitionDwellReset, At: now, Page: page, Sample: reading.Percent, Overall: overall, Stored: e.rec.Overall, Peak: e.peak})
	}

	rounded := progress.RoundDown(overall, e.cfg.SaveStep)
	// Accepted regressions skip the step check, which would drop them as no gain.
	if !t.Regression && rounded <= e.lastCommitted && reading.Percent < 100 {
		t.Kind = TransitionBelowStep
		e.emit(t)
		return nil
	}

	e.rec.Pages = pages
	e.rec.LastPage = page
	e.rec.Overall = overall
	e.rec.Status = progress.StatusReading
	e.rec.UpdatedAt = now
	e.lastCommitted = rounded
	e.peak = math.Max(e.peak, overall)

	t.Kind = TransitionCommit
	t.Peak = e.peak
	e.emit(t)

	return &CommitIntent{Record: e.rec.Clone(), Regression: t.Regression}
}

// dwell tracks a pending regression and reports whether it has persisted
// long enough to commit. Inside the no-save zone the reference stays at the
// first regressed level; outside it follows the latest sample. Moving above
// the reference, or crossing the zone boundary, restarts the timer.
func (e *Engine) dwell(overall float64, inZone bool, now time.Time) (bool, TransitionKind) {
	kind := TransitionDwellWait
	if !e.dwelling || inZone != e.dwellInZone || overall > e.dwellRef {
		e.dwelling = true
		e.dwellStart = now
		e.dwellRef = overall
		e.dwellInZone = inZone
		kind = TransitionDwellStart
	} else if !inZone {
		e.dwellRef = overall
	}

	if now.Sub(e.dwellStart) < e.cfg.DecreaseDwell {
		return false, kind
	}
	e.resetDwell()
	return true, TransitionCommit
}

func (e *Engine) resetDwell() {
	e.dwelling = false
	e.dwellStart = time.Time{}
	e.dwellRef = 0
	e.dwellInZone = false
}

// resize adopts the pagination reported by the page and clamps the current
// page into range.
func (e *Engine) resize(p sampler.PageContext, now time.Time) sampler.PageContext {
	if p.TotalPages >= 1 && p.TotalPages != e.rec.TotalPages {
		e.rec = progress.WithTotalPages(e.rec, p.TotalPages, now)
	}
	return e.pageContext(p)
}

func (e *Engine) pageContext(p sampler.PageContext) sampler.PageContext {
	total := e.rec.TotalPages
	if p.TotalPages >= 1 {
		total = p.TotalPages
	}
	page := p.CurrentPage
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	return sampler.PageContext{CurrentPage: page, TotalPages: total}
}

func (e *Engine) emit(t Transition) {
	if e.observer != nil {
		e.observer(t)
	}
}
