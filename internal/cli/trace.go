// ABOUTME: Recorded reading traces: page geometry plus a timeline of page events
// ABOUTME: Replays a trace through a tracking session and collects the commits

package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/sampler"
	"github.com/2389/folio-gateway/internal/tracker"
)

// Trace kinds handled by the replayer rather than Session.HandleEvent.
const (
	traceTick   = "tick"
	traceMark   = "mark"
	traceUnmark = "unmark"
	traceClose  = "close"
)

// Trace is a recorded view of one article page.
type Trace struct {
	PostID         int64        `yaml:"post_id"`
	URL            string       `yaml:"url"`
	Page           int          `yaml:"page"`
	TotalPages     int          `yaml:"total_pages"`
	ViewportHeight float64      `yaml:"viewport_height"`
	DocumentHeight float64      `yaml:"document_height"`
	Landmarks      []float64    `yaml:"landmarks"`
	Events         []TraceEvent `yaml:"events"`
}

// TraceEvent is one step of a trace. Geometry fields override the running
// geometry when set.
type TraceEvent struct {
	At    time.Duration `yaml:"-"`
	AtRaw string        `yaml:"at"`
	Kind  string        `yaml:"kind"`

	ScrollY        *float64 `yaml:"scroll_y"`
	ViewportHeight float64  `yaml:"viewport_height"`
	DocumentHeight float64  `yaml:"document_height"`
}

// Step is one commit produced while replaying a trace.
type Step struct {
	At         time.Duration   `json:"at"`
	Kind       string          `json:"kind"`
	Overall    float64         `json:"percent_overall"`
	Page       int             `json:"page"`
	PagePct    float64         `json:"page_percent"`
	Status     progress.Status `json:"status"`
	Regression bool            `json:"regression,omitempty"`
}

// LoadTrace reads and validates a YAML trace file.
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return ParseTrace(data)
}

// ParseTrace parses and validates a YAML trace.
func ParseTrace(data []byte) (*Trace, error) {
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}

	if !progress.EntityID(tr.PostID).Valid() {
		return nil, fmt.Errorf("trace: %w", progress.ErrInvalidEntity)
	}
	if tr.Page < 1 {
		tr.Page = 1
	}
	if tr.TotalPages < tr.Page {
		tr.TotalPages = tr.Page
	}
	if tr.ViewportHeight <= 0 || tr.DocumentHeight <= 0 {
		return nil, fmt.Errorf("trace: viewport_height and document_height must be positive")
	}

	var prev time.Duration
	for i := range tr.Events {
		ev := &tr.Events[i]
		if ev.AtRaw != "" {
			var err error
			ev.At, err = time.ParseDuration(ev.AtRaw)
			if err != nil {
				return nil, fmt.Errorf("trace event %d: parsing at %q: %w", i, ev.AtRaw, err)
			}
		}
		if ev.At < prev {
			return nil, fmt.Errorf("trace event %d: at %s is before %s", i, ev.At, prev)
		}
		prev = ev.At

		switch ev.Kind {
		case traceTick, traceMark, traceUnmark, traceClose:
		case string(tracker.EventLoad), string(tracker.EventScroll), string(tracker.EventResize),
			string(tracker.EventWheel), string(tracker.EventTouch), string(tracker.EventKey):
		default:
			return nil, fmt.Errorf("trace event %d: unknown kind %q", i, ev.Kind)
		}
	}
	return &tr, nil
}

// PageContext returns the pagination the trace was recorded on.
func (tr *Trace) PageContext() sampler.PageContext {
	return sampler.PageContext{CurrentPage: tr.Page, TotalPages: tr.TotalPages}
}

// InitialGeometry returns the geometry before the first event. A resume
// parameter in the trace URL sets the starting scroll offset.
func (tr *Trace) InitialGeometry() sampler.Geometry {
	g := sampler.Geometry{
		ViewportHeight: tr.ViewportHeight,
		DocumentHeight: tr.DocumentHeight,
		Landmarks:      tr.Landmarks,
	}
	if tr.URL == "" {
		return g
	}
	if u, err := url.Parse(tr.URL); err == nil {
		if pct, ok := sampler.ParseResumeParam(u.Query()); ok {
			g.ScrollY = sampler.ScrollTarget(pct, g)
		}
	}
	return g
}

// Replay feeds the trace through s, starting the clock at start, and returns
// every commit. The session is closed at the last event if the trace does
// not close it.
func Replay(ctx context.Context, s *tracker.Session, tr *Trace, start time.Time) ([]Step, error) {
	g := tr.InitialGeometry()
	var steps []Step
	record := func(at time.Duration, kind string, intent *tracker.CommitIntent) {
		if intent == nil {
			return
		}
		rec := intent.Record
		steps = append(steps, Step{
			At:         at,
			Kind:       kind,
			Overall:    rec.Overall,
			Page:       rec.LastPage,
			PagePct:    rec.Pages[rec.LastPage],
			Status:     rec.Status,
			Regression: intent.Regression,
		})
	}

	s.Open(ctx, start)

	var last time.Duration
	for _, ev := range tr.Events {
		now := start.Add(ev.At)
		last = ev.At
		if ev.ScrollY != nil {
			g.ScrollY = *ev.ScrollY
		}
		if ev.ViewportHeight > 0 {
			g.ViewportHeight = ev.ViewportHeight
		}
		if ev.DocumentHeight > 0 {
			g.DocumentHeight = ev.DocumentHeight
		}

		switch ev.Kind {
		case traceTick:
			record(ev.At, ev.Kind, s.Tick(ctx, now))
		case traceMark, traceUnmark:
			rec, err := s.Mark(ctx, ev.Kind == traceMark, now)
			if err != nil {
				return steps, fmt.Errorf("%s at %s: %w", ev.Kind, ev.At, err)
			}
			record(ev.At, ev.Kind, &tracker.CommitIntent{Record: rec})
		case traceClose:
			record(ev.At, ev.Kind, s.Close(ctx, now))
			return steps, nil
		default:
			record(ev.At, ev.Kind, s.HandleEvent(ctx, tracker.Event{
				Kind:     tracker.EventKind(ev.Kind),
				At:       now,
				Geometry: g,
			}))
		}
	}

	record(last, traceClose, s.Close(ctx, start.Add(last)))
	return steps, nil
}
