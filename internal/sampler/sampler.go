// ABOUTME: Position sampler turning scroll geometry into a page completion reading
// ABOUTME: Implements the end-of-content latch with hysteresis and the cold-load guard

package sampler

import (
	"fmt"

	"github.com/2389/folio-gateway/internal/progress"
)

// Geometry is a snapshot of the viewport and document.
type Geometry struct {
	ScrollY        float64 // scroll offset of the viewport top
	ViewportHeight float64
	DocumentHeight float64
	// Landmarks holds the top Y (document coordinates) of tail elements such
	// as the footnote block, pagination block or page footer.
	Landmarks []float64
}

// center returns the document Y of the viewport center.
func (g Geometry) center() float64 {
	return g.ScrollY + g.ViewportHeight/2
}

// bottom returns the document Y of the viewport bottom edge.
func (g Geometry) bottom() float64 {
	return g.ScrollY + g.ViewportHeight
}

func (g Geometry) docHeight() float64 {
	if g.DocumentHeight < 1 {
		return 1
	}
	return g.DocumentHeight
}

// PageContext is the pagination of the document being viewed.
type PageContext struct {
	CurrentPage int
	TotalPages  int
}

// SinglePage reports whether the article has only one page.
func (p PageContext) SinglePage() bool {
	return p.TotalPages <= 1
}

// LastPage reports whether the current page is the final page.
func (p PageContext) LastPage() bool {
	return p.SinglePage() || p.CurrentPage == p.TotalPages
}

// Config holds the latch and guard thresholds. The margins are empirically
// tuned defaults, exposed for tuning.
type Config struct {
	EnterMarginPx     float64 `yaml:"enter_margin_px" toml:"enter_margin_px" json:"enter_margin_px"`
	ExitMarginPx      float64 `yaml:"exit_margin_px" toml:"exit_margin_px" json:"exit_margin_px"`
	LandmarkRetreatPx float64 `yaml:"landmark_retreat_px" toml:"landmark_retreat_px" json:"landmark_retreat_px"`
	LandmarkMinRatio  float64 `yaml:"landmark_min_ratio" toml:"landmark_min_ratio" json:"landmark_min_ratio"`
	ColdLoadOffsetPx  float64 `yaml:"cold_load_offset_px" toml:"cold_load_offset_px" json:"cold_load_offset_px"`
	ColdLoadCap       float64 `yaml:"cold_load_cap" toml:"cold_load_cap" json:"cold_load_cap"`
}

// DefaultConfig returns the stock thresholds: enter within 2px of the
// document bottom, exit once 40px short and 120px above the landmark, accept
// landmarks in the lower 60% of the document, cap single-page samples at
// 99.9 while the viewport is within 10px of the top.
func DefaultConfig() Config {
	return Config{
		EnterMarginPx:     2,
		ExitMarginPx:      40,
		LandmarkRetreatPx: 120,
		LandmarkMinRatio:  0.40,
		ColdLoadOffsetPx:  10,
		ColdLoadCap:       99.9,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.EnterMarginPx < 0 || c.ExitMarginPx < c.EnterMarginPx {
		return fmt.Errorf("exit margin (%v) must be >= enter margin (%v) >= 0", c.ExitMarginPx, c.EnterMarginPx)
	}
	if c.LandmarkRetreatPx < 0 {
		return fmt.Errorf("landmark retreat must be >= 0, got %v", c.LandmarkRetreatPx)
	}
	if c.LandmarkMinRatio < 0 || c.LandmarkMinRatio > 1 {
		return fmt.Errorf("landmark min ratio must be in [0,1], got %v", c.LandmarkMinRatio)
	}
	if c.ColdLoadCap <= 0 || c.ColdLoadCap >= 100 {
		return fmt.Errorf("cold load cap must be in (0,100), got %v", c.ColdLoadCap)
	}
	return nil
}

// Reading is one sample of the current page.
type Reading struct {
	Percent     float64 // completion of the current page, [0,100]
	AtBottom    bool    // end-of-content latch state after this sample
	CenterRatio float64 // viewport center as a fraction of document height
}

// RawPercent returns the viewport-center completion percentage.
func RawPercent(g Geometry) float64 {
	return progress.Clamp(100*g.center()/g.docHeight(), 0, 100)
}

// CenterRatio returns the viewport center as a fraction of document height.
func CenterRatio(g Geometry) float64 {
	return g.center() / g.docHeight()
}

// Sampler produces readings and owns the end-of-content latch. It is not
// safe for concurrent use; one sampler belongs to one tracking session.
type Sampler struct {
	cfg        Config
	latched    bool
	interacted bool
}

// New creates a sampler with the given thresholds.
func New(cfg Config) *Sampler {
	return &Sampler{cfg: cfg}
}

// NoteInteraction records a real user interaction. Until the first one the
// sampler never reports AtBottom.
func (s *Sampler) NoteInteraction() {
	s.interacted = true
}

// Interacted reports whether an interaction has been observed.
func (s *Sampler) Interacted() bool {
	return s.interacted
}

// Latched reports the current latch state.
func (s *Sampler) Latched() bool {
	return s.latched
}

// WouldLatch reports the latch state the next Sample would produce, without
// changing it.
func (s *Sampler) WouldLatch(g Geometry, p PageContext) bool {
	return s.nextLatch(g, p)
}

// Sample reads the current page completion and advances the latch.
func (s *Sampler) Sample(g Geometry, p PageContext) Reading {
	s.latched = s.nextLatch(g, p)

	percent := RawPercent(g)
	if s.latched {
		percent = 100
	}
	if p.SinglePage() && g.ScrollY < s.cfg.ColdLoadOffsetPx && percent > s.cfg.ColdLoadCap {
		percent = s.cfg.ColdLoadCap
	}

	return Reading{
		Percent:     percent,
		AtBottom:    s.latched,
		CenterRatio: CenterRatio(g),
	}
}

func (s *Sampler) nextLatch(g Geometry, p PageContext) bool {
	if !p.LastPage() || !s.interacted {
		return false
	}
	if s.latched {
		return !s.shouldExit(g)
	}
	return s.shouldEnter(g)
}

func (s *Sampler) shouldEnter(g Geometry) bool {
	if g.bottom() >= g.docHeight()-s.cfg.EnterMarginPx {
		return true
	}
	center := g.center()
	for _, top := range s.landmarks(g) {
		if center >= top {
			return true
		}
	}
	return false
}

// shouldExit requires the viewport bottom to fall clearly short of the
// document end and the center to retreat clearly above every landmark.
func (s *Sampler) shouldExit(g Geometry) bool {
	if g.bottom() >= g.docHeight()-s.cfg.ExitMarginPx {
		return false
	}
	center := g.center()
	for _, top := range s.landmarks(g) {
		if center >= top-s.cfg.LandmarkRetreatPx {
			return false
		}
	}
	return true
}

// landmarks returns the landmark tops that sit in the lower part of the
// document; landmarks appearing early are ignored.
func (s *Sampler) landmarks(g Geometry) []float64 {
	minTop := s.cfg.LandmarkMinRatio * g.docHeight()
	out := make([]float64, 0, len(g.Landmarks))
	for _, top := range g.Landmarks {
		if top >= minTop {
			out = append(out, top)
		}
	}
	return out
}
