// ABOUTME: Immutable tuning configuration for the tracking decision engine
// ABOUTME: Documents the default thresholds and validates overrides

package tracker

import (
	"fmt"
	"time"

	"github.com/2389/folio-gateway/internal/sampler"
)

// Config holds the engine thresholds. It is passed by value and never
// mutated after an Engine is constructed.
type Config struct {
	// SaveStep is the granularity (in percent) of committed overall values.
	SaveStep float64
	// Throttle is the minimum interval between rate-limited evaluations.
	Throttle time.Duration
	// DecreaseDwell is how long a regressed reading must persist before
	// the regression is committed.
	DecreaseDwell time.Duration
	// TopNoSaveRatio bounds the no-save zone as a fraction of document height.
	TopNoSaveRatio float64
	// PeakGuardPercent is the peak overall above which the no-save zone applies.
	PeakGuardPercent float64
	// RegressionEpsilon is the margin below the stored overall that counts
	// as a meaningful decrease.
	RegressionEpsilon float64

	Sampler sampler.Config
}

// DefaultConfig returns the stock thresholds: 1% save step, 300ms throttle,
// 1200ms regression dwell, no-save zone in the top 15% once the reader has
// passed 50%, and a 0.1 point regression margin.
func DefaultConfig() Config {
	return Config{
		SaveStep:          1,
		Throttle:          300 * time.Millisecond,
		DecreaseDwell:     1200 * time.Millisecond,
		TopNoSaveRatio:    0.15,
		PeakGuardPercent:  50,
		RegressionEpsilon: 0.1,
		Sampler:           sampler.DefaultConfig(),
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SaveStep < 0 || c.SaveStep > 100 {
		return fmt.Errorf("save step must be in [0,100], got %v", c.SaveStep)
	}
	if c.Throttle < 0 {
		return fmt.Errorf("throttle must be >= 0, got %s", c.Throttle)
	}
	if c.DecreaseDwell < 0 {
		return fmt.Errorf("decrease dwell must be >= 0, got %s", c.DecreaseDwell)
	}
	if c.TopNoSaveRatio < 0 || c.TopNoSaveRatio > 1 {
		return fmt.Errorf("top no-save ratio must be in [0,1], got %v", c.TopNoSaveRatio)
	}
	if c.PeakGuardPercent < 0 || c.PeakGuardPercent > 100 {
		return fmt.Errorf("peak guard must be in [0,100], got %v", c.PeakGuardPercent)
	}
	if c.RegressionEpsilon < 0 {
		return fmt.Errorf("regression epsilon must be >= 0, got %v", c.RegressionEpsilon)
	}
	if err := c.Sampler.Validate(); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	return nil
}
