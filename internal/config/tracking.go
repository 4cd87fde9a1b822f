// ABOUTME: Tracking tunables shared by the gateway YAML config and the client TOML config
// ABOUTME: Converts to tracker.Config and is published to clients by GET /config

package config

import (
	"fmt"
	"time"

	"github.com/2389/folio-gateway/internal/sampler"
	"github.com/2389/folio-gateway/internal/tracker"
)

// Tracking holds the commit-engine tunables.
type Tracking struct {
	SaveStep          float64 `yaml:"save_step" toml:"save_step" json:"save_step"`
	TopNoSaveRatio    float64 `yaml:"top_no_save_ratio" toml:"top_no_save_ratio" json:"top_no_save_ratio"`
	PeakGuardPercent  float64 `yaml:"peak_guard_percent" toml:"peak_guard_percent" json:"peak_guard_percent"`
	RegressionEpsilon float64 `yaml:"regression_epsilon" toml:"regression_epsilon" json:"regression_epsilon"`

	Throttle      time.Duration `yaml:"-" toml:"-" json:"-"`
	DecreaseDwell time.Duration `yaml:"-" toml:"-" json:"-"`

	// Raw string values for unmarshaling
	ThrottleRaw      string `yaml:"throttle" toml:"throttle" json:"throttle"`
	DecreaseDwellRaw string `yaml:"decrease_dwell" toml:"decrease_dwell" json:"decrease_dwell"`

	Sampler sampler.Config `yaml:"sampler" toml:"sampler" json:"sampler"`
}

// DefaultTracking returns the stock engine tunables.
func DefaultTracking() Tracking {
	return FromTrackerConfig(tracker.DefaultConfig())
}

// FromTrackerConfig builds the serializable form of c.
func FromTrackerConfig(c tracker.Config) Tracking {
	return Tracking{
		SaveStep:          c.SaveStep,
		TopNoSaveRatio:    c.TopNoSaveRatio,
		PeakGuardPercent:  c.PeakGuardPercent,
		RegressionEpsilon: c.RegressionEpsilon,
		Throttle:          c.Throttle,
		DecreaseDwell:     c.DecreaseDwell,
		ThrottleRaw:       c.Throttle.String(),
		DecreaseDwellRaw:  c.DecreaseDwell.String(),
		Sampler:           c.Sampler,
	}
}

// TrackerConfig converts t into the engine configuration.
func (t Tracking) TrackerConfig() tracker.Config {
	return tracker.Config{
		SaveStep:          t.SaveStep,
		Throttle:          t.Throttle,
		DecreaseDwell:     t.DecreaseDwell,
		TopNoSaveRatio:    t.TopNoSaveRatio,
		PeakGuardPercent:  t.PeakGuardPercent,
		RegressionEpsilon: t.RegressionEpsilon,
		Sampler:           t.Sampler,
	}
}

// ParseDurations fills Throttle and DecreaseDwell from their raw strings.
func (t *Tracking) ParseDurations() error {
	var err error

	if t.ThrottleRaw != "" {
		t.Throttle, err = time.ParseDuration(t.ThrottleRaw)
		if err != nil {
			return fmt.Errorf("parsing throttle %q: %w", t.ThrottleRaw, err)
		}
	}

	if t.DecreaseDwellRaw != "" {
		t.DecreaseDwell, err = time.ParseDuration(t.DecreaseDwellRaw)
		if err != nil {
			return fmt.Errorf("parsing decrease_dwell %q: %w", t.DecreaseDwellRaw, err)
		}
	}

	return nil
}

// Published is the tracking configuration a gateway serves at GET /config,
// so that every client commits progress the same way.
type Published struct {
	Tracking    Tracking `json:"tracking"`
	ResumeParam string   `json:"resume_param"`
	AuthEnabled bool     `json:"auth_enabled"`
}
