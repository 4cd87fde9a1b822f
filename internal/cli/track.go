// ABOUTME: track command replaying a recorded reading trace through the tracker
// ABOUTME: Commits go to the local store or the gateway depending on login state

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/tracker"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	RemoteConfig bool
	Start        string
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track TRACE",
		Short: "Replay a reading trace and record progress",
		Long: `Replay a YAML trace of page geometry and events through the tracking
engine, committing progress exactly as a reader's browser would.

Example trace:

  post_id: 42
  page: 1
  total_pages: 2
  viewport_height: 800
  document_height: 4000
  events:
    - {at: 0s, kind: load, scroll_y: 0}
    - {at: 400ms, kind: scroll, scroll_y: 1200}
    - {at: 900ms, kind: tick}
    - {at: 2s, kind: close}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.RemoteConfig, "remote-config", false, "use the tracking settings published by the gateway")
	cmd.Flags().StringVar(&opts.Start, "start", "", "RFC 3339 time of the first event (default now)")

	return cmd
}

func runTrack(cmd *cobra.Command, opts *TrackOptions, path string) error {
	ctx := cmd.Context()

	tr, err := LoadTrace(path)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	if opts.Start != "" {
		start, err = time.Parse(time.RFC3339, opts.Start)
		if err != nil {
			return fmt.Errorf("parsing --start: %w", err)
		}
	}

	a, err := newApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Tracking.TrackerConfig()
	if opts.RemoteConfig {
		pub, err := a.remote.Config(ctx)
		if err != nil {
			a.logger.Warn("gateway config unavailable, using local settings", "error", err)
		} else {
			cfg = pub.Tracking.TrackerConfig()
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("tracking config: %w", err)
	}

	logger := a.logger
	observer := tracker.WithObserver(func(t tracker.Transition) {
		logger.Debug("transition",
			"kind", t.Kind,
			"page", t.Page,
			"sample", t.Sample,
			"overall", t.Overall,
			"stored", t.Stored,
			"peak", t.Peak,
			"no_save_zone", t.InNoSaveZone,
		)
	})

	id := progress.EntityID(tr.PostID)
	session := tracker.NewSession(cfg, id, tr.PageContext(), a.owner, a.adapter, a.logger, observer)
	steps, err := Replay(ctx, session, tr, start)
	if err != nil {
		return err
	}

	p := newPrinter(opts.RootOptions, cmd.OutOrStdout())
	if p.JSON() {
		return p.Emit(steps)
	}
	if len(steps) == 0 {
		p.Printf("No progress committed\n")
		return nil
	}
	for _, s := range steps {
		note := ""
		if s.Regression {
			note = " (regression)"
		} else if s.Status == progress.StatusLocked {
			note = " (marked read)"
		}
		p.Printf("%8s  %-7s %s  page %d at %.1f%%%s\n",
			s.At, s.Kind, percent(s.Overall), s.Page, s.PagePct, note)
	}
	return nil
}
