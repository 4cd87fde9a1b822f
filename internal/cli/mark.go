// ABOUTME: mark, unmark and status commands for a single article
// ABOUTME: Marking goes through the persistence adapter so the gateway applies it when logged in

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// NewMarkCommand creates the mark command, or unmark when locked is false.
func NewMarkCommand(rootOpts *RootOptions, locked bool) *cobra.Command {
	use, short := "mark ID", "Mark an article as read"
	if !locked {
		use, short = "unmark ID", "Return a marked article to reading"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := progress.ParseEntityID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			now := time.Now().UTC()
			rec, err := a.adapter.Load(ctx, a.owner, id)
			if errors.Is(err, store.ErrNotFound) {
				rec = progress.NewRecord(id, a.catalogPages(cmd, id), now)
			} else if err != nil {
				return fmt.Errorf("loading progress: %w", err)
			}

			out, err := a.adapter.Mark(ctx, a.owner, rec, locked, now)
			if err != nil {
				return fmt.Errorf("saving progress: %w", err)
			}
			return printRecord(newPrinter(rootOpts, cmd.OutOrStdout()), out)
		},
	}
}

// catalogPages returns the article's page count from the gateway catalog,
// or 1 when it cannot be looked up.
func (a *app) catalogPages(cmd *cobra.Command, id progress.EntityID) int {
	meta, err := a.remote.Lookup(cmd.Context(), []progress.EntityID{id})
	if err != nil {
		a.logger.Debug("lookup failed", "post_id", id, "error", err)
		return 1
	}
	if m, ok := meta[id]; ok && m.TotalPages > 0 {
		return m.TotalPages
	}
	return 1
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show stored progress for an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := progress.ParseEntityID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.adapter.Load(cmd.Context(), a.owner, id)
			if err != nil {
				return fmt.Errorf("loading progress: %w", err)
			}
			return printRecord(newPrinter(rootOpts, cmd.OutOrStdout()), rec)
		},
	}
}

func printRecord(p *printer, rec *progress.Record) error {
	if p.JSON() {
		return p.Emit(rec)
	}
	p.Printf("#%s  %s  %s\n", rec.PostID, percent(rec.Overall), rec.Status)
	for page := 1; page <= rec.TotalPages; page++ {
		marker := " "
		if page == rec.LastPage {
			marker = "▸"
		}
		p.Printf("  %s page %d: %.1f%%\n", marker, page, rec.Pages[page])
	}
	p.Printf("  updated %s\n", rec.UpdatedAt.Local().Format(time.DateTime))
	return nil
}
