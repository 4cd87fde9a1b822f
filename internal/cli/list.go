// ABOUTME: list command showing articles still in progress with resume links
// ABOUTME: Logged in it asks the gateway; logged out it joins local records with catalog lookups

package cli

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/progress"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Limit int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles you are still reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.readings(cmd.Context(), opts.Limit)
			if err != nil {
				return err
			}

			p := newPrinter(opts.RootOptions, cmd.OutOrStdout())
			if p.JSON() {
				return p.Emit(items)
			}
			if len(items) == 0 {
				p.Printf("Nothing in progress\n")
				return nil
			}
			for _, it := range items {
				title := it.Title
				if title == "" {
					title = "#" + it.PostID.String()
				}
				p.Printf("%s  %s\n", percent(it.Overall), title)
				if it.ResumeURL != "" {
					p.Printf("        %s\n", it.ResumeURL)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 5, "maximum number of articles")

	return cmd
}

// readings lists in-progress articles, most recent first.
func (a *app) readings(ctx context.Context, limit int) ([]progress.ReadingItem, error) {
	if a.owner.Authenticated() {
		return a.remote.Readings(ctx, limit)
	}

	all, err := a.local.List(ctx)
	if err != nil {
		a.logger.Debug("local read failed", "error", err)
		return []progress.ReadingItem{}, nil
	}

	var recs []*progress.Record
	for _, rec := range all {
		if progress.InProgress(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})

	ids := make([]progress.EntityID, len(recs))
	for i, rec := range recs {
		ids[i] = rec.PostID
	}
	meta, lookupErr := a.remote.Lookup(ctx, ids)
	if lookupErr != nil {
		a.logger.Debug("lookup failed, listing without titles", "error", lookupErr)
	}

	items := []progress.ReadingItem{}
	for _, rec := range recs {
		m, ok := meta[rec.PostID]
		if !ok {
			if lookupErr == nil {
				// Unknown or hidden article.
				continue
			}
			m = progress.ArticleMeta{ID: rec.PostID}
		}
		item := progress.NewReadingItem(rec, m)
		if m.Permalink == "" {
			item.ResumeURL = ""
		}
		items = append(items, item)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}
