// ABOUTME: sync command merging the anonymous local store into the gateway
// ABOUTME: Uses the reconciler; a no-op when logged out or nothing is stored locally

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/reconcile"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push anonymous progress to the gateway",
		Long: `Push progress recorded while logged out to the gateway.

A local record is pushed when the gateway has none for the article or an
older one. Unlocked records at 100% are skipped. The local store is cleared
afterwards, whether or not every push succeeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return reportSync(newPrinter(rootOpts, cmd.OutOrStdout()), a.reconcile(cmd.Context()))
		},
	}
}

func (a *app) reconcile(ctx context.Context) reconcile.Result {
	r := reconcile.New(a.local, a.remote, a.owner, reconcile.WithLogger(a.logger))
	return r.Run(ctx)
}

func reportSync(p *printer, res reconcile.Result) error {
	if p.JSON() {
		return p.Emit(res)
	}
	if !res.Ran {
		p.Printf("Nothing to sync\n")
		return nil
	}
	p.Printf("Synced: %d scanned, %d pushed, %d skipped, %d failed\n",
		res.Scanned, res.Pushed, res.Skipped, res.Failed)
	return nil
}
