// ABOUTME: Root cobra command for the folio reader CLI
// ABOUTME: Global flags select the client config, verbosity and output format

package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the folio CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "folio",
		Short: "folio - reading progress from the terminal",
		Long: `folio tracks how far you have read long-form articles.

Without a token, progress is kept in a local anonymous store. After
'folio login' progress is saved on the gateway and the anonymous store is
merged into it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultClientPath(), "client config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewMarkCommand(opts, true))
	cmd.AddCommand(NewMarkCommand(opts, false))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}
