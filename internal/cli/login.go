// ABOUTME: login and logout commands storing the gateway token in the client config
// ABOUTME: Logging in merges the anonymous store into the gateway

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/auth"
	"github.com/2389/folio-gateway/internal/config"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	URL    string
	NoSync bool
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login TOKEN",
		Short: "Save a gateway token and merge local progress into it",
		Long: `Save the token issued by 'folio-gateway reader add' or
'folio-gateway token' in the client config.

Unless --no-sync is given, anonymous progress recorded on this machine is
then pushed to the gateway (newer records win) and the local store is
cleared.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "gateway base URL (kept from config when empty)")
	cmd.Flags().BoolVar(&opts.NoSync, "no-sync", false, "do not merge local progress")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *LoginOptions, token string) error {
	sub, err := auth.Subject(token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg.Gateway.Token = token
	if opts.URL != "" {
		cfg.Gateway.URL = opts.URL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveClient(opts.ConfigPath, cfg); err != nil {
		return fmt.Errorf("saving client config: %w", err)
	}

	p := newPrinter(opts.RootOptions, cmd.OutOrStdout())
	if !p.JSON() {
		p.Printf("Logged in as %s\n", sub)
	}
	if opts.NoSync {
		return nil
	}

	a, err := newApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return reportSync(p, a.reconcile(cmd.Context()))
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the gateway token; progress is kept locally again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			cfg.Gateway.Token = ""
			if err := config.SaveClient(rootOpts.ConfigPath, cfg); err != nil {
				return fmt.Errorf("saving client config: %w", err)
			}
			newPrinter(rootOpts, cmd.OutOrStdout()).Printf("Logged out\n")
			return nil
		},
	}
}
