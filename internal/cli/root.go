package cli

import (
	"github.com/spf13/cobra"

	"github.com/dummy-intern104/invex-ai/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Token string
}

// NewRootCommand creates the root command for the invexsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "invexsync",
		Short: "Local-first sync engine for invex inventory data",
		Long: `invexsync keeps products, sales, clients and payments in memory,
persists them to the remote store after a quiet period and applies changes
made on other devices after confirmation.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "access token (defaults to INVEX_ACCESS_TOKEN)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) accessToken(cfg config.Config) string {
	if o.Token != "" {
		return o.Token
	}
	return cfg.AccessToken
}
