package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/config"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	User string
	TTL  time.Duration
}

// NewTokenCommand creates the token command, a development helper that signs
// an access token with AUTH_SECRET.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ttl := opts.TTL
			if ttl <= 0 {
				ttl = time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
			}
			token, err := signToken(cfg, opts.User, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "identity to put in the token subject (required)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func signToken(cfg config.Config, user string, ttl time.Duration) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("user is required")
	}
	if len(cfg.AuthSecret) < 32 {
		return "", errors.New("AUTH_SECRET must be set and at least 32 characters")
	}
	return auth.NewVerifier(cfg.AuthSecret, "").Sign(user, ttl)
}
