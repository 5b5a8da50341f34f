package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dummy-intern104/invex-ai/internal/config"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// PullOptions holds flags for the pull command.
type PullOptions struct {
	*RootOptions
	Expiries bool
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Print the stored snapshot for the token's identity",
		Long: `Load the identity's snapshot from the configured gateway and print it
as JSON. Nothing is written; a missing record prints an empty snapshot.

Example:
  invexsync pull --token "$TOKEN" --expiries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg := config.Load()
			out, err := pull(ctx, cfg, opts.accessToken(cfg), opts.Expiries)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&opts.Expiries, "expiries", false, "include product expiry records")

	return cmd
}

type pullResult struct {
	Identity string                 `json:"identity"`
	Snapshot domain.Snapshot        `json:"snapshot"`
	Expiries []domain.ProductExpiry `json:"expiries,omitempty"`
}

func pull(parent context.Context, cfg config.Config, token string, withExpiries bool) (pullResult, error) {
	ctx, session, _, err := authenticate(parent, cfg, token)
	if err != nil {
		return pullResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return pullResult{}, err
	}
	defer b.Close()

	snap, err := b.gateway.Load(ctx, session.UserID)
	if errors.Is(err, store.ErrNoRecord) {
		snap, err = domain.EmptySnapshot(), nil
	}
	if err != nil {
		return pullResult{}, fmt.Errorf("load snapshot: %w", err)
	}

	result := pullResult{Identity: session.UserID, Snapshot: snap.Normalize()}
	if withExpiries {
		expiries, err := b.gateway.LoadExpiries(ctx, session.UserID)
		if err != nil {
			return pullResult{}, fmt.Errorf("load expiries: %w", err)
		}
		result.Expiries = expiries
	}
	return result, nil
}
