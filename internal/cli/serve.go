package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dummy-intern104/invex-ai/internal/config"
	"github.com/dummy-intern104/invex-ai/internal/httpapi"
	"github.com/dummy-intern104/invex-ai/internal/service"
	"github.com/dummy-intern104/invex-ai/internal/state"
	"github.com/dummy-intern104/invex-ai/internal/syncer"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	AutoSync bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open a session and serve the local API",
		Long: `Open a sync session for the token's identity and serve the local
HTTP API until interrupted. Pending changes are flushed on shutdown.

Example:
  INVEX_ACCESS_TOKEN=... invexsync serve
  invexsync serve --token "$TOKEN" --auto-sync`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("auto-sync") {
				cfg.SyncAuto = opts.AutoSync
			}
			return serve(cmd.Context(), cfg, opts.accessToken(cfg))
		},
	}

	cmd.Flags().BoolVar(&opts.AutoSync, "auto-sync", false, "apply remote changes after confirmation (overrides SYNC_AUTO)")

	return cmd
}

func serve(parent context.Context, cfg config.Config, token string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionCtx, identity, verifier, err := authenticate(ctx, cfg, token)
	if err != nil {
		return err
	}

	setupCtx, cancel := context.WithTimeout(sessionCtx, 10*time.Second)
	defer cancel()
	b, err := openBackends(setupCtx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	notifier := service.LogNotifier{}
	st := state.New()
	coordinator := syncer.New(st, b.gateway, notifier, syncer.Options{
		Debounce:       cfg.SyncDebounce,
		EchoWindow:     cfg.SyncEchoWindow,
		ConfirmTimeout: cfg.SyncConfirmTimeout,
		AutoSync:       cfg.SyncAuto,
	})
	session := syncer.NewSession(identity.UserID, st, b.gateway, coordinator, b.source, cfg.SyncStaleness)
	session.OnOutcome(func(o syncer.Outcome) {
		log.Printf("[syncer] remote update outcome: %s", o)
	})
	if err := session.Open(setupCtx); err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	api := httpapi.New(service.New(st, notifier), coordinator, verifier, identity.UserID, cfg.AllowedOrigin)
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("invexsync listening on %s for %s", cfg.Address(), identity.UserID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case conflict := <-coordinator.Conflicts():
				log.Printf("[syncer] conflict %s pending: remote differs in %v", conflict.ID, conflict.Changed)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		return nil
	})

	err = g.Wait()
	coordinator.Flush()
	session.Close()
	log.Println("server stopped")
	return err
}
