package store

import (
	"context"
	"errors"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidMutation        = errors.New("invalid mutation")
	ErrNoRecord               = errors.New("no stored snapshot")
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrAuthenticationRequired = auth.ErrAuthenticationRequired
)

// Gateway loads and saves one identity's snapshot against the remote store.
// Every call requires a session for the same identity in ctx.
type Gateway interface {
	Load(ctx context.Context, identity string) (domain.Snapshot, error)
	Save(ctx context.Context, identity string, snapshot domain.Snapshot) error
	CreateEmpty(ctx context.Context, identity string) (domain.Snapshot, error)
	LoadExpiries(ctx context.Context, identity string) ([]domain.ProductExpiry, error)
}
