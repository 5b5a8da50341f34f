package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// Gateway keeps one JSON document per identity under a directory, so the
// local copy of the data survives a restart when no database is configured.
type Gateway struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

type document struct {
	Snapshot domain.Snapshot        `json:"snapshot"`
	Expiries []domain.ProductExpiry `json:"expiries"`
}

// New creates dir if needed.
func New(dir string) (*Gateway, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	return &Gateway{dir: dir, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (g *Gateway) Dir() string {
	return g.dir
}

func (g *Gateway) Load(ctx context.Context, identity string) (domain.Snapshot, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	doc, ok, err := g.read(identity)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if !ok {
		return domain.Snapshot{}, store.ErrNoRecord
	}
	return doc.Snapshot.Normalize(), nil
}

func (g *Gateway) Save(ctx context.Context, identity string, snapshot domain.Snapshot) error {
	if err := auth.Require(ctx, identity); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	doc, _, err := g.read(identity)
	if err != nil {
		return err
	}
	doc.Snapshot = snapshot.Normalize().Clone()
	doc.Snapshot.UpdatedAt = g.now()
	return g.write(identity, doc)
}

func (g *Gateway) CreateEmpty(ctx context.Context, identity string) (domain.Snapshot, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	doc, ok, err := g.read(identity)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if ok {
		return doc.Snapshot.Normalize(), nil
	}
	doc.Snapshot = domain.EmptySnapshot()
	doc.Snapshot.UpdatedAt = g.now()
	if err := g.write(identity, doc); err != nil {
		return domain.Snapshot{}, err
	}
	return doc.Snapshot, nil
}

func (g *Gateway) LoadExpiries(ctx context.Context, identity string) ([]domain.ProductExpiry, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	doc, _, err := g.read(identity)
	if err != nil {
		return nil, err
	}
	if doc.Expiries == nil {
		return []domain.ProductExpiry{}, nil
	}
	return doc.Expiries, nil
}

// PutExpiry stores an expiry record for identity, keeping expiry-date order.
func (g *Gateway) PutExpiry(identity string, expiry domain.ProductExpiry) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	doc, ok, err := g.read(identity)
	if err != nil {
		return err
	}
	if !ok {
		doc.Snapshot = domain.EmptySnapshot()
	}
	doc.Expiries = append(doc.Expiries, expiry)
	slices.SortStableFunc(doc.Expiries, func(a, b domain.ProductExpiry) int {
		return a.ExpiryDate.Compare(b.ExpiryDate)
	})
	return g.write(identity, doc)
}

// path encodes identity so any subject string maps to a single file name.
func (g *Gateway) path(identity string) string {
	return filepath.Join(g.dir, base64.RawURLEncoding.EncodeToString([]byte(identity))+".json")
}

func (g *Gateway) read(identity string) (document, bool, error) {
	raw, err := os.ReadFile(g.path(identity))
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, false, nil
	}
	if err != nil {
		return document{}, false, fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, false, fmt.Errorf("%w: decode %s: %v", store.ErrPersistenceFailure, filepath.Base(g.path(identity)), err)
	}
	return doc, true, nil
}

// write replaces the file through a rename so a crash never leaves a torn document.
func (g *Gateway) write(identity string, doc document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	tmp, err := os.CreateTemp(g.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	if err := os.Rename(tmp.Name(), g.path(identity)); err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistenceFailure, err)
	}
	return nil
}
