package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// Gateway persists one row per identity in user_data, each collection in its
// own jsonb column.
type Gateway struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Gateway, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Gateway{db: db}, nil
}

func (g *Gateway) Close() error {
	return g.db.Close()
}

func (g *Gateway) Load(ctx context.Context, identity string) (domain.Snapshot, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}

	var (
		products, sales, clients, payments []byte
		updatedAt                          time.Time
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT products, sales, clients, payments, updated_at
		FROM user_data
		WHERE user_id = $1
	`, identity).Scan(&products, &sales, &clients, &payments, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, store.ErrNoRecord
		}
		return domain.Snapshot{}, fmt.Errorf("%w: load user_data: %v", store.ErrPersistenceFailure, err)
	}

	var snap domain.Snapshot
	if err := decodeColumns(&snap, products, sales, clients, payments); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: decode user_data: %v", store.ErrPersistenceFailure, err)
	}
	snap.UpdatedAt = updatedAt.UTC()
	return snap.Normalize(), nil
}

func (g *Gateway) Save(ctx context.Context, identity string, snapshot domain.Snapshot) error {
	if err := auth.Require(ctx, identity); err != nil {
		return err
	}

	snapshot = snapshot.Normalize()
	columns, err := encodeColumns(snapshot)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", store.ErrPersistenceFailure, err)
	}

	// Single statement upsert: the row is replaced as a whole or not at all.
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO user_data (user_id, products, sales, clients, payments, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id)
		DO UPDATE SET
			products = EXCLUDED.products,
			sales = EXCLUDED.sales,
			clients = EXCLUDED.clients,
			payments = EXCLUDED.payments,
			updated_at = EXCLUDED.updated_at
	`, identity, string(columns[0]), string(columns[1]), string(columns[2]), string(columns[3]))
	if err != nil {
		return fmt.Errorf("%w: upsert user_data: %v", store.ErrPersistenceFailure, err)
	}
	return nil
}

func (g *Gateway) CreateEmpty(ctx context.Context, identity string) (domain.Snapshot, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}

	var updatedAt time.Time
	err := g.db.QueryRowContext(ctx, `
		INSERT INTO user_data (user_id, products, sales, clients, payments, updated_at)
		VALUES ($1, '[]'::jsonb, '[]'::jsonb, '[]'::jsonb, '[]'::jsonb, now())
		RETURNING updated_at
	`, identity).Scan(&updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Another device initialised the row first.
			return g.Load(ctx, identity)
		}
		return domain.Snapshot{}, fmt.Errorf("%w: insert user_data: %v", store.ErrPersistenceFailure, err)
	}

	snap := domain.EmptySnapshot()
	snap.UpdatedAt = updatedAt.UTC()
	return snap, nil
}

func (g *Gateway) LoadExpiries(ctx context.Context, identity string) ([]domain.ProductExpiry, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT id, product_id, expiry_date, quantity, COALESCE(notes, '')
		FROM product_expiry
		WHERE user_id = $1
		ORDER BY expiry_date ASC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: load product_expiry: %v", store.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	expiries := make([]domain.ProductExpiry, 0, 32)
	for rows.Next() {
		var e domain.ProductExpiry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ExpiryDate, &e.Quantity, &e.Notes); err != nil {
			return nil, fmt.Errorf("%w: scan product_expiry: %v", store.ErrPersistenceFailure, err)
		}
		e.ExpiryDate = e.ExpiryDate.UTC()
		expiries = append(expiries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate product_expiry: %v", store.ErrPersistenceFailure, err)
	}
	return expiries, nil
}

func encodeColumns(snap domain.Snapshot) ([4][]byte, error) {
	var out [4][]byte
	var err error
	if out[0], err = json.Marshal(snap.Products); err != nil {
		return out, err
	}
	if out[1], err = json.Marshal(snap.Sales); err != nil {
		return out, err
	}
	if out[2], err = json.Marshal(snap.Clients); err != nil {
		return out, err
	}
	if out[3], err = json.Marshal(snap.Payments); err != nil {
		return out, err
	}
	return out, nil
}

func decodeColumns(snap *domain.Snapshot, products, sales, clients, payments []byte) error {
	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{products, &snap.Products},
		{sales, &snap.Sales},
		{clients, &snap.Clients},
		{payments, &snap.Payments},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
