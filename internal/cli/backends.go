package cli

import (
	"context"
	"fmt"
	"log"

	redis "github.com/redis/go-redis/v9"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/cache"
	"github.com/dummy-intern104/invex-ai/internal/config"
	"github.com/dummy-intern104/invex-ai/internal/realtime"
	"github.com/dummy-intern104/invex-ai/internal/realtime/pgnotify"
	"github.com/dummy-intern104/invex-ai/internal/realtime/redisfeed"
	"github.com/dummy-intern104/invex-ai/internal/store"
	filestore "github.com/dummy-intern104/invex-ai/internal/store/file"
	"github.com/dummy-intern104/invex-ai/internal/store/memory"
	pgstore "github.com/dummy-intern104/invex-ai/internal/store/postgres"
)

type backends struct {
	gateway store.Gateway
	source  realtime.Source
	closers []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

// openBackends picks the gateway and change source from configuration:
// Postgres when DATABASE_URL is set, JSON files under LOCAL_DATA_DIR when that
// is set instead, otherwise in-process memory. Redis pub/sub is used when
// REDIS_ADDR answers.
func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var gateway store.Gateway
	var pg *pgstore.Gateway
	if cfg.DatabaseURL != "" {
		var err error
		pg, err = pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		gateway = pg
		b.closers = append(b.closers, pg.Close)
		log.Println("gateway: postgres")
	} else if cfg.LocalDataDir != "" {
		fg, err := filestore.New(cfg.LocalDataDir)
		if err != nil {
			return nil, fmt.Errorf("LOCAL_DATA_DIR %q unusable: %w", cfg.LocalDataDir, err)
		}
		gateway = fg
		log.Printf("gateway: local files in %s", fg.Dir())
	} else {
		gateway = memory.New()
		log.Println("gateway: in-memory")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable (%v), continuing without cache and pub/sub", err)
			_ = client.Close()
		} else {
			rdb = client
			b.closers = append(b.closers, client.Close)
		}
	}

	var expiryCache cache.ExpiryCache = cache.NoopExpiryCache{}
	switch {
	case rdb != nil:
		gateway = redisfeed.NewGateway(gateway, rdb)
		expiryCache = cache.NewRedisExpiryCache(rdb)
		b.source = redisfeed.NewSource(rdb)
		log.Println("realtime: redis pub/sub, cache: redis")
	case pg != nil:
		b.source = pgnotify.New(cfg.DatabaseURL, pg)
		log.Println("realtime: postgres notify, cache: noop")
	default:
		b.source = realtime.NewHub()
		log.Println("realtime: local only, cache: noop")
	}

	b.gateway = cache.NewGateway(gateway, expiryCache, cfg.ExpiryCacheTTL)
	return b, nil
}

// authenticate verifies the access token and returns a context carrying the
// resulting session.
func authenticate(ctx context.Context, cfg config.Config, token string) (context.Context, auth.Session, *auth.Verifier, error) {
	if err := validateSecurityConfig(cfg, token); err != nil {
		return nil, auth.Session{}, nil, err
	}
	verifier := auth.NewVerifier(cfg.AuthSecret, "")
	session, err := verifier.Verify(token)
	if err != nil {
		return nil, auth.Session{}, nil, fmt.Errorf("access token rejected: %w", err)
	}
	return auth.WithSession(ctx, session), session, verifier, nil
}

func validateSecurityConfig(cfg config.Config, token string) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if token == "" {
		return fmt.Errorf("an access token is required (INVEX_ACCESS_TOKEN or --token)")
	}
	return nil
}
