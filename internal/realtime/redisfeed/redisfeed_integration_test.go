package redisfeed

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store/memory"
)

func TestSavePublishesToSubscribers(t *testing.T) {
	addr := os.Getenv("INVEX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set INVEX_TEST_REDIS_ADDR to run redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	identity := fmt.Sprintf("it-user-%d", time.Now().UnixNano())
	ctx := auth.WithSession(context.Background(), auth.Session{UserID: identity})

	received := make(chan domain.ChangeEvent, 1)
	closer, err := NewSource(client).Listen(ctx, identity, func(ev domain.ChangeEvent) {
		received <- ev
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	gw := NewGateway(memory.New(), client)
	snap := domain.EmptySnapshot()
	snap.Products = []domain.Product{{ID: 1, Name: "Kopi", Stock: 4}}
	require.NoError(t, gw.Save(ctx, identity, snap))

	select {
	case ev := <-received:
		require.Equal(t, domain.ChangeUpdate, ev.Kind)
		require.Equal(t, identity, ev.UserID)
		require.NotNil(t, ev.Payload)
		require.True(t, ev.Payload.Equal(snap))
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for published update")
	}
}
