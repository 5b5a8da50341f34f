package redisfeed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/realtime"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

func Channel(identity string) string {
	return "invex:changes:" + identity
}

// Source subscribes to an identity's Redis pub/sub channel.
type Source struct {
	client *redis.Client
}

func NewSource(client *redis.Client) *Source {
	return &Source{client: client}
}

func (s *Source) Listen(ctx context.Context, identity string, deliver func(domain.ChangeEvent)) (io.Closer, error) {
	pubsub := s.client.Subscribe(ctx, Channel(identity))

	confirmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		for msg := range pubsub.Channel() {
			ev, err := realtime.ParseEvent([]byte(msg.Payload))
			if err != nil {
				log.Printf("[redisfeed] WARN: %v", err)
				continue
			}
			deliver(ev)
		}
	}()
	return pubsub, nil
}

// Gateway publishes an UPDATE event after each successful save so other
// devices of the same identity learn about it.
type Gateway struct {
	store.Gateway
	client *redis.Client
	now    func() time.Time
}

func NewGateway(inner store.Gateway, client *redis.Client) *Gateway {
	return &Gateway{
		Gateway: inner,
		client:  client,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gateway) Save(ctx context.Context, identity string, snapshot domain.Snapshot) error {
	if err := g.Gateway.Save(ctx, identity, snapshot); err != nil {
		return err
	}

	saved := snapshot.Normalize()
	// Publish failures do not undo a committed save.
	if err := g.publish(ctx, domain.ChangeEvent{
		Kind:            domain.ChangeUpdate,
		Table:           domain.TableUserData,
		UserID:          identity,
		Payload:         &saved,
		ServerTimestamp: g.now(),
	}); err != nil {
		log.Printf("[redisfeed] WARN: publish update for %s: %v", identity, err)
	}
	return nil
}

// PublishExpiryChange announces a write to the identity's expiry records.
func (g *Gateway) PublishExpiryChange(ctx context.Context, identity string, kind domain.ChangeKind) error {
	return g.publish(ctx, domain.ChangeEvent{
		Kind:            kind,
		Table:           domain.TableProductExpiry,
		UserID:          identity,
		ServerTimestamp: g.now(),
	})
}

func (g *Gateway) publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return g.client.Publish(ctx, Channel(ev.UserID), payload).Err()
}
