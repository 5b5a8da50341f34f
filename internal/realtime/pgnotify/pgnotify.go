package pgnotify

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/realtime"
)

const DefaultChannel = "invex_changes"

// Fetcher reloads a snapshot. NOTIFY payloads only carry metadata.
type Fetcher interface {
	Load(ctx context.Context, identity string) (domain.Snapshot, error)
}

// Source listens on a Postgres NOTIFY channel fed by the user_data and
// product_expiry triggers.
type Source struct {
	databaseURL string
	channel     string
	fetcher     Fetcher
}

func New(databaseURL string, fetcher Fetcher) *Source {
	return &Source{databaseURL: databaseURL, channel: DefaultChannel, fetcher: fetcher}
}

func (s *Source) Listen(ctx context.Context, identity string, deliver func(domain.ChangeEvent)) (io.Closer, error) {
	connectCtx, cancelConnect := context.WithTimeout(ctx, 6*time.Second)
	defer cancelConnect()

	conn, err := pgx.Connect(connectCtx, s.databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(connectCtx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	l := &listener{conn: conn, cancel: cancel, done: make(chan struct{})}
	go l.run(listenCtx, identity, s.fetcher, deliver)
	return l, nil
}

type listener struct {
	conn   *pgx.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *listener) run(ctx context.Context, identity string, fetcher Fetcher, deliver func(domain.ChangeEvent)) {
	defer close(l.done)

	for {
		n, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[pgnotify] WARN: listener for %s stopped: %v", identity, err)
			}
			return
		}

		ev, ok := resolve(ctx, identity, fetcher, n.Payload)
		if !ok {
			continue
		}
		deliver(ev)
	}
}

// resolve turns a notification payload into a deliverable event for identity,
// fetching the snapshot for user_data updates.
func resolve(ctx context.Context, identity string, fetcher Fetcher, payload string) (domain.ChangeEvent, bool) {
	ev, err := realtime.ParseEvent([]byte(payload))
	if err != nil {
		log.Printf("[pgnotify] WARN: %v", err)
		return domain.ChangeEvent{}, false
	}
	if ev.UserID != identity {
		return domain.ChangeEvent{}, false
	}

	if ev.Table == domain.TableUserData && ev.Kind == domain.ChangeUpdate && fetcher != nil {
		snap, err := fetcher.Load(ctx, identity)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("[pgnotify] WARN: fetch snapshot for %s: %v", identity, err)
			}
			return domain.ChangeEvent{}, false
		}
		ev.Payload = &snap
	}
	return ev, true
}

func (l *listener) Close() error {
	l.cancel()
	<-l.done

	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return l.conn.Close(closeCtx)
}
