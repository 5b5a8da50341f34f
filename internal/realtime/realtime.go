package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
)

var (
	ErrSubscriptionSetup = errors.New("subscription setup failed")
	ErrMalformedEvent    = errors.New("malformed change event")
)

const DefaultStaleness = time.Minute

// Source opens a change stream for one identity and feeds parsed events to
// deliver until the returned Closer is closed.
type Source interface {
	Listen(ctx context.Context, identity string, deliver func(domain.ChangeEvent)) (io.Closer, error)
}

// Callbacks receive routed events. OnChange gets fresh user_data updates;
// OnRefresh is a payload-free signal that expiry side data changed.
type Callbacks struct {
	OnChange  func(domain.ChangeEvent)
	OnRefresh func()
}

// Manager is the subscription registry for one session. At most one live
// channel exists per identity.
type Manager struct {
	mu        sync.Mutex
	source    Source
	staleness time.Duration
	now       func() time.Time
	subs      map[string]*subscription
}

type subscription struct {
	key    string
	closer io.Closer
	cancel context.CancelFunc
	closed atomic.Bool
	once   sync.Once
}

func NewManager(source Source, staleness time.Duration) *Manager {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Manager{
		source:    source,
		staleness: staleness,
		now:       func() time.Time { return time.Now().UTC() },
		subs:      make(map[string]*subscription),
	}
}

func subscriptionKey(identity string) string {
	return "user_data_" + identity
}

// Subscribe opens the identity's channel, or returns a teardown for the one
// already open. The lock is held across setup so concurrent callers converge
// on a single channel.
func (m *Manager) Subscribe(ctx context.Context, identity string, cb Callbacks) (func(), error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrSubscriptionSetup)
	}
	key := subscriptionKey(identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.subs[key]; ok {
		log.Printf("[realtime] subscription already active for %s", identity)
		return m.teardown(existing), nil
	}

	// The channel outlives the caller's request but keeps its values (session).
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{key: key, cancel: cancel}
	closer, err := m.source.Listen(listenCtx, identity, func(ev domain.ChangeEvent) {
		if sub.closed.Load() {
			return
		}
		m.route(identity, cb, ev)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrSubscriptionSetup, err)
	}
	sub.closer = closer
	m.subs[key] = sub
	log.Printf("[realtime] subscribed to changes for %s", identity)

	return m.teardown(sub), nil
}

func (m *Manager) teardown(sub *subscription) func() {
	return func() {
		m.mu.Lock()
		if current, ok := m.subs[sub.key]; ok && current == sub {
			delete(m.subs, sub.key)
		}
		m.mu.Unlock()
		sub.close()
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if s.closer != nil {
			if err := s.closer.Close(); err != nil {
				log.Printf("[realtime] WARN: close %s: %v", s.key, err)
			}
		}
	})
}

func (m *Manager) Active(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[subscriptionKey(identity)]
	return ok
}

// Close tears down every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for key, sub := range m.subs {
		subs = append(subs, sub)
		delete(m.subs, key)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (m *Manager) route(identity string, cb Callbacks, ev domain.ChangeEvent) {
	if ev.UserID != "" && ev.UserID != identity {
		return
	}

	switch ev.Table {
	case domain.TableUserData:
		if ev.Kind != domain.ChangeUpdate || ev.Payload == nil {
			return
		}
		if m.Stale(ev) {
			log.Printf("[realtime] ignoring stale user_data update from %s", ev.ServerTimestamp.Format(time.RFC3339))
			return
		}
		if cb.OnChange != nil {
			cb.OnChange(ev)
		}
	case domain.TableProductExpiry:
		switch ev.Kind {
		case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
			if cb.OnRefresh != nil {
				cb.OnRefresh()
			}
		}
	}
}

// Stale reports whether ev is older than the staleness window. Events without
// a server timestamp count as stale.
func (m *Manager) Stale(ev domain.ChangeEvent) bool {
	if ev.ServerTimestamp.IsZero() {
		return true
	}
	return m.now().Sub(ev.ServerTimestamp) > m.staleness
}

// ParseEvent decodes the JSON wire format shared by all sources.
func ParseEvent(raw []byte) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.Kind = domain.ChangeKind(strings.ToUpper(strings.TrimSpace(string(ev.Kind))))
	switch ev.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		return domain.ChangeEvent{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, ev.Kind)
	}
	if ev.Table == "" {
		return domain.ChangeEvent{}, fmt.Errorf("%w: missing table", ErrMalformedEvent)
	}
	if ev.Payload != nil {
		normalized := ev.Payload.Normalize()
		ev.Payload = &normalized
	}
	ev.ServerTimestamp = ev.ServerTimestamp.UTC()
	return ev, nil
}
