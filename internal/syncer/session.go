package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/realtime"
	"github.com/dummy-intern104/invex-ai/internal/state"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

var ErrSessionOpen = errors.New("session already open")

// Session spans one login. It owns the identity's subscription and feeds
// remote events to the coordinator one at a time, newest first.
type Session struct {
	identity    string
	store       *state.Store
	gateway     store.Gateway
	coordinator *Coordinator
	subs        *realtime.Manager

	mu          sync.Mutex
	open        bool
	localOnly   bool
	unsubscribe func()
	cancel      context.CancelFunc
	worker      sync.WaitGroup
	latest      *domain.ChangeEvent
	signal      chan struct{}
	outcomes    func(Outcome)
}

func NewSession(identity string, st *state.Store, gateway store.Gateway, coordinator *Coordinator, source realtime.Source, staleness time.Duration) *Session {
	return &Session{
		identity:    identity,
		store:       st,
		gateway:     gateway,
		coordinator: coordinator,
		subs:        realtime.NewManager(source, staleness),
		signal:      make(chan struct{}, 1),
	}
}

func (s *Session) Identity() string {
	return s.identity
}

// LocalOnly reports whether the realtime channel could not be opened.
func (s *Session) LocalOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localOnly
}

// OnOutcome registers an observer for remote event decisions.
func (s *Session) OnOutcome(fn func(Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = fn
}

// Open loads the identity's snapshot, creating an empty one on first login,
// then binds the coordinator and subscribes to remote changes.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return ErrSessionOpen
	}
	if err := auth.Require(ctx, s.identity); err != nil {
		return err
	}

	snap, err := s.gateway.Load(ctx, s.identity)
	if errors.Is(err, store.ErrNoRecord) {
		log.Printf("[syncer] no stored data for %s, creating empty record", s.identity)
		snap, err = s.gateway.CreateEmpty(ctx, s.identity)
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.store.Restore(snap)

	expiries, err := s.gateway.LoadExpiries(ctx, s.identity)
	if err != nil {
		log.Printf("[syncer] WARN: load expiries for %s: %v", s.identity, err)
	} else {
		s.store.SetExpiries(expiries)
	}

	s.coordinator.Bind(ctx, s.identity)

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.worker.Add(1)
	go s.run(workerCtx)

	unsubscribe, err := s.subs.Subscribe(ctx, s.identity, realtime.Callbacks{
		OnChange:  s.enqueue,
		OnRefresh: func() { s.refresh(workerCtx) },
	})
	if err != nil {
		log.Printf("[syncer] WARN: realtime unavailable for %s, running local-only: %v", s.identity, err)
		s.localOnly = true
	} else {
		s.unsubscribe = unsubscribe
		s.localOnly = false
	}
	s.open = true
	log.Printf("[syncer] session opened for %s", s.identity)
	return nil
}

// Close ends the session: the subscription is torn down, scheduled saves are
// dropped and local state is cleared.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	cancel := s.cancel
	s.cancel = nil
	s.latest = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.subs.Close()
	s.coordinator.Unbind()
	if cancel != nil {
		cancel()
	}
	s.worker.Wait()
	s.store.Clear()
	log.Printf("[syncer] session closed for %s", s.identity)
}

func (s *Session) enqueue(ev domain.ChangeEvent) {
	s.mu.Lock()
	s.latest = &ev
	s.mu.Unlock()

	s.coordinator.SupersedePending()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) next() *domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.latest
	s.latest = nil
	return ev
}

func (s *Session) run(ctx context.Context) {
	defer s.worker.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}
		ev := s.next()
		if ev == nil {
			continue
		}
		outcome := s.coordinator.HandleRemote(ctx, *ev)
		s.mu.Lock()
		observe := s.outcomes
		s.mu.Unlock()
		if observe != nil {
			observe(outcome)
		}
	}
}

func (s *Session) refresh(ctx context.Context) {
	if err := s.coordinator.RefreshExpiries(ctx); err != nil && !errors.Is(err, ErrNotBound) {
		log.Printf("[syncer] WARN: expiry refresh: %v", err)
	}
}
