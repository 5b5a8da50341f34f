package realtime

import (
	"context"
	"io"
	"sync"

	"github.com/dummy-intern104/invex-ai/internal/domain"
)

// Hub is an in-process Source. Publish delivers synchronously to every
// listener of the event's identity.
type Hub struct {
	mu        sync.RWMutex
	next      int
	listeners map[string]map[int]func(domain.ChangeEvent)
	opened    int
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[int]func(domain.ChangeEvent))}
}

func (h *Hub) Listen(_ context.Context, identity string, deliver func(domain.ChangeEvent)) (io.Closer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	h.opened++
	id := h.next
	if h.listeners[identity] == nil {
		h.listeners[identity] = make(map[int]func(domain.ChangeEvent))
	}
	h.listeners[identity][id] = deliver
	return hubListener{hub: h, identity: identity, id: id}, nil
}

func (h *Hub) Publish(ev domain.ChangeEvent) {
	h.mu.RLock()
	targets := make([]func(domain.ChangeEvent), 0, len(h.listeners[ev.UserID]))
	for _, deliver := range h.listeners[ev.UserID] {
		targets = append(targets, deliver)
	}
	h.mu.RUnlock()

	for _, deliver := range targets {
		deliver(ev)
	}
}

// Listeners returns the number of live listeners for identity.
func (h *Hub) Listeners(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[identity])
}

// Opened returns how many channels were ever opened.
func (h *Hub) Opened() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opened
}

type hubListener struct {
	hub      *Hub
	identity string
	id       int
}

func (l hubListener) Close() error {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()
	delete(l.hub.listeners[l.identity], l.id)
	if len(l.hub.listeners[l.identity]) == 0 {
		delete(l.hub.listeners, l.identity)
	}
	return nil
}
