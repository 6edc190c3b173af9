package remote

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Hub fans change notifications out to subscriptions. Store implementations
// call Notify after every write with the document state before and after it.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*HubSubscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*HubSubscription)}
}

// HubSubscription is a Subscription registered on a Hub.
type HubSubscription struct {
	id         string
	collection string
	filter     Filter
	hub        *Hub
	ch         chan struct{}
	closed     bool
}

// Add registers a subscription and queues its initial signal.
func (h *Hub) Add(collection string, filter Filter) *HubSubscription {
	s := &HubSubscription{
		id:         ulid.Make().String(),
		collection: collection,
		filter:     filter,
		hub:        h,
		ch:         make(chan struct{}, 1),
	}
	s.ch <- struct{}{}

	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	return s
}

// Notify signals every subscription on collection whose filter matches the
// document before or after the change. It returns the number signalled.
func (h *Hub) Notify(collection string, before, after map[string]any) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, s := range h.subs {
		if s.collection != collection {
			continue
		}
		if !(before != nil && Matches(before, s.filter)) && !(after != nil && Matches(after, s.filter)) {
			continue
		}
		select {
		case s.ch <- struct{}{}:
		default:
		}
		n++
	}
	return n
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// CloseAll ends every subscription, e.g. when the feed behind the hub broke.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		s.closed = true
		close(s.ch)
		delete(h.subs, id)
	}
}

func (s *HubSubscription) ID() string { return s.id }

func (s *HubSubscription) Changes() <-chan struct{} { return s.ch }

// Close is idempotent.
func (s *HubSubscription) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	delete(s.hub.subs, s.id)
	close(s.ch)
	return nil
}
