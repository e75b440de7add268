// Package realtime fans committed write events out to subscribers (websocket clients, tests...).
package realtime

import (
	"fmt"
	"sync"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

const defaultBufferSize = 64

// Hub is an in-process ChangePublisher. Publish never blocks: a subscriber whose buffer
// is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	bufSize int
	logger  core.Logger
}

var _ core.ChangePublisher = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		bufSize: defaultBufferSize,
		logger:  logger,
	}
}

// Filter selects the events a Subscription receives. Zero values match everything.
type Filter struct {
	Tables    []string
	SessionID string
}

// Subscription is an owned handle on the event stream; Close it when done.
type Subscription struct {
	hub       *Hub
	tables    map[string]bool
	sessionID string
	events    chan core.ChangeEvent
	once      sync.Once
}

// Subscribe registers a new subscription for the events matching f.
func (h *Hub) Subscribe(f Filter) *Subscription {
	sub := &Subscription{
		hub:       h,
		tables:    make(map[string]bool, len(f.Tables)),
		sessionID: f.SessionID,
		events:    make(chan core.ChangeEvent, h.bufSize),
	}
	for _, t := range f.Tables {
		sub.tables[t] = true
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Publish(evt core.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.matches(evt) {
			continue
		}
		select {
		case sub.events <- evt:
		default:
			h.logger.Warn(fmt.Sprintf("realtime: subscriber too slow, dropping %s %s event", evt.Table, evt.Op))
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *Subscription) matches(evt core.ChangeEvent) bool {
	if len(s.tables) > 0 && !s.tables[evt.Table] {
		return false
	}
	return s.sessionID == "" || s.sessionID == evt.SessionID
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan core.ChangeEvent {
	return s.events
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.events)
		s.hub.mu.Unlock()
	})
}
