// Package stream distributes search events to subscribers. Each search
// gets its own room holding the subscribers attached to it; publishing
// appends to the search's event log and fans out under the same lock, so
// a subscriber always sees the full log exactly once: every event before
// its attach replayed, every later event live, no gaps and no
// duplicates.
package stream

import (
	"errors"
	"sync"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// DefaultClientBufferSize bounds how far a subscriber may fall behind
// the live event flow before it is dropped.
const DefaultClientBufferSize = 256

// ErrUnknownSearch is returned when subscribing to a search the hub does
// not track.
var ErrUnknownSearch = errors.New("unknown search")

// Hub routes events for all active searches.
type Hub struct {
	log        logger.Logger
	bufferSize int

	mu    sync.RWMutex
	rooms map[string]*room
}

// room is the per-search fan-out state. Its lock serializes publishing
// against subscriber attachment, which is what makes replay gap-free.
type room struct {
	search *domain.Search

	mu     sync.Mutex
	subs   map[int64]*subscriber
	nextID int64
	closed bool
}

// NewHub creates a hub. bufferSize bounds each subscriber's live buffer;
// zero means DefaultClientBufferSize.
func NewHub(log logger.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultClientBufferSize
	}
	return &Hub{
		log:        log,
		bufferSize: bufferSize,
		rooms:      make(map[string]*room),
	}
}

// Register opens a room for a search. Must be called before the first
// Publish or Subscribe for that search.
func (h *Hub) Register(s *domain.Search) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[s.ID()]; ok {
		return
	}
	h.rooms[s.ID()] = &room{
		search: s,
		subs:   make(map[int64]*subscriber),
	}
}

// Publish appends an event to the search's log and delivers it to every
// subscriber. Sequence numbers are assigned by the append, so delivery
// order to any one subscriber matches log order. After a terminal event
// all subscriber channels are closed.
func (h *Hub) Publish(searchID string, t domain.EventType, data any) (domain.Event, error) {
	r := h.room(searchID)
	if r == nil {
		return domain.Event{}, ErrUnknownSearch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ev, err := r.search.Append(t, data)
	if err != nil {
		return domain.Event{}, err
	}

	var slow []int64
	for id, sub := range r.subs {
		if !sub.send(ev) {
			slow = append(slow, id)
		}
	}
	for _, id := range slow {
		h.log.Warn("subscriber buffer full, dropping connection",
			logger.String("search_id", searchID),
			logger.Int64("subscriber_id", id))
		r.subs[id].close()
		delete(r.subs, id)
	}

	if ev.Type.Terminal() {
		r.closed = true
		for id, sub := range r.subs {
			sub.close()
			delete(r.subs, id)
		}
	}
	return ev, nil
}

// Subscribe attaches to a search's event flow. The returned channel
// first yields every event published so far, then live events as they
// are published. The channel is closed after the terminal event, or when
// cancel is called. For an already-terminal search the full log is
// delivered and the channel closed immediately.
func (h *Hub) Subscribe(searchID string) (<-chan domain.Event, func(), error) {
	r := h.room(searchID)
	if r == nil {
		return nil, nil, ErrUnknownSearch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	backlog := r.search.Events()

	// Capacity covers the full backlog plus the live buffer so replay
	// never blocks and never counts against the live budget.
	sub := newSubscriber(len(backlog) + h.bufferSize)
	for _, ev := range backlog {
		sub.send(ev)
	}

	if r.closed {
		sub.close()
		return sub.ch, func() {}, nil
	}

	id := r.nextID
	r.nextID++
	r.subs[id] = sub

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if s, ok := r.subs[id]; ok {
			s.close()
			delete(r.subs, id)
		}
	}
	return sub.ch, cancel, nil
}

// SubscriberCount reports how many subscribers are attached to a search.
// The registry consults it before evicting: a search with listeners is
// in use no matter how old it is.
func (h *Hub) SubscriberCount(searchID string) int {
	r := h.room(searchID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Remove drops a search's room, closing any remaining subscribers.
// Called by the registry when it evicts the search.
func (h *Hub) Remove(searchID string) {
	h.mu.Lock()
	r := h.rooms[searchID]
	delete(h.rooms, searchID)
	h.mu.Unlock()
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		sub.close()
		delete(r.subs, id)
	}
	r.closed = true
}

func (h *Hub) room(searchID string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[searchID]
}
