package stream

import "github.com/jonesrussell/pricescout/internal/domain"

// subscriber is one attached event consumer. Sends are non-blocking: a
// consumer that stops draining is dropped rather than allowed to stall
// the publisher.
type subscriber struct {
	ch     chan domain.Event
	closed bool
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{ch: make(chan domain.Event, capacity)}
}

// send enqueues an event. Returns false when the buffer is full, which
// marks the subscriber as slow.
func (s *subscriber) send(ev domain.Event) bool {
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// close is idempotent under the room lock.
func (s *subscriber) close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
