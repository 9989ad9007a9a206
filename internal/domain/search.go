package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status is the lifecycle state of a search.
type Status string

// Search lifecycle states. Completed, Failed and TimedOut are terminal.
const (
	StatusInitiated Status = "initiated"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether the status is terminal. Terminal states admit
// no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// Domain errors.
var (
	// ErrSearchTerminal is returned when mutating a search whose event
	// log has been sealed by a terminal event.
	ErrSearchTerminal = errors.New("search is terminal")
	// ErrInvalidTransition is returned on a non-monotonic status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Filters narrows which products a search accepts.
type Filters struct {
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	Vendors  []string `json:"vendors,omitempty"`
	Brands   []string `json:"brands,omitempty"`
}

// Options configures execution of a single search.
type Options struct {
	MaxResults int           `json:"max_results"`
	Timeout    time.Duration `json:"timeout"`
}

// PriceStats aggregates prices across all products found by a search.
// Average is the true arithmetic mean; rounding is a presentation concern.
type PriceStats struct {
	Lowest  float64 `json:"lowest_price"`
	Highest float64 `json:"highest_price"`
	Average float64 `json:"average_price"`
	Range   float64 `json:"price_range"`
}

// Search is the aggregate root for one query execution across all vendors.
// It is owned exclusively by the orchestrator while running; once terminal
// it is read-only apart from a single background persistence read.
type Search struct {
	mu sync.RWMutex

	id              string
	query           string
	normalizedQuery string
	filters         Filters
	options         Options

	status      Status
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time

	seq      uint64
	events   []Event
	sealed   bool
	outcomes map[string]VendorOutcome
	products []ScrapedProduct
	stats    *PriceStats
	failure  string
}

// NewSearch creates a search in the initiated state.
func NewSearch(id, query string, filters Filters, options Options) *Search {
	return &Search{
		id:              id,
		query:           query,
		normalizedQuery: NormalizeQuery(query),
		filters:         filters,
		options:         options,
		status:          StatusInitiated,
		createdAt:       time.Now(),
		outcomes:        make(map[string]VendorOutcome),
	}
}

// NormalizeQuery collapses whitespace and lowercases a query string.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// ID returns the search identifier.
func (s *Search) ID() string { return s.id }

// Query returns the original query string.
func (s *Search) Query() string { return s.query }

// NormalizedQuery returns the normalized query string.
func (s *Search) NormalizedQuery() string { return s.normalizedQuery }

// Filters returns the filter set the search was created with.
func (s *Search) Filters() Filters { return s.filters }

// Options returns the options the search was created with.
func (s *Search) Options() Options { return s.options }

// CreatedAt returns the creation timestamp.
func (s *Search) CreatedAt() time.Time { return s.createdAt }

// Status returns the current lifecycle state.
func (s *Search) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Terminal reports whether the search has reached a terminal state.
func (s *Search) Terminal() bool {
	return s.Status().Terminal()
}

// CompletedAt returns the completion timestamp (zero until terminal).
func (s *Search) CompletedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedAt
}

// Duration returns the elapsed time from start to completion, or from
// start to now while the search is still running.
func (s *Search) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durationLocked()
}

func (s *Search) durationLocked() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	if s.completedAt.IsZero() {
		return time.Since(s.startedAt)
	}
	return s.completedAt.Sub(s.startedAt)
}

// Start transitions the search from initiated to running.
func (s *Search) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(StatusRunning); err != nil {
		return err
	}
	s.startedAt = time.Now()
	return nil
}

// transitionLocked enforces the monotonic status machine.
func (s *Search) transitionLocked(to Status) error {
	if s.status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
	switch to {
	case StatusRunning:
		if s.status != StatusInitiated {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
		}
	case StatusCompleted, StatusTimedOut:
		if s.status != StatusRunning {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
		}
	case StatusFailed:
		// A search may fail before it started running.
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
	s.status = to
	return nil
}

// Append adds an event to the log, assigning the next sequence number.
// Exactly one terminal event is ever appended; any append after that
// returns ErrSearchTerminal.
func (s *Search) Append(t EventType, data any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return Event{}, ErrSearchTerminal
	}

	s.seq++
	ev := Event{
		Type:      t,
		SearchID:  s.id,
		Sequence:  s.seq,
		Timestamp: time.Now(),
		Data:      data,
	}
	s.events = append(s.events, ev)
	if t.Terminal() {
		s.sealed = true
	}
	return ev, nil
}

// Events returns a copy of the event log recorded so far.
func (s *Search) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// RecordOutcome stores the immutable per-vendor outcome. The first outcome
// recorded for a vendor wins; later writes for the same vendor are ignored.
func (s *Search) RecordOutcome(o VendorOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outcomes[o.VendorID]; exists {
		return
	}
	s.outcomes[o.VendorID] = o
}

// HasOutcome reports whether a vendor has already settled.
func (s *Search) HasOutcome(vendorID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outcomes[vendorID]
	return ok
}

// AddProducts appends products to the aggregated result list, preserving
// the order the scraper returned them in.
func (s *Search) AddProducts(products []ScrapedProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, products...)
}

// Products returns a copy of the aggregated product list.
func (s *Search) Products() []ScrapedProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ScrapedProduct, len(s.products))
	copy(out, s.products)
	return out
}

// Complete marks the search terminal with the given statistics. When the
// finalization was forced by the per-search deadline, timedOut selects the
// timed_out terminal status instead of completed.
func (s *Search) Complete(stats *PriceStats, timedOut bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	to := StatusCompleted
	if timedOut {
		to = StatusTimedOut
	}
	if err := s.transitionLocked(to); err != nil {
		return err
	}
	s.completedAt = time.Now()
	s.stats = stats
	return nil
}

// Fail marks the search terminal with an orchestration-scoped failure.
func (s *Search) Fail(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(StatusFailed); err != nil {
		return err
	}
	s.completedAt = time.Now()
	s.failure = msg
	return nil
}

// FailureMessage returns the orchestration failure message, if any.
func (s *Search) FailureMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// Snapshot is a point-in-time, read-only view of a search.
type Snapshot struct {
	ID           string                   `json:"search_id"`
	Query        string                   `json:"query"`
	Status       Status                   `json:"status"`
	TotalResults int                      `json:"total_results"`
	SearchTime   float64                  `json:"search_time"`
	Products     []ScrapedProduct         `json:"results"`
	Stats        *PriceStats              `json:"comparison,omitempty"`
	Outcomes     map[string]VendorOutcome `json:"vendor_outcomes,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of the search state. Snapshots of a
// terminal search are identical across calls.
func (s *Search) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]ScrapedProduct, len(s.products))
	copy(products, s.products)

	outcomes := make(map[string]VendorOutcome, len(s.outcomes))
	for k, v := range s.outcomes {
		outcomes[k] = v
	}

	var stats *PriceStats
	if s.stats != nil {
		c := *s.stats
		stats = &c
	}

	return Snapshot{
		ID:           s.id,
		Query:        s.query,
		Status:       s.status,
		TotalResults: len(products),
		SearchTime:   s.durationLocked().Seconds(),
		Products:     products,
		Stats:        stats,
		Outcomes:     outcomes,
		Error:        s.failure,
	}
}
