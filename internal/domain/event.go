package domain

import "time"

// EventType identifies the kind of search event.
type EventType string

// Event types emitted during a search lifecycle.
const (
	EventSearchStarted   EventType = "search:started"
	EventVendorStarted   EventType = "vendor:started"
	EventProductFound    EventType = "product:found"
	EventVendorCompleted EventType = "vendor:completed"
	EventVendorError     EventType = "vendor:error"
	EventSearchCompleted EventType = "search:completed"
	EventSearchFailed    EventType = "search:failed"
)

// Terminal reports whether the event type ends a search's event log.
func (t EventType) Terminal() bool {
	return t == EventSearchCompleted || t == EventSearchFailed
}

// Event is a single entry in a search's append-only event log.
// Sequence numbers are scoped to the search and strictly increasing;
// events are immutable once emitted.
type Event struct {
	Type      EventType `json:"type"`
	SearchID  string    `json:"search_id"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// SearchStartedData is the payload for search:started events.
type SearchStartedData struct {
	Query       string `json:"query"`
	VendorCount int    `json:"vendor_count"`
}

// VendorStartedData is the payload for vendor:started events.
type VendorStartedData struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
}

// ProductFoundData is the payload for product:found events.
type ProductFoundData struct {
	VendorID string         `json:"vendor_id"`
	Product  ScrapedProduct `json:"product"`
}

// VendorCompletedData is the payload for vendor:completed events.
type VendorCompletedData struct {
	VendorID     string `json:"vendor_id"`
	ProductCount int    `json:"product_count"`
	DurationMs   int64  `json:"duration_ms"`
}

// VendorErrorData is the payload for vendor:error events.
type VendorErrorData struct {
	VendorID string        `json:"vendor_id"`
	Reason   FailureReason `json:"reason"`
	Message  string        `json:"message,omitempty"`
}

// SearchCompletedData is the payload for search:completed events.
type SearchCompletedData struct {
	TotalResults int         `json:"total_results"`
	DurationMs   int64       `json:"duration_ms"`
	Stats        *PriceStats `json:"stats,omitempty"`
}

// SearchFailedData is the payload for search:failed events.
type SearchFailedData struct {
	Message string `json:"message"`
}
