package domain

import "time"

// FailureReason classifies why a vendor search failed.
type FailureReason string

// Failure classifications. Vendor-scoped failures are always isolated to
// the vendor that produced them.
const (
	ReasonNetwork     FailureReason = "network"
	ReasonHTTP        FailureReason = "http"
	ReasonParse       FailureReason = "parse"
	ReasonRateLimited FailureReason = "rate_limited"
	ReasonTimeout     FailureReason = "timeout"
	ReasonUnknown     FailureReason = "unknown"
)

// VendorOutcome records the result of one vendor's participation in a
// search. Created once per vendor per search and immutable afterwards.
type VendorOutcome struct {
	VendorID     string        `json:"vendor_id"`
	Success      bool          `json:"success"`
	Reason       FailureReason `json:"reason,omitempty"`
	Message      string        `json:"message,omitempty"`
	Duration     time.Duration `json:"duration"`
	ProductCount int           `json:"product_count"`
}
