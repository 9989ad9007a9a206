// Package scraper defines the vendor scraper contract and the adapters
// for each supported store. Adapters return product listings for a query;
// everything that can go wrong stays scoped to the one vendor.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// ErrParse marks vendor responses that were fetched but could not be
// understood. Wrap it so Run classifies the failure as a parse error.
var ErrParse = errors.New("unparseable vendor response")

// Scraper searches one vendor. Implementations must be safe for
// concurrent use.
type Scraper interface {
	// VendorID returns the configured vendor identifier.
	VendorID() string
	// VendorName returns the display name of the vendor.
	VendorName() string
	// Search returns up to maxResults product listings for query.
	Search(ctx context.Context, query string, maxResults int) ([]domain.ScrapedProduct, error)
}

// Result is the settled outcome of running one scraper: either a product
// list or a classified failure, never both.
type Result struct {
	VendorID string
	Products []domain.ScrapedProduct
	Outcome  domain.VendorOutcome
}

// Run executes a scraper and settles its result. It never returns an
// error: failures, including panics inside an adapter, become a failed
// VendorOutcome so one misbehaving vendor cannot take down a search.
func Run(ctx context.Context, s Scraper, query string, maxResults int, log logger.Logger) (res Result) {
	start := time.Now()
	res.VendorID = s.VendorID()

	defer func() {
		if r := recover(); r != nil {
			log.Error("scraper panic",
				logger.String("vendor", s.VendorID()),
				logger.Any("panic", r))
			res.Products = nil
			res.Outcome = domain.VendorOutcome{
				VendorID: s.VendorID(),
				Success:  false,
				Reason:   domain.ReasonUnknown,
				Message:  fmt.Sprintf("panic: %v", r),
				Duration: time.Since(start),
			}
		}
	}()

	products, err := s.Search(ctx, NormalizeQuery(query), maxResults)
	duration := time.Since(start)

	if err != nil {
		res.Outcome = domain.VendorOutcome{
			VendorID: s.VendorID(),
			Success:  false,
			Reason:   Classify(err),
			Message:  err.Error(),
			Duration: duration,
		}
		return res
	}

	for i := range products {
		products[i].VendorID = s.VendorID()
		products[i].VendorName = s.VendorName()
		if products[i].Currency == "" {
			products[i].Currency = "GTQ"
		}
	}
	res.Products = products
	res.Outcome = domain.VendorOutcome{
		VendorID:     s.VendorID(),
		Success:      true,
		Duration:     duration,
		ProductCount: len(products),
	}
	return res
}

// Classify maps a scraper error to a vendor failure reason.
func Classify(err error) domain.FailureReason {
	if errors.Is(err, ErrParse) {
		return domain.ReasonParse
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	switch fetch.KindOf(err) {
	case fetch.KindTimeout:
		return domain.ReasonTimeout
	case fetch.KindRateLimited:
		return domain.ReasonRateLimited
	case fetch.KindNetwork:
		return domain.ReasonNetwork
	case fetch.KindHTTP:
		return domain.ReasonHTTP
	}
	return domain.ReasonUnknown
}

// Constructor builds a scraper for one vendor from its configuration.
// Fetch options are forwarded to the vendor's HTTP client.
type Constructor func(vendorID string, cfg config.VendorConfig, log logger.Logger, opts ...fetch.Option) Scraper

// Registry maps vendor IDs to scraper constructors.
type Registry map[string]Constructor

// DefaultRegistry returns the constructors for all built-in vendor
// adapters.
func DefaultRegistry() Registry {
	return Registry{
		"cemaco":  NewCemaco,
		"walmart": NewWalmart,
		"max":     NewMax,
		"elektra": NewElektra,
	}
}

// BuildAll constructs scrapers for every enabled vendor that has a
// registered adapter, in vendor ID order. Enabled vendors without an
// adapter are an error: a configured store silently dropping out of
// searches is worse than failing at startup.
func (r Registry) BuildAll(vendors map[string]config.VendorConfig, log logger.Logger, opts ...fetch.Option) ([]Scraper, error) {
	ids := make([]string, 0, len(vendors))
	for id, vc := range vendors {
		if vc.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	scrapers := make([]Scraper, 0, len(ids))
	for _, id := range ids {
		ctor, ok := r[id]
		if !ok {
			return nil, fmt.Errorf("no scraper registered for vendor %q", id)
		}
		scrapers = append(scrapers, ctor(id, vendors[id], log, opts...))
	}
	return scrapers, nil
}
