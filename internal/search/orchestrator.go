// Package search runs the multi-vendor search pipeline: aggregate
// creation, concurrent vendor fan-out, outcome settlement, statistics,
// and the registry of live searches.
package search

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/metrics"
	"github.com/jonesrussell/pricescout/internal/scraper"
)

// ErrEmptyQuery rejects searches whose query contains nothing to search
// for.
var ErrEmptyQuery = errors.New("empty query")

// Publisher appends events to a search's log and fans them out to
// subscribers. Satisfied by *stream.Hub.
type Publisher interface {
	Register(s *domain.Search)
	Publish(searchID string, t domain.EventType, data any) (domain.Event, error)
}

// Archiver persists a finished search in the background. Satisfied by
// *persist.Pool. Failures stay behind this boundary: a terminal search's
// status and delivered events never change because archiving failed.
type Archiver interface {
	Archive(snap domain.Snapshot)
}

// Orchestrator creates searches and drives them to a terminal status.
type Orchestrator struct {
	cfg      config.SearchConfig
	scrapers []scraper.Scraper
	pub      Publisher
	registry *Registry
	archiver Archiver
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewOrchestrator wires the orchestrator. archiver and m may be nil.
func NewOrchestrator(
	cfg config.SearchConfig,
	scrapers []scraper.Scraper,
	pub Publisher,
	registry *Registry,
	archiver Archiver,
	m *metrics.Metrics,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		scrapers: scrapers,
		pub:      pub,
		registry: registry,
		archiver: archiver,
		metrics:  m,
		log:      log,
	}
}

// CreateSearch allocates a search, registers it, and starts execution in
// the background. It returns as soon as the search exists; callers never
// wait on vendor I/O.
func (o *Orchestrator) CreateSearch(query string, filters domain.Filters, options domain.Options) (*domain.Search, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if options.MaxResults <= 0 {
		options.MaxResults = o.cfg.DefaultMaxResults
	}
	if options.Timeout <= 0 {
		options.Timeout = o.cfg.DefaultTimeout
	}

	s := domain.NewSearch(uuid.NewString(), query, filters, options)
	o.registry.Add(s)
	o.pub.Register(s)

	o.log.Info("search created",
		logger.String("search_id", s.ID()),
		logger.String("query", s.NormalizedQuery()))

	go o.execute(s)
	return s, nil
}

// execute runs one search to its terminal status. The context deadline
// is the per-search timeout; it is detached from the request context so
// an early client disconnect does not abort the search.
func (o *Orchestrator) execute(s *domain.Search) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Options().Timeout)
	defer cancel()

	start := time.Now()

	if err := s.Start(); err != nil {
		o.fail(s, start, "starting search: "+err.Error())
		return
	}

	enabled := o.enabledScrapers(s.Filters().Vendors)
	o.publish(s, domain.EventSearchStarted, domain.SearchStartedData{
		Query:       s.Query(),
		VendorCount: len(enabled),
	})

	results := make(chan scraper.Result, len(enabled))
	pending := make(map[string]scraper.Scraper, len(enabled))
	for _, sc := range enabled {
		pending[sc.VendorID()] = sc
		o.publish(s, domain.EventVendorStarted, domain.VendorStartedData{
			VendorID:   sc.VendorID(),
			VendorName: sc.VendorName(),
		})
		go func(sc scraper.Scraper) {
			results <- scraper.Run(ctx, sc, s.Query(), s.Options().MaxResults, o.log)
		}(sc)
	}

	// Settle-all join: every vendor settles on its own, a failing or
	// slow vendor never cancels its siblings. If the per-search
	// deadline fires first, whatever has not settled is recorded as a
	// vendor timeout and the search finalizes with the products
	// collected so far.
	timedOut := false
	for len(pending) > 0 {
		select {
		case res := <-results:
			delete(pending, res.VendorID)
			o.settleVendor(s, res)
		case <-ctx.Done():
			timedOut = true
			for id := range pending {
				o.settleVendor(s, scraper.Result{
					VendorID: id,
					Outcome: domain.VendorOutcome{
						VendorID: id,
						Success:  false,
						Reason:   domain.ReasonTimeout,
						Message:  "search deadline elapsed",
						Duration: s.Options().Timeout,
					},
				})
			}
			pending = nil
		}
	}

	o.finalize(s, start, timedOut)
}

// settleVendor records one vendor's outcome and emits its events. For a
// successful vendor the product events preserve the adapter's order;
// ordering across vendors follows settlement and is not promised.
func (o *Orchestrator) settleVendor(s *domain.Search, res scraper.Result) {
	if s.HasOutcome(res.VendorID) {
		return
	}

	if !res.Outcome.Success {
		s.RecordOutcome(res.Outcome)
		o.metrics.VendorSettled(res.Outcome)
		o.publish(s, domain.EventVendorError, domain.VendorErrorData{
			VendorID: res.VendorID,
			Reason:   res.Outcome.Reason,
			Message:  res.Outcome.Message,
		})
		o.log.Warn("vendor failed",
			logger.String("search_id", s.ID()),
			logger.String("vendor", res.VendorID),
			logger.String("reason", string(res.Outcome.Reason)))
		return
	}

	kept := filterProducts(res.Products, s.Filters())
	outcome := res.Outcome
	outcome.ProductCount = len(kept)
	s.RecordOutcome(outcome)
	o.metrics.VendorSettled(outcome)

	s.AddProducts(kept)
	for _, p := range kept {
		o.publish(s, domain.EventProductFound, domain.ProductFoundData{
			VendorID: res.VendorID,
			Product:  p,
		})
	}
	o.publish(s, domain.EventVendorCompleted, domain.VendorCompletedData{
		VendorID:     res.VendorID,
		ProductCount: len(kept),
		DurationMs:   outcome.Duration.Milliseconds(),
	})
}

// finalize computes statistics, marks the search terminal, emits the
// terminal event, and hands the snapshot to the archiver.
func (o *Orchestrator) finalize(s *domain.Search, start time.Time, timedOut bool) {
	products := s.Products()
	stats := ComputePriceStats(products)

	if err := s.Complete(stats, timedOut); err != nil {
		o.fail(s, start, "completing search: "+err.Error())
		return
	}
	duration := time.Since(start)
	o.publish(s, domain.EventSearchCompleted, domain.SearchCompletedData{
		TotalResults: len(products),
		DurationMs:   duration.Milliseconds(),
		Stats:        stats,
	})
	o.metrics.SearchFinished(s.Status(), duration)
	o.log.Info("search finished",
		logger.String("search_id", s.ID()),
		logger.String("status", string(s.Status())),
		logger.Int("total_results", len(products)),
		logger.Duration("duration", duration))

	if o.archiver != nil {
		o.archiver.Archive(s.Snapshot())
	}
}

// fail marks an orchestration-scoped defect. Vendor-scoped failures
// never come through here.
func (o *Orchestrator) fail(s *domain.Search, start time.Time, msg string) {
	if err := s.Fail(msg); err != nil {
		o.log.Error("failing search",
			logger.String("search_id", s.ID()),
			logger.Error(err))
		return
	}
	o.publish(s, domain.EventSearchFailed, domain.SearchFailedData{Message: msg})
	o.metrics.SearchFinished(s.Status(), time.Since(start))
	o.log.Error("search failed",
		logger.String("search_id", s.ID()),
		logger.String("error", msg))
}

func (o *Orchestrator) publish(s *domain.Search, t domain.EventType, data any) {
	if _, err := o.pub.Publish(s.ID(), t, data); err != nil {
		o.log.Error("publishing event",
			logger.String("search_id", s.ID()),
			logger.String("type", string(t)),
			logger.Error(err))
	}
}

// enabledScrapers narrows the configured scrapers to the search's vendor
// allow-list. An empty allow-list means all vendors.
func (o *Orchestrator) enabledScrapers(allow []string) []scraper.Scraper {
	if len(allow) == 0 {
		return o.scrapers
	}
	out := make([]scraper.Scraper, 0, len(o.scrapers))
	for _, sc := range o.scrapers {
		if slices.Contains(allow, sc.VendorID()) {
			out = append(out, sc)
		}
	}
	return out
}

// filterProducts applies the search's price bounds and brand allow-list.
func filterProducts(products []domain.ScrapedProduct, f domain.Filters) []domain.ScrapedProduct {
	if f.MinPrice == nil && f.MaxPrice == nil && len(f.Brands) == 0 {
		return products
	}
	out := make([]domain.ScrapedProduct, 0, len(products))
	for _, p := range products {
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if len(f.Brands) > 0 && !matchesBrand(p.Brand, f.Brands) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesBrand(brand string, allow []string) bool {
	for _, b := range allow {
		if strings.EqualFold(brand, b) {
			return true
		}
	}
	return false
}
