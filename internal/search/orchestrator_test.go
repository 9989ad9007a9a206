package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/scraper"
	"github.com/jonesrussell/pricescout/internal/stream"
)

type stubScraper struct {
	id       string
	products []domain.ScrapedProduct
	err      error
	panicMsg string
	delay    time.Duration
	// blockUntilCancelled makes the stub outlive the search deadline.
	blockUntilCancelled bool
}

func (s *stubScraper) VendorID() string   { return s.id }
func (s *stubScraper) VendorName() string { return s.id }

func (s *stubScraper) Search(ctx context.Context, _ string, _ int) ([]domain.ScrapedProduct, error) {
	if s.blockUntilCancelled {
		<-ctx.Done()
		// Settle well after the orchestrator's deadline branch ran.
		time.Sleep(250 * time.Millisecond)
		return nil, ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.products, s.err
}

func priced(vendor string, prices ...float64) []domain.ScrapedProduct {
	out := make([]domain.ScrapedProduct, 0, len(prices))
	for i, p := range prices {
		out = append(out, domain.ScrapedProduct{
			Name:      vendor,
			Price:     p,
			VendorURL: vendor + "/" + string(rune('a'+i)),
		})
	}
	return out
}

type harness struct {
	hub  *stream.Hub
	reg  *Registry
	orch *Orchestrator
}

func newHarness(t *testing.T, scrapers []scraper.Scraper, opts ...func(*config.SearchConfig)) *harness {
	t.Helper()
	cfg := config.SearchConfig{
		DefaultMaxResults: 50,
		DefaultTimeout:    5 * time.Second,
		Retention:         time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	hub := stream.NewHub(logger.NewNop(), 512)
	reg := NewRegistry(cfg.Retention, hub, logger.NewNop())
	orch := NewOrchestrator(cfg, scrapers, hub, reg, nil, nil, logger.NewNop())
	return &harness{hub: hub, reg: reg, orch: orch}
}

func awaitTerminal(t *testing.T, s *domain.Search) {
	t.Helper()
	require.Eventually(t, s.Terminal, 5*time.Second, 5*time.Millisecond)
}

func TestSearchPartialFailure(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{
		&stubScraper{id: "x", products: priced("x", 1000, 1500, 2000)},
		&stubScraper{id: "y", err: &fetch.Error{Kind: fetch.KindTimeout, URL: "https://y"}},
	})

	s, err := h.orch.CreateSearch("iPhone", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	snap := s.Snapshot()
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.TotalResults)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, 1000.0, snap.Stats.Lowest)
	assert.Equal(t, 2000.0, snap.Stats.Highest)
	assert.Equal(t, 1500.0, snap.Stats.Average)
	assert.Equal(t, 1000.0, snap.Stats.Range)

	require.Len(t, snap.Outcomes, 2)
	assert.True(t, snap.Outcomes["x"].Success)
	assert.Equal(t, 3, snap.Outcomes["x"].ProductCount)
	assert.False(t, snap.Outcomes["y"].Success)
	assert.Equal(t, domain.ReasonTimeout, snap.Outcomes["y"].Reason)
}

func TestSearchNoVendors(t *testing.T) {
	h := newHarness(t, nil)

	s, err := h.orch.CreateSearch("iPhone", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	snap := s.Snapshot()
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Zero(t, snap.TotalResults)
	assert.Nil(t, snap.Stats)
}

func TestSearchAdapterPanicIsolated(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{
		&stubScraper{id: "ok", products: priced("ok", 100)},
		&stubScraper{id: "boom", panicMsg: "nil selector"},
	})

	s, err := h.orch.CreateSearch("tv", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	snap := s.Snapshot()
	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.TotalResults)
	assert.False(t, snap.Outcomes["boom"].Success)
	assert.Equal(t, domain.ReasonUnknown, snap.Outcomes["boom"].Reason)
	assert.True(t, snap.Outcomes["ok"].Success)
}

func TestSearchDeadlineForcesFinalization(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{
		&stubScraper{id: "fast", products: priced("fast", 300)},
		&stubScraper{id: "stuck", blockUntilCancelled: true},
	})

	s, err := h.orch.CreateSearch("tv", domain.Filters{}, domain.Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	awaitTerminal(t, s)

	snap := s.Snapshot()
	assert.Equal(t, domain.StatusTimedOut, snap.Status)
	assert.Equal(t, 1, snap.TotalResults)
	assert.False(t, snap.Outcomes["stuck"].Success)
	assert.Equal(t, domain.ReasonTimeout, snap.Outcomes["stuck"].Reason)
	assert.True(t, snap.Outcomes["fast"].Success)
}

func TestSearchNonBlockingIntake(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{
		&stubScraper{id: "slow", delay: 300 * time.Millisecond, products: priced("slow", 10)},
	})

	start := time.Now()
	s, err := h.orch.CreateSearch("tv", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, s.Terminal())

	awaitTerminal(t, s)
}

func TestSearchVendorAllowList(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{
		&stubScraper{id: "a", products: priced("a", 1)},
		&stubScraper{id: "b", products: priced("b", 2)},
	})

	s, err := h.orch.CreateSearch("tv", domain.Filters{Vendors: []string{"b"}}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	snap := s.Snapshot()
	require.Len(t, snap.Outcomes, 1)
	assert.Contains(t, snap.Outcomes, "b")
}

func TestSearchProductFilters(t *testing.T) {
	products := priced("a", 50, 150, 250)
	products[0].Brand = "Samsung"
	products[1].Brand = "Samsung"
	products[2].Brand = "LG"
	h := newHarness(t, []scraper.Scraper{&stubScraper{id: "a", products: products}})

	minPrice, maxPrice := 100.0, 300.0
	s, err := h.orch.CreateSearch("tv", domain.Filters{
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		Brands:   []string{"samsung"},
	}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	snap := s.Snapshot()
	require.Equal(t, 1, snap.TotalResults)
	assert.Equal(t, 150.0, snap.Products[0].Price)
	assert.Equal(t, 1, snap.Outcomes["a"].ProductCount)
}

func TestSearchEmptyQuery(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.CreateSearch("   ", domain.Filters{}, domain.Options{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchEventLogOrdering(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{
		&stubScraper{id: "a", products: priced("a", 3, 1, 2)},
		&stubScraper{id: "b", products: priced("b", 9, 8)},
	})

	s, err := h.orch.CreateSearch("tv", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	events := s.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventSearchStarted, events[0].Type)
	assert.Equal(t, domain.EventSearchCompleted, events[len(events)-1].Type)

	// Sequences are strictly increasing with no gaps.
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}

	// Per-vendor product order mirrors the adapter's order; order
	// across vendors is unspecified.
	perVendor := map[string][]float64{}
	for _, ev := range events {
		if ev.Type != domain.EventProductFound {
			continue
		}
		data := ev.Data.(domain.ProductFoundData)
		perVendor[data.VendorID] = append(perVendor[data.VendorID], data.Product.Price)
	}
	assert.Equal(t, []float64{3, 1, 2}, perVendor["a"])
	assert.Equal(t, []float64{9, 8}, perVendor["b"])
}

func TestSearchSnapshotIdempotent(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{&stubScraper{id: "a", products: priced("a", 10, 20)}})

	s, err := h.orch.CreateSearch("tv", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	assert.Equal(t, s.Snapshot(), s.Snapshot())
}

type recordingArchiver struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
}

func (a *recordingArchiver) Archive(snap domain.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
}

func (a *recordingArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.snaps)
}

func TestSearchTriggersArchive(t *testing.T) {
	h := newHarness(t, []scraper.Scraper{&stubScraper{id: "a", products: priced("a", 10)}})
	arch := &recordingArchiver{}
	h.orch.archiver = arch

	s, err := h.orch.CreateSearch("tv", domain.Filters{}, domain.Options{})
	require.NoError(t, err)
	awaitTerminal(t, s)

	require.Eventually(t, func() bool { return arch.count() == 1 }, time.Second, 5*time.Millisecond)
	arch.mu.Lock()
	defer arch.mu.Unlock()
	assert.Equal(t, s.ID(), arch.snaps[0].ID)
	assert.Equal(t, domain.StatusCompleted, arch.snaps[0].Status)
}
