package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/scraper"
	"github.com/jonesrussell/pricescout/internal/search"
	"github.com/jonesrussell/pricescout/internal/stream"
)

type fixedScraper struct {
	id       string
	products []domain.ScrapedProduct
	delay    time.Duration
}

func (s *fixedScraper) VendorID() string   { return s.id }
func (s *fixedScraper) VendorName() string { return strings.ToUpper(s.id[:1]) + s.id[1:] }

func (s *fixedScraper) Search(ctx context.Context, _ string, _ int) ([]domain.ScrapedProduct, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.products, nil
}

func newTestServer(t *testing.T, scrapers ...scraper.Scraper) *Server {
	t.Helper()
	log := logger.NewNop()
	hub := stream.NewHub(log, 512)
	reg := search.NewRegistry(time.Minute, hub, log)
	orch := search.NewOrchestrator(config.SearchConfig{
		DefaultMaxResults: 50,
		DefaultTimeout:    5 * time.Second,
	}, scrapers, hub, reg, nil, nil, log)

	return NewServer(config.ServerConfig{Port: 0, AllowedOrigins: []string{"*"}}, Deps{
		Orchestrator: orch,
		Registry:     reg,
		Hub:          hub,
		Vendors: map[string]config.VendorConfig{
			"cemaco":  {Name: "Cemaco", BaseURL: "https://www.cemaco.com", Enabled: true},
			"walmart": {Name: "Walmart", BaseURL: "https://www.walmart.com.gt", Enabled: false},
		},
		Heartbeat: time.Minute,
	}, log)
}

func postSearch(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestCreateSearchAccepted(t *testing.T) {
	srv := newTestServer(t, &fixedScraper{id: "cemaco", products: []domain.ScrapedProduct{
		{Name: "Licuadora", Price: 450, VendorURL: "https://www.cemaco.com/licuadora/p"},
	}})

	w := postSearch(t, srv, `{"query": "licuadora"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		SearchID  string `json:"search_id"`
		Status    string `json:"status"`
		StreamURL string `json:"stream_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SearchID)
	assert.Equal(t, "/api/v1/search/"+resp.SearchID+"/events", resp.StreamURL)
}

func TestCreateSearchValidation(t *testing.T) {
	srv := newTestServer(t)

	w := postSearch(t, srv, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postSearch(t, srv, `{"query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postSearch(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSearchSnapshot(t *testing.T) {
	srv := newTestServer(t, &fixedScraper{id: "cemaco", products: []domain.ScrapedProduct{
		{Name: "Licuadora", Price: 450, VendorURL: "https://www.cemaco.com/licuadora/p"},
	}})

	w := postSearch(t, srv, `{"query": "licuadora"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var created struct {
		SearchID string `json:"search_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	var snap domain.Snapshot
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search/"+created.SearchID, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		return snap.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.TotalResults)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "Licuadora", snap.Products[0].Name)
}

func TestGetSearchNotFound(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/nope", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/search/nope/events", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t, &fixedScraper{id: "cemaco", products: []domain.ScrapedProduct{
		{Name: "Licuadora A", Price: 450, VendorURL: "https://www.cemaco.com/a/p"},
		{Name: "Licuadora B", Price: 300, VendorURL: "https://www.cemaco.com/b/p"},
	}})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/search", "application/json",
		bytes.NewBufferString(`{"query": "licuadora"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	var created struct {
		SearchID  string `json:"search_id"`
		StreamURL string `json:"stream_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	es, err := http.Get(ts.URL + created.StreamURL)
	require.NoError(t, err)
	defer es.Body.Close()
	assert.Equal(t, "text/event-stream", es.Header.Get("Content-Type"))

	// The stream closes after the terminal event, so reading to the end
	// terminates.
	var types []string
	var sequences []uint64
	scanner := bufio.NewScanner(es.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		types = append(types, string(ev.Type))
		sequences = append(sequences, ev.Sequence)
	}
	require.NoError(t, scanner.Err())

	require.Equal(t, []string{
		"search:started",
		"vendor:started",
		"product:found",
		"product:found",
		"vendor:completed",
		"search:completed",
	}, types)
	for i, seq := range sequences {
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestEventStreamReplayAfterCompletion(t *testing.T) {
	srv := newTestServer(t, &fixedScraper{id: "cemaco", products: []domain.ScrapedProduct{
		{Name: "Licuadora", Price: 450, VendorURL: "https://www.cemaco.com/a/p"},
	}})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/search", "application/json",
		bytes.NewBufferString(`{"query": "licuadora"}`))
	require.NoError(t, err)
	var created struct {
		SearchID string `json:"search_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	// Wait for the search to finish before subscribing.
	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/api/v1/search/" + created.SearchID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var snap domain.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	es, err := http.Get(ts.URL + "/api/v1/search/" + created.SearchID + "/events")
	require.NoError(t, err)
	defer es.Body.Close()

	count := 0
	scanner := bufio.NewScanner(es.Body)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			count++
		}
	}
	assert.Equal(t, 5, count, "full log replayed: started, vendor started, product, vendor completed, completed")
}

func TestListVendors(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Vendors []vendorInfo `json:"vendors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Vendors, 2)
	assert.Equal(t, "cemaco", resp.Vendors[0].ID)
	assert.True(t, resp.Vendors[0].Enabled)
	assert.Equal(t, "walmart", resp.Vendors[1].ID)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/vendors", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
