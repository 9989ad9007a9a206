package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/search"
	"github.com/jonesrussell/pricescout/internal/stream"
)

type handlers struct {
	deps    Deps
	log     logger.Logger
	started time.Time
}

func newHandlers(deps Deps, log logger.Logger) *handlers {
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}
	return &handlers{deps: deps, log: log, started: time.Now()}
}

func (h *handlers) register(router *gin.Engine) {
	router.GET("/healthz", h.health)
	if h.deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.POST("/search", h.createSearch)
	v1.GET("/search/:id", h.getSearch)
	v1.GET("/search/:id/events", h.streamEvents)
	v1.GET("/vendors", h.listVendors)
}

// searchRequest is the intake payload. Timeout is expressed in seconds
// so clients do not need to know Go duration syntax.
type searchRequest struct {
	Query          string   `json:"query" binding:"required"`
	MinPrice       *float64 `json:"min_price"`
	MaxPrice       *float64 `json:"max_price"`
	Vendors        []string `json:"vendors"`
	Brands         []string `json:"brands"`
	MaxResults     int      `json:"max_results"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

func (h *handlers) createSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	filters := domain.Filters{
		MinPrice: req.MinPrice,
		MaxPrice: req.MaxPrice,
		Vendors:  req.Vendors,
		Brands:   req.Brands,
	}
	options := domain.Options{
		MaxResults: req.MaxResults,
		Timeout:    time.Duration(req.TimeoutSeconds) * time.Second,
	}

	s, err := h.deps.Orchestrator.CreateSearch(req.Query, filters, options)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"search_id":  s.ID(),
		"status":     s.Status(),
		"stream_url": "/api/v1/search/" + s.ID() + "/events",
	})
}

func (h *handlers) getSearch(c *gin.Context) {
	s, ok := h.deps.Registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *handlers) streamEvents(c *gin.Context) {
	id := c.Param("id")
	events, cancel, err := h.deps.Hub.Subscribe(id)
	if err != nil {
		if errors.Is(err, stream.ErrUnknownSearch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer cancel()

	h.log.Debug("event stream attached", logger.String("search_id", id))
	streamSSE(c, events, h.deps.Heartbeat)
}

type vendorInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Enabled bool   `json:"enabled"`
}

func (h *handlers) listVendors(c *gin.Context) {
	vendors := make([]vendorInfo, 0, len(h.deps.Vendors))
	for id, vc := range h.deps.Vendors {
		vendors = append(vendors, vendorInfo{
			ID:      id,
			Name:    vc.Name,
			BaseURL: vc.BaseURL,
			Enabled: vc.Enabled,
		})
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].ID < vendors[j].ID })
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"uptime_seconds":  int(time.Since(h.started).Seconds()),
		"active_searches": h.deps.Registry.Len(),
	})
}
