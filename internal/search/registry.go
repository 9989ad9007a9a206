package search

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// Attachments reports whether anything is still listening to a search's
// event stream. The registry will not evict a search with live
// listeners.
type Attachments interface {
	SubscriberCount(searchID string) int
	Remove(searchID string)
}

// Registry is the process-wide table of active and recently finished
// searches. Terminal searches stay available for the retention window so
// late snapshot reads and re-subscribes still work, then get evicted.
type Registry struct {
	retention time.Duration
	att       Attachments
	log       logger.Logger

	mu       sync.RWMutex
	searches map[string]*domain.Search
}

// NewRegistry creates a registry with the given retention window past
// terminal status.
func NewRegistry(retention time.Duration, att Attachments, log logger.Logger) *Registry {
	return &Registry{
		retention: retention,
		att:       att,
		log:       log,
		searches:  make(map[string]*domain.Search),
	}
}

// Add stores a search. IDs are fresh per request so collisions do not
// happen; adding an existing ID replaces it.
func (r *Registry) Add(s *domain.Search) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches[s.ID()] = s
}

// Get returns the search for id.
func (r *Registry) Get(id string) (*domain.Search, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.searches[id]
	return s, ok
}

// Len reports how many searches are tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.searches)
}

// Start runs the eviction janitor until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	interval := r.retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.evictExpired(time.Now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// evictExpired removes terminal searches whose retention window has
// passed and that have no attached subscribers.
func (r *Registry) evictExpired(now time.Time) {
	r.mu.Lock()
	expired := make([]string, 0)
	for id, s := range r.searches {
		if !s.Terminal() {
			continue
		}
		if now.Sub(s.CompletedAt()) < r.retention {
			continue
		}
		if r.att != nil && r.att.SubscriberCount(id) > 0 {
			continue
		}
		expired = append(expired, id)
		delete(r.searches, id)
	}
	r.mu.Unlock()

	for _, id := range expired {
		if r.att != nil {
			r.att.Remove(id)
		}
		r.log.Debug("search evicted", logger.String("search_id", id))
	}
}
