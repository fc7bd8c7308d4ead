package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

// MemoryStore keeps restaurants in a map guarded by an RWMutex and filters
// in application code. It backs local development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*models.Restaurant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]*models.Restaurant{}}
}

func (m *MemoryStore) SaveMany(ctx context.Context, restaurants []*models.Restaurant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range restaurants {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		m.byID[r.ID] = clone(r)
	}
	return nil
}

func (m *MemoryStore) FindNear(ctx context.Context, center geo.Coordinates, radiusMeters float64, filters models.SearchFilters) ([]*models.Restaurant, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*models.Restaurant{}
	for _, r := range m.byID {
		d, err := geo.DistanceMeters(center, r.Coordinates())
		if err != nil || d > radiusMeters {
			continue
		}
		if !filters.Matches(r) {
			continue
		}
		c := clone(r)
		c.DistanceMeters = d
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*models.Restaurant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

// clone returns a copy the caller may annotate without mutating store state.
func clone(r *models.Restaurant) *models.Restaurant {
	c := *r
	c.DataSource = models.SourceLocal
	if r.Cuisine != nil {
		c.Cuisine = append(c.Cuisine[:0:0], r.Cuisine...)
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
