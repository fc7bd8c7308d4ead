package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

// RestaurantStore is the persisted-store contract the aggregator depends on.
// Rows come back tagged local; ordering is up to the aggregator.
type RestaurantStore interface {
	FindNear(ctx context.Context, center geo.Coordinates, radiusMeters float64, filters models.SearchFilters) ([]*models.Restaurant, error)
	GetByID(ctx context.Context, id string) (*models.Restaurant, error)
	SaveMany(ctx context.Context, restaurants []*models.Restaurant) error
}

// NearbySearcher is the external provider contract. Implementations map all
// transport/auth/quota failures to places.ErrProviderUnavailable; the
// aggregator degrades any provider error to zero external results.
type NearbySearcher interface {
	NearbySearch(ctx context.Context, center geo.Coordinates, radiusMeters float64, keyword string) ([]*models.Restaurant, error)
}

type Service struct {
	store    RestaurantStore
	provider NearbySearcher
}

func New(store RestaurantStore, provider NearbySearcher) *Service {
	return &Service{store: store, provider: provider}
}

type fetchResult struct {
	restaurants []*models.Restaurant
	err         error
}

// Search merges local and external restaurants around a center point into one
// deduplicated, filtered, sorted, paginated result. It is stateless and safe
// for concurrent use.
func (s *Service) Search(ctx context.Context, params models.SearchParams) (*models.SearchResult, error) {
	params, err := normalize(params)
	if err != nil {
		return nil, err
	}

	// fan out the two independent reads, then join
	storeCh := make(chan fetchResult, 1)
	go func() {
		rs, err := s.store.FindNear(ctx, params.Center, params.RadiusMeters, params.Filters)
		storeCh <- fetchResult{restaurants: rs, err: err}
	}()

	var extCh chan fetchResult
	if params.IncludeExternal && s.provider != nil {
		extCh = make(chan fetchResult, 1)
		go func() {
			rs, err := s.provider.NearbySearch(ctx, params.Center, params.RadiusMeters, params.Keyword)
			extCh <- fetchResult{restaurants: rs, err: err}
		}()
	}

	local := <-storeCh
	if local.err != nil {
		return nil, fmt.Errorf("restaurant store: %w", local.err)
	}

	var external []*models.Restaurant
	if extCh != nil {
		ext := <-extCh
		if ext.err != nil {
			// degrade to local-only results, never fail the search
			log.Printf("external provider degraded, serving local-only: %v", ext.err)
		} else {
			external = ext.restaurants
		}
	}

	candidates := make([]*models.Restaurant, 0, len(local.restaurants)+len(external))
	candidates = append(candidates, local.restaurants...)
	candidates = append(candidates, external...)

	// annotate distances and drop radius-inexact provider results
	within := candidates[:0]
	for _, r := range candidates {
		d, err := geo.DistanceMeters(params.Center, r.Coordinates())
		if err != nil || d > params.RadiusMeters {
			continue
		}
		r.DistanceMeters = d
		within = append(within, r)
	}

	merged := dedupe(within)

	// re-apply filters uniformly: the store may have pushed some down, the
	// provider has not; the predicates are idempotent
	filtered := merged[:0]
	for _, r := range merged {
		if params.Filters.Matches(r) {
			filtered = append(filtered, r)
		}
	}

	sortRestaurants(filtered, params.SortBy)

	var sources models.SourceCounts
	for _, r := range filtered {
		switch r.DataSource {
		case models.SourceExternal:
			sources.External++
		default:
			sources.Local++
		}
	}

	return &models.SearchResult{
		Restaurants:  page(filtered, params.Offset, params.Limit),
		Total:        len(filtered),
		Sources:      sources,
		SearchParams: params,
	}, nil
}

// Ingest validates and upserts local restaurants. Records with out-of-range
// coordinates are rejected, not clamped; the rest are saved.
func (s *Service) Ingest(ctx context.Context, restaurants []*models.Restaurant) (int, []string, error) {
	var accepted []*models.Restaurant
	var rejected []string
	for i, r := range restaurants {
		if err := r.Coordinates().Validate(); err != nil {
			rejected = append(rejected, fmt.Sprintf("restaurant[%d] %q: %v", i, r.Name, err))
			continue
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Cuisine == nil {
			r.Cuisine = []string{}
		}
		r.DataSource = models.SourceLocal
		accepted = append(accepted, r)
	}
	if len(accepted) > 0 {
		if err := s.store.SaveMany(ctx, accepted); err != nil {
			return 0, rejected, fmt.Errorf("restaurant store: %w", err)
		}
	}
	return len(accepted), rejected, nil
}

func (s *Service) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	return s.store.GetByID(ctx, id)
}

// normalize applies defaults and validates, returning the params that will be
// echoed back in the result.
func normalize(p models.SearchParams) (models.SearchParams, error) {
	if err := p.Center.Validate(); err != nil {
		return p, fmt.Errorf("%w: center: %v", ErrInvalidParameter, err)
	}
	if p.RadiusMeters <= 0 {
		return p, fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidParameter, p.RadiusMeters)
	}
	if p.Limit == 0 {
		p.Limit = 20
	}
	if p.Limit < 0 {
		return p, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidParameter, p.Limit)
	}
	if p.Offset < 0 {
		return p, fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidParameter, p.Offset)
	}
	if p.SortBy == "" {
		p.SortBy = models.SortDistance
	}
	if !p.SortBy.Valid() {
		return p, fmt.Errorf("%w: unknown sort order %q", ErrInvalidParameter, p.SortBy)
	}
	f := p.Filters
	if f.PriceMin != nil && (*f.PriceMin < 1 || *f.PriceMin > 4) {
		return p, fmt.Errorf("%w: price level %d out of range [1,4]", ErrInvalidParameter, *f.PriceMin)
	}
	if f.PriceMax != nil && (*f.PriceMax < 1 || *f.PriceMax > 4) {
		return p, fmt.Errorf("%w: price level %d out of range [1,4]", ErrInvalidParameter, *f.PriceMax)
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return p, fmt.Errorf("%w: price range min %d > max %d", ErrInvalidParameter, *f.PriceMin, *f.PriceMax)
	}
	if f.MinRating < 0 || f.MinRating > 5 {
		return p, fmt.Errorf("%w: min rating %v out of range [0,5]", ErrInvalidParameter, f.MinRating)
	}
	return p, nil
}

func page(rs []*models.Restaurant, offset, limit int) []*models.Restaurant {
	if offset >= len(rs) {
		return []*models.Restaurant{}
	}
	end := offset + limit
	if end > len(rs) {
		end = len(rs)
	}
	return rs[offset:end]
}
