package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tastemap/restaurant-intel/internal/cache"
	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

var bangkok = geo.Coordinates{Latitude: 13.7563, Longitude: 100.5018}

type countingSearcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{} // when set, NearbySearch blocks until closed
	result  []*models.Restaurant
}

func (c *countingSearcher) NearbySearch(ctx context.Context, center geo.Coordinates, radiusMeters float64, keyword string) ([]*models.Restaurant, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.release != nil {
		<-c.release
	}
	return c.result, nil
}

func (c *countingSearcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Without a redis client the cache degrades to pass-through.
func TestPassThroughWithoutRedis(t *testing.T) {
	inner := &countingSearcher{result: []*models.Restaurant{{ID: "r1", Name: "A"}}}
	c := cache.New(nil, inner, time.Minute)

	for i := 0; i < 2; i++ {
		rs, err := c.NearbySearch(context.Background(), bangkok, 5000, "")
		if err != nil {
			t.Fatalf("NearbySearch: %v", err)
		}
		if len(rs) != 1 || rs[0].ID != "r1" {
			t.Fatalf("unexpected result: %+v", rs)
		}
	}
	if inner.count() != 2 {
		t.Fatalf("want pass-through on every call, got %d inner calls", inner.count())
	}
}

// Concurrent identical misses collapse into a single upstream fetch.
func TestSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	inner := &countingSearcher{
		release: make(chan struct{}),
		result:  []*models.Restaurant{{ID: "r1", Name: "A"}},
	}
	c := cache.New(nil, inner, time.Minute)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.NearbySearch(context.Background(), bangkok, 5000, "noodles")
		}(i)
	}

	// let every goroutine reach the in-flight key before releasing the fetch
	time.Sleep(100 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if inner.count() != 1 {
		t.Fatalf("want exactly one upstream fetch, got %d", inner.count())
	}
}

// Waiters on a collapsed flight must not share record pointers: every search
// annotates DistanceMeters in place, so handing out the fetched slice itself
// would let concurrent searches write to the same structs.
func TestConcurrentCallersGetIndependentRecords(t *testing.T) {
	inner := &countingSearcher{
		release: make(chan struct{}),
		result: []*models.Restaurant{
			{ID: "r1", Name: "A", Cuisine: []string{"thai"}, Metadata: map[string]any{"external_id": "p1"}},
		},
	}
	c := cache.New(nil, inner, time.Minute)

	const n = 4
	var wg sync.WaitGroup
	results := make([][]*models.Restaurant, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.NearbySearch(context.Background(), bangkok, 5000, "")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if len(results[i]) != 1 {
			t.Fatalf("caller %d: want 1 record, got %d", i, len(results[i]))
		}
	}
	if inner.count() != 1 {
		t.Fatalf("want one collapsed fetch, got %d", inner.count())
	}
	for i := 1; i < n; i++ {
		if results[i][0] == results[0][0] {
			t.Fatalf("callers %d and 0 share a record pointer", i)
		}
	}

	// annotating one caller's record must not leak into another's
	results[0][0].DistanceMeters = 1234
	results[0][0].Metadata["external_id"] = "mutated"
	if results[1][0].DistanceMeters == 1234 {
		t.Fatal("DistanceMeters write leaked across callers")
	}
	if results[1][0].Metadata["external_id"] != "p1" {
		t.Fatal("metadata write leaked across callers")
	}
	// the fetched slice itself stays clean too
	if inner.result[0].DistanceMeters == 1234 {
		t.Fatal("caller mutation reached the provider's records")
	}
}

// The shared fetch runs on a detached context: a caller canceling its request
// must not poison the flight for everyone waiting on it.
func TestFetchSurvivesCallerCancellation(t *testing.T) {
	inner := &ctxCheckingSearcher{result: []*models.Restaurant{{ID: "r1", Name: "A"}}}
	c := cache.New(nil, inner, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rs, err := c.NearbySearch(ctx, bangkok, 5000, "")
	if err != nil {
		t.Fatalf("canceled caller must not fail the shared fetch: %v", err)
	}
	if len(rs) != 1 || rs[0].ID != "r1" {
		t.Fatalf("unexpected result: %+v", rs)
	}
}

type ctxCheckingSearcher struct {
	result []*models.Restaurant
}

func (s *ctxCheckingSearcher) NearbySearch(ctx context.Context, center geo.Coordinates, radiusMeters float64, keyword string) ([]*models.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.result, nil
}

// Different keys do not share a flight.
func TestDistinctKeysFetchSeparately(t *testing.T) {
	inner := &countingSearcher{result: []*models.Restaurant{}}
	c := cache.New(nil, inner, time.Minute)

	if _, err := c.NearbySearch(context.Background(), bangkok, 5000, "noodles"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.NearbySearch(context.Background(), bangkok, 2000, "noodles"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.NearbySearch(context.Background(), bangkok, 5000, "seafood"); err != nil {
		t.Fatal(err)
	}
	if inner.count() != 3 {
		t.Fatalf("want 3 distinct fetches, got %d", inner.count())
	}
}
