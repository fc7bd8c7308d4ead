package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/internal/service"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

// DefaultTTL keeps external results fresh enough for discovery while
// absorbing bursts of identical queries.
const DefaultTTL = 2 * time.Minute

// NearbyCache wraps a NearbySearcher with a short-TTL redis cache keyed by
// (center, radius, keyword). Concurrent identical misses collapse into one
// upstream fetch. A broken redis degrades to pass-through, never to failure.
type NearbyCache struct {
	rdb   *redis.Client
	inner service.NearbySearcher
	ttl   time.Duration
	group singleflight.Group
}

func New(rdb *redis.Client, inner service.NearbySearcher, ttl time.Duration) *NearbyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &NearbyCache{rdb: rdb, inner: inner, ttl: ttl}
}

func (c *NearbyCache) NearbySearch(ctx context.Context, center geo.Coordinates, radiusMeters float64, keyword string) ([]*models.Restaurant, error) {
	key := cacheKey(center, radiusMeters, keyword)

	if c.rdb != nil {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var rs []*models.Restaurant
			if jerr := json.Unmarshal(b, &rs); jerr == nil {
				return rs, nil
			}
		} else if err != redis.Nil {
			log.Printf("places cache read failed, passing through: %v", err)
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// the flight is shared by every waiter: detach from the first
		// caller's context so one canceled request does not fail the rest
		// (the inner client stays bounded by its own timeout)
		fetchCtx := context.WithoutCancel(ctx)
		rs, err := c.inner.NearbySearch(fetchCtx, center, radiusMeters, keyword)
		if err != nil {
			return nil, err
		}
		if c.rdb != nil {
			if b, jerr := json.Marshal(rs); jerr == nil {
				if serr := c.rdb.Set(fetchCtx, key, b, c.ttl).Err(); serr != nil {
					log.Printf("places cache write failed: %v", serr)
				}
			}
		}
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	// waiters on a collapsed flight all receive the same slice; hand each
	// caller its own copies, since searches annotate distances in place
	return cloneAll(v.([]*models.Restaurant)), nil
}

func cloneAll(rs []*models.Restaurant) []*models.Restaurant {
	out := make([]*models.Restaurant, len(rs))
	for i, r := range rs {
		c := *r
		if r.Cuisine != nil {
			c.Cuisine = append(c.Cuisine[:0:0], r.Cuisine...)
		}
		if r.Metadata != nil {
			c.Metadata = make(map[string]any, len(r.Metadata))
			for k, v := range r.Metadata {
				c.Metadata[k] = v
			}
		}
		out[i] = &c
	}
	return out
}

// cacheKey rounds coordinates to ~10m so jittery clients at the same spot
// share an entry.
func cacheKey(center geo.Coordinates, radiusMeters float64, keyword string) string {
	return fmt.Sprintf("places:%.4f,%.4f:%.0f:%s", center.Latitude, center.Longitude, radiusMeters, keyword)
}
