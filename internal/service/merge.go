package service

import (
	"sort"
	"strings"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

// Two records closer than this with the same name are treated as the same
// real-world restaurant.
const dedupeProximityMeters = 50

// dedupe keeps exactly one record per real-world restaurant. A single pass
// over the combined list compares each candidate against the kept set; local
// curation wins over external duplicates.
func dedupe(candidates []*models.Restaurant) []*models.Restaurant {
	kept := make([]*models.Restaurant, 0, len(candidates))
	for _, c := range candidates {
		idx := -1
		for i, k := range kept {
			if sameRestaurant(k, c) {
				idx = i
				break
			}
		}
		if idx < 0 {
			kept = append(kept, c)
			continue
		}
		if prefer(c, kept[idx]) {
			kept[idx] = c
		}
	}
	return kept
}

// sameRestaurant applies the dedup key: a shared external place id, or a
// case-insensitive name match within close proximity.
func sameRestaurant(a, b *models.Restaurant) bool {
	if ea, eb := a.ExternalID(), b.ExternalID(); ea != "" && ea == eb {
		return true
	}
	if !strings.EqualFold(a.Name, b.Name) {
		return false
	}
	d, err := geo.DistanceMeters(a.Coordinates(), b.Coordinates())
	return err == nil && d <= dedupeProximityMeters
}

// prefer reports whether a should replace b among duplicates: local over
// external, then higher review count, then lexicographically smaller id.
func prefer(a, b *models.Restaurant) bool {
	if a.DataSource != b.DataSource {
		return a.DataSource == models.SourceLocal
	}
	if a.ReviewCount != b.ReviewCount {
		return a.ReviewCount > b.ReviewCount
	}
	return a.ID < b.ID
}

// sortRestaurants orders rs by the requested key, breaking every tie by id
// ascending so results are deterministic.
func sortRestaurants(rs []*models.Restaurant, order models.SortOrder) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		switch order {
		case models.SortRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case models.SortPriceLow:
			if done, less := priceLess(a, b, true); done {
				return less
			}
		case models.SortPriceHigh:
			if done, less := priceLess(a, b, false); done {
				return less
			}
		default: // distance
			if a.DistanceMeters != b.DistanceMeters {
				return a.DistanceMeters < b.DistanceMeters
			}
		}
		return a.ID < b.ID
	})
}

// priceLess compares price levels with nil ordered last for both directions.
// done is false when the records tie and the caller should fall back to id.
func priceLess(a, b *models.Restaurant, ascending bool) (done, less bool) {
	switch {
	case a.PriceLevel == nil && b.PriceLevel == nil:
		return false, false
	case a.PriceLevel == nil:
		return true, false
	case b.PriceLevel == nil:
		return true, true
	case *a.PriceLevel == *b.PriceLevel:
		return false, false
	case ascending:
		return true, *a.PriceLevel < *b.PriceLevel
	default:
		return true, *a.PriceLevel > *b.PriceLevel
	}
}
