package models

import (
	"strings"

	dbtypes "github.com/tastemap/restaurant-intel/internal/db"
	"github.com/tastemap/restaurant-intel/internal/geo"
)

// DataSource tags a record's provenance. It is set when the record is
// constructed and never mutated afterwards.
type DataSource string

const (
	SourceLocal    DataSource = "local"
	SourceExternal DataSource = "external"
)

// MetaExternalID is the metadata key carrying a provider-specific stable
// place identifier.
const MetaExternalID = "external_id"

// Restaurant is the canonical record produced by search, regardless of
// which source it came from.
type Restaurant struct {
	ID          string              `db:"id" json:"id"`
	Name        string              `db:"name" json:"name"`
	Latitude    float64             `db:"latitude" json:"latitude"`
	Longitude   float64             `db:"longitude" json:"longitude"`
	Rating      float64             `db:"rating" json:"rating"`
	PriceLevel  *int                `db:"price_level" json:"price_level"`
	Cuisine     dbtypes.StringSlice `db:"cuisine" json:"cuisine"`
	Address     string              `db:"address" json:"address"`
	ReviewCount int                 `db:"review_count" json:"review_count"`
	Metadata    dbtypes.JSONMap     `db:"metadata" json:"metadata,omitempty"`
	DataSource  DataSource          `db:"-" json:"data_source"`

	// DistanceMeters is computed per query relative to the search center
	// (not persisted).
	DistanceMeters float64 `db:"distance_meters" json:"distance_meters"`
}

// Coordinates returns the record's location as a geo pair.
func (r *Restaurant) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
}

// ExternalID returns the provider place id from metadata, or "" when absent.
func (r *Restaurant) ExternalID() string {
	if r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata[MetaExternalID].(string); ok {
		return v
	}
	return ""
}

// SortOrder selects the final ordering of a search result.
type SortOrder string

const (
	SortDistance  SortOrder = "distance"
	SortRating    SortOrder = "rating"
	SortPriceLow  SortOrder = "price_low"
	SortPriceHigh SortOrder = "price_high"
)

// Valid reports whether s is one of the supported orders.
func (s SortOrder) Valid() bool {
	switch s {
	case SortDistance, SortRating, SortPriceLow, SortPriceHigh:
		return true
	}
	return false
}

// SearchFilters are the predicates applied to candidates. They are pure and
// idempotent: applying the same filter twice yields the same set, so they can
// be pushed down to a store and safely re-applied to the merged set.
type SearchFilters struct {
	// Cuisines matches any-of against the record's cuisine tags,
	// case-insensitively. Empty means no cuisine filter.
	Cuisines []string `json:"cuisine,omitempty"`
	// MinRating of 0 means no rating filter.
	MinRating float64 `json:"min_rating,omitempty"`
	// PriceMin/PriceMax bound the record's price level inclusively. An
	// exact-match filter sets both to the same value. Nil means unbounded.
	PriceMin *int `json:"price_min,omitempty"`
	PriceMax *int `json:"price_max,omitempty"`
}

// Matches reports whether r passes every configured predicate.
func (f SearchFilters) Matches(r *Restaurant) bool {
	if len(f.Cuisines) > 0 {
		found := false
		for _, want := range f.Cuisines {
			for _, have := range r.Cuisine {
				if strings.EqualFold(want, have) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinRating > 0 && r.Rating < f.MinRating {
		return false
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		if r.PriceLevel == nil {
			return false
		}
		if f.PriceMin != nil && *r.PriceLevel < *f.PriceMin {
			return false
		}
		if f.PriceMax != nil && *r.PriceLevel > *f.PriceMax {
			return false
		}
	}
	return true
}

// SearchParams is the normalized input of a search. The same struct is echoed
// back in the result so callers can see the defaults that were applied.
type SearchParams struct {
	Center          geo.Coordinates `json:"center"`
	RadiusMeters    float64         `json:"radius_meters"`
	Filters         SearchFilters   `json:"filters"`
	Keyword         string          `json:"keyword,omitempty"`
	IncludeExternal bool            `json:"include_external"`
	SortBy          SortOrder       `json:"sort_by"`
	Limit           int             `json:"limit"`
	Offset          int             `json:"offset"`
}

// SourceCounts reports how many merged records came from each source.
type SourceCounts struct {
	Local    int `json:"local"`
	External int `json:"external"`
}

// SearchResult is one page of the merged, deduplicated, filtered, sorted set.
type SearchResult struct {
	Restaurants  []*Restaurant `json:"restaurants"`
	Total        int           `json:"total"`
	Sources      SourceCounts  `json:"sources"`
	SearchParams SearchParams  `json:"searchParams"`
}
