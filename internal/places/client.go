package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

// ErrProviderUnavailable covers every transport, auth and quota failure of
// the nearby-search API. Callers treat it as "zero external results" rather
// than failing the whole search.
var ErrProviderUnavailable = errors.New("places provider unavailable")

// Client is a minimal nearby-search client for a Places-style API.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewClient creates a new client. If httpClient is nil, a default with a
// bounded timeout is used so a slow provider cannot stall a search.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, hc: httpClient}
}

// NewClientFromEnv convenience to create a client based on env vars.
func NewClientFromEnv() *Client {
	u := os.Getenv("PLACES_URL")
	if u == "" {
		u = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	}
	return NewClient(u, os.Getenv("PLACES_API_KEY"), nil)
}

// NearbySearch queries the provider for restaurants around center. Every
// returned record is tagged external and carries the provider's stable place
// id in metadata.
func (c *Client) NearbySearch(ctx context.Context, center geo.Coordinates, radiusMeters float64, keyword string) ([]*models.Restaurant, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", center.Latitude, center.Longitude))
	q.Set("radius", fmt.Sprintf("%.0f", radiusMeters))
	q.Set("type", "restaurant")
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProviderUnavailable, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d", ErrProviderUnavailable, resp.StatusCode)
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	switch body.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, fmt.Errorf("%w: status=%s %s", ErrProviderUnavailable, body.Status, body.ErrorMessage)
	}

	out := make([]*models.Restaurant, 0, len(body.Results))
	for _, p := range body.Results {
		r := p.toModel()
		if r == nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// generic place tags that say nothing about cuisine
var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"food":              true,
}

func (p *placeResult) toModel() *models.Restaurant {
	loc := geo.Coordinates{Latitude: p.Geometry.Location.Lat, Longitude: p.Geometry.Location.Lng}
	if loc.Validate() != nil || p.PlaceID == "" {
		return nil
	}

	cuisine := []string{}
	for _, t := range p.Types {
		if !genericTypes[t] {
			cuisine = append(cuisine, t)
		}
	}
	if len(cuisine) == 0 {
		cuisine = []string{"restaurant"}
	}

	r := &models.Restaurant{
		ID:         externalRecordID(p.PlaceID),
		Name:       p.Name,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Cuisine:    cuisine,
		DataSource: models.SourceExternal,
		Metadata:   map[string]any{models.MetaExternalID: p.PlaceID},
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
	if p.PriceLevel != nil {
		lvl := *p.PriceLevel
		r.PriceLevel = &lvl
	}
	if p.UserRatingsTotal != nil {
		r.ReviewCount = *p.UserRatingsTotal
	}
	if p.Vicinity != nil {
		r.Address = *p.Vicinity
	}
	if p.OpeningHours != nil {
		r.Metadata["open_now"] = p.OpeningHours.OpenNow
	}
	if len(p.Photos) > 0 {
		r.Metadata["photo_reference"] = p.Photos[0].PhotoReference
	}
	return r
}

// externalRecordID derives a stable local identifier from a provider place id.
func externalRecordID(placeID string) string {
	h := fnv.New64a()
	h.Write([]byte(placeID))
	return fmt.Sprintf("ext-%016x", h.Sum64())
}
