package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/olivere/elastic/v7"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

const restaurantMapping = `
{
  "settings": {
    "analysis": {
      "normalizer": {
        "folded": { "type": "custom", "filter": ["lowercase"] }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":           { "type": "keyword" },
      "name":         { "type": "text" },
      "location":     { "type": "geo_point" },
      "rating":       { "type": "float" },
      "price_level":  { "type": "integer" },
      "cuisine":      { "type": "keyword", "normalizer": "folded" },
      "address":      { "type": "text" },
      "review_count": { "type": "integer" },
      "metadata":     { "type": "object", "enabled": false }
    }
  }
}`

// restaurantDoc is the document shape stored in the index. Coordinates are a
// geo_point so the radius cut runs inside Elasticsearch.
type restaurantDoc struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Location    elastic.GeoPoint `json:"location"`
	Rating      float64          `json:"rating"`
	PriceLevel  *int             `json:"price_level"`
	Cuisine     []string         `json:"cuisine"`
	Address     string           `json:"address"`
	ReviewCount int              `json:"review_count"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// maxNearbyHits caps a single nearby query; denser areas than this are
// truncated (nearest-first, so the cut only drops the farthest records).
const maxNearbyHits = 1000

type ElasticStore struct {
	client *elastic.Client
	index  string
}

func NewElasticStore(url, index string) (*ElasticStore, error) {
	client, err := elastic.NewClient(elastic.SetURL(url), elastic.SetSniff(false))
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return &ElasticStore{client: client, index: index}, nil
}

// EnsureIndex creates the restaurant index with its mapping when missing.
func (es *ElasticStore) EnsureIndex(ctx context.Context) error {
	exists, err := es.client.IndexExists(es.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}
	created, err := es.client.CreateIndex(es.index).BodyString(restaurantMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if !created.Acknowledged {
		log.Println("CreateIndex was not acknowledged. Check that timeout value is correct.")
	}
	return nil
}

func (es *ElasticStore) SaveMany(ctx context.Context, restaurants []*models.Restaurant) error {
	bulk := es.client.Bulk()
	for _, r := range restaurants {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		doc := restaurantDoc{
			ID:          r.ID,
			Name:        r.Name,
			Location:    elastic.GeoPoint{Lat: r.Latitude, Lon: r.Longitude},
			Rating:      r.Rating,
			PriceLevel:  r.PriceLevel,
			Cuisine:     r.Cuisine,
			Address:     r.Address,
			ReviewCount: r.ReviewCount,
			Metadata:    r.Metadata,
		}
		bulk = bulk.Add(elastic.NewBulkIndexRequest().Index(es.index).Id(r.ID).Doc(doc))
	}

	resp, err := bulk.Refresh("wait_for").Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	if resp != nil {
		for _, item := range resp.Items {
			for _, op := range item {
				if op.Error != nil {
					log.Printf("bulk operation failed: %s", op.Error.Reason)
				}
			}
		}
	}
	return nil
}

func (es *ElasticStore) FindNear(ctx context.Context, center geo.Coordinates, radiusMeters float64, filters models.SearchFilters) ([]*models.Restaurant, error) {
	q := elastic.NewBoolQuery().Filter(
		elastic.NewGeoDistanceQuery("location").
			Point(center.Latitude, center.Longitude).
			Distance(fmt.Sprintf("%.0fm", radiusMeters)),
	)
	if len(filters.Cuisines) > 0 {
		lowered := make([]string, len(filters.Cuisines))
		for i, c := range filters.Cuisines {
			lowered[i] = strings.ToLower(c)
		}
		q = q.Filter(elastic.NewTermsQueryFromStrings("cuisine", lowered...))
	}
	if filters.MinRating > 0 {
		q = q.Filter(elastic.NewRangeQuery("rating").Gte(filters.MinRating))
	}
	if filters.PriceMin != nil {
		q = q.Filter(elastic.NewRangeQuery("price_level").Gte(*filters.PriceMin))
	}
	if filters.PriceMax != nil {
		q = q.Filter(elastic.NewRangeQuery("price_level").Lte(*filters.PriceMax))
	}

	result, err := es.client.Search().
		Index(es.index).
		Query(q).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(center.Latitude, center.Longitude).
			Asc().
			Unit("m").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		Size(maxNearbyHits).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	if result.Hits != nil && result.Hits.TotalHits != nil && result.Hits.TotalHits.Value > maxNearbyHits {
		log.Printf("nearby query matched %d restaurants, returning nearest %d", result.Hits.TotalHits.Value, maxNearbyHits)
	}

	var out []*models.Restaurant
	for _, hit := range result.Hits.Hits {
		var doc restaurantDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			log.Printf("unmarshal hit %s: %v", hit.Id, err)
			continue
		}
		out = append(out, doc.toModel())
	}
	return out, nil
}

func (es *ElasticStore) GetByID(ctx context.Context, id string) (*models.Restaurant, error) {
	result, err := es.client.Get().Index(es.index).Id(id).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var doc restaurantDoc
	if err := json.Unmarshal(result.Source, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal restaurant %s: %w", id, err)
	}
	return doc.toModel(), nil
}

func (d *restaurantDoc) toModel() *models.Restaurant {
	return &models.Restaurant{
		ID:          d.ID,
		Name:        d.Name,
		Latitude:    d.Location.Lat,
		Longitude:   d.Location.Lon,
		Rating:      d.Rating,
		PriceLevel:  d.PriceLevel,
		Cuisine:     d.Cuisine,
		Address:     d.Address,
		ReviewCount: d.ReviewCount,
		Metadata:    d.Metadata,
		DataSource:  models.SourceLocal,
	}
}
