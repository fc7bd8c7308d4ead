package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	dbtypes "github.com/tastemap/restaurant-intel/internal/db"
	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

// ErrNotFound is returned by GetByID when no record has the given id.
var ErrNotFound = errors.New("restaurant not found")

type PgStore struct {
	db *sqlx.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: sqlx.NewDb(db, "postgres")}
}

func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS restaurants(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  rating DOUBLE PRECISION DEFAULT 0,
  price_level INTEGER,
  cuisine JSONB,
  address TEXT,
  review_count INTEGER DEFAULT 0,
  metadata JSONB,
  updated_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_restaurants_latitude ON restaurants(latitude);
CREATE INDEX IF NOT EXISTS idx_restaurants_longitude ON restaurants(longitude);
CREATE INDEX IF NOT EXISTS idx_restaurants_rating ON restaurants(rating);
-- GIN index for jsonb array search on cuisine tags
CREATE INDEX IF NOT EXISTS idx_restaurants_cuisine ON restaurants USING GIN (cuisine);
`
	_, err := db.Exec(initSQL)
	return err
}

// SaveMany upserts restaurants in one transaction. Cuisine and metadata are
// written as jsonb via their driver.Valuer implementations.
func (p *PgStore) SaveMany(ctx context.Context, restaurants []*models.Restaurant) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	stmt := `
INSERT INTO restaurants (id, name, latitude, longitude, rating, price_level, cuisine, address, review_count, metadata, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10::jsonb,$11)
ON CONFLICT (id) DO UPDATE SET
 name=EXCLUDED.name,
 latitude=EXCLUDED.latitude,
 longitude=EXCLUDED.longitude,
 rating=EXCLUDED.rating,
 price_level=EXCLUDED.price_level,
 cuisine=EXCLUDED.cuisine,
 address=EXCLUDED.address,
 review_count=EXCLUDED.review_count,
 metadata=EXCLUDED.metadata,
 updated_at=EXCLUDED.updated_at;
`

	for _, r := range restaurants {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Cuisine == nil {
			r.Cuisine = dbtypes.StringSlice{}
		}

		_, err := tx.ExecContext(ctx, stmt,
			r.ID,
			r.Name,
			r.Latitude,
			r.Longitude,
			r.Rating,
			r.PriceLevel,
			r.Cuisine,
			r.Address,
			r.ReviewCount,
			r.Metadata,
			time.Now().UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert restaurant id=%s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// FindNear returns local restaurants within radiusMeters of center, with the
// haversine distance computed in a subquery so the radius cut and the filter
// predicates run on the database side.
func (p *PgStore) FindNear(ctx context.Context, center geo.Coordinates, radiusMeters float64, filters models.SearchFilters) ([]*models.Restaurant, error) {
	query := `
SELECT id, name, latitude, longitude, rating, price_level, cuisine, address, review_count, metadata, distance_meters
FROM (
  SELECT
    id, name, latitude, longitude, rating, price_level, cuisine, address, review_count, metadata,
    (6371000 * acos(least(1.0,
        cos(radians($1)) * cos(radians(latitude)) * cos(radians(longitude) - radians($2)) +
        sin(radians($1)) * sin(radians(latitude))
    ))) AS distance_meters
  FROM restaurants
) AS t
WHERE distance_meters <= $3
`
	args := []interface{}{center.Latitude, center.Longitude, radiusMeters}

	if len(filters.Cuisines) > 0 {
		lowered := make([]string, len(filters.Cuisines))
		for i, c := range filters.Cuisines {
			lowered[i] = strings.ToLower(c)
		}
		args = append(args, pq.Array(lowered))
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(cuisine) AS c(tag) WHERE lower(c.tag) = ANY($%d))", len(args))
	}
	if filters.MinRating > 0 {
		args = append(args, filters.MinRating)
		query += fmt.Sprintf(" AND rating >= $%d", len(args))
	}
	if filters.PriceMin != nil {
		args = append(args, *filters.PriceMin)
		query += fmt.Sprintf(" AND price_level >= $%d", len(args))
	}
	if filters.PriceMax != nil {
		args = append(args, *filters.PriceMax)
		query += fmt.Sprintf(" AND price_level <= $%d", len(args))
	}
	query += " ORDER BY distance_meters ASC;"

	rows := []*models.Restaurant{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		r.DataSource = models.SourceLocal
	}
	return rows, nil
}

func (p *PgStore) GetByID(ctx context.Context, id string) (*models.Restaurant, error) {
	query := `
SELECT id, name, latitude, longitude, rating, price_level, cuisine, address, review_count, metadata
FROM restaurants
WHERE id = $1
LIMIT 1
`
	var r models.Restaurant
	if err := p.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.DataSource = models.SourceLocal
	return &r, nil
}
