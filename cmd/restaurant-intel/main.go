package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/tastemap/restaurant-intel/internal/api"
	"github.com/tastemap/restaurant-intel/internal/cache"
	"github.com/tastemap/restaurant-intel/internal/places"
	"github.com/tastemap/restaurant-intel/internal/service"
	"github.com/tastemap/restaurant-intel/internal/store"
)

func envOrDefault(key, d string) string {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	return v
}

func main() {
	backend := envOrDefault("STORE_BACKEND", "memory")
	redisAddr := os.Getenv("REDIS_ADDR")
	port := envOrDefault("PORT", "8080")

	repo, err := buildStore(backend)
	if err != nil {
		log.Fatalf("store init: %v", err)
	}

	var provider service.NearbySearcher = places.NewClientFromEnv()
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warning: redis ping failed: %v", err)
		}
		cancel()
		provider = cache.New(rdb, provider, cache.DefaultTTL)
	}

	svc := service.New(repo, provider)
	handler := api.NewHandler(svc)

	router := gin.Default()
	api.RegisterRoutes(router, handler)

	log.Printf("listening on :%s (store backend: %s)", port, backend)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func buildStore(backend string) (service.RestaurantStore, error) {
	switch backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		return buildPgStore()
	case "elastic":
		es, err := store.NewElasticStore(envOrDefault("ELASTIC_URL", "http://localhost:9200"), envOrDefault("ELASTIC_INDEX", "restaurants"))
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := es.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		return es, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func buildPgStore() (service.RestaurantStore, error) {
	dbHost := envOrDefault("DB_HOST", "localhost")
	dbPort := envOrDefault("DB_PORT", "5432")
	dbName := envOrDefault("DB_NAME", "restaurant_db")
	dbUser := envOrDefault("DB_USER", "restaurant_user")
	dbPass := envOrDefault("DB_PASS", "restaurant")

	pgURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPass, dbHost, dbPort, dbName)
	db, err := sql.Open("postgres", pgURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// simple ping + wait (db might be starting in docker)
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		log.Printf("waiting for db: attempt %d, err: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to db: %w", err)
	}

	if err := store.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return store.NewPgStore(db), nil
}
