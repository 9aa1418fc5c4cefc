package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/lineops/boteo/internal/alerts"
	"github.com/lineops/boteo/internal/api"
	"github.com/lineops/boteo/internal/cache"
	"github.com/lineops/boteo/internal/middleware"
	"github.com/lineops/boteo/internal/repository"
)

func main() {
	postgresDSN := os.Getenv("POSTGRES_DSN")
	if postgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	store, err := repository.NewPostgresStore(postgresDSN)
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close Postgres store: %v", err)
		}
	}()

	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatal(err)
	}

	var snapshots *cache.Cache
	var alertQueue *alerts.Queue

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		log.Println("REDIS_ADDR not set, running without cache and alerts")
	} else {
		snapshots, err = cache.New(redisAddr, cacheTTL())
		if err != nil {
			log.Fatal(err)
		}

		defer func() {
			if err := snapshots.Close(); err != nil {
				log.Printf("failed to close cache: %v", err)
			}
		}()

		alertQueue, err = alerts.NewQueue(redisAddr)
		if err != nil {
			log.Fatal(err)
		}

		defer func() {
			if err := alertQueue.Close(); err != nil {
				log.Printf("failed to close alert queue: %v", err)
			}
		}()

		log.Printf("Connected to Redis at %s", redisAddr)
	}

	apiHandler := api.NewAPI(store, snapshots, alertQueue)
	handler := middleware.CORS(middleware.Metrics(apiHandler))

	go startMetricsCollector(store)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s", port)

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal(err)
	}
}

func cacheTTL() time.Duration {
	raw := os.Getenv("CACHE_TTL")
	if raw == "" {
		return 5 * time.Second
	}

	ttl, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("invalid CACHE_TTL %q: %v", raw, err)
	}

	return ttl
}
