package main

import (
	"context"
	"flag"
	"log"
	"time"

	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/config"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/logging"
	"city-planner/backend/internal/planner"
	"city-planner/backend/internal/providers"
)

// seedIdentity is the caller recorded for warm-up lookups.
const seedIdentity = "seed:local"

func main() {
	ctx := context.Background()

	envFile := flag.String("env", "", "Path to .env file")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	// 1. Connect to the shared cache; postgres creates its table on connect
	store := cache.OpenStore(ctx, cfg.Cache.Backend, cfg.CacheDSN(), cfg.Cache.KeyPrefix, logger)
	defer store.Close()
	if store.Name() == "memory" {
		log.Fatalf("Seeding needs a redis or postgres cache, got backend %q", cfg.Cache.Backend)
	}
	c := cache.New(store, cache.WithLogger(logger))

	// 2. Drop entries that expired while nothing was sweeping
	removed, err := c.Sweep(ctx)
	if err != nil {
		log.Fatalf("Failed to sweep cache: %v", err)
	}
	logger.Info("Swept expired entries", "count", removed)

	catalog, err := providers.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load reference data: %v", err)
	}

	adapter := fetch.NewAdapter(c, nil, fetch.WithTimeout(cfg.Providers.Timeout), fetch.WithLogger(logger))
	svc, err := planner.New(adapter, catalog, planner.Providers{
		Facts: providers.NewWikipediaClient(cfg.Providers.Wikipedia.BaseURL, cfg.Providers.Timeout),
	}, planner.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to build planner: %v", err)
	}

	// 3. Warm city facts for every reference city
	start := time.Now()
	for _, city := range catalog.Cities() {
		r, err := svc.CityFacts(ctx, seedIdentity, city)
		switch {
		case err != nil:
			log.Printf("Failed to warm %s: %v", city, err)
		case r.Cached:
			logger.Info("Skipping cached city", "city", city)
		default:
			logger.Info("Seeded city facts", "city", city, "source", r.Source)
		}
	}
	logger.Info("Seeding complete!", "cities", len(catalog.Cities()), "elapsed", time.Since(start))
}
