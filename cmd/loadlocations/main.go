// Package main seeds the locations table, either from a JSON file or
// from a built-in Hong Kong sample set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parcelgrid/parcelgrid/internal/cache"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// seedLocation is the JSON input format for a location row.
type seedLocation struct {
	LocationType string   `json:"location_type"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	District     string   `json:"district"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Phone        string   `json:"phone"`
	OpeningHours string   `json:"opening_hours"`
}

func main() {
	file := flag.String("file", "", "JSON file with an array of locations; omit to load the built-in sample set")
	truncate := flag.Bool("truncate", false, "clear existing locations first")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	seeds := sampleLocations()
	if *file != "" {
		seeds, err = loadSeedFile(*file)
		if err != nil {
			logger.Error("failed to load seed file", "file", *file, "error", err)
			os.Exit(1)
		}
	}

	if *truncate {
		if err := repo.TruncateLocations(ctx); err != nil {
			logger.Error("failed to clear locations", "error", err)
			os.Exit(1)
		}
		logger.Info("cleared existing location data")
	}

	created := 0
	for _, seed := range seeds {
		location := &model.Location{
			ID:           ulid.Make().String(),
			LocationType: seed.LocationType,
			Name:         seed.Name,
			Address:      seed.Address,
			District:     seed.District,
			Latitude:     seed.Latitude,
			Longitude:    seed.Longitude,
			Phone:        seed.Phone,
			OpeningHours: seed.OpeningHours,
			IsActive:     true,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := repo.InsertLocation(ctx, location); err != nil {
			logger.Error("failed to insert location", "name", seed.Name, "error", err)
			os.Exit(1)
		}
		created++
		logger.Info("created location", "name", seed.Name, "type", seed.LocationType)
	}

	// Drop stale cached query results so the new rows are visible.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cacheClient, err := cache.New(ctx, redisURL)
		if err != nil {
			logger.Warn("failed to connect to Redis, skipping cache invalidation", "error", err)
		} else {
			defer cacheClient.Close()
			if err := cacheClient.InvalidateLocations(ctx); err != nil {
				logger.Warn("failed to invalidate location cache", "error", err)
			}
		}
	}

	logger.Info("done", "created", created)
}

func loadSeedFile(path string) ([]seedLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seeds []seedLocation
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, err
	}
	return seeds, nil
}

func ptr(v float64) *float64 { return &v }

// sampleLocations returns a small built-in Hong Kong data set.
func sampleLocations() []seedLocation {
	return []seedLocation{
		{
			LocationType: model.LocationLocker,
			Name:         "Central Station Smart Locker",
			Address:      "MTR Central Station, Exit A",
			District:     "Central and Western",
			Latitude:     ptr(22.281610),
			Longitude:    ptr(114.158220),
			Phone:        "+852-2730-0273",
			OpeningHours: "24/7",
		},
		{
			LocationType: model.LocationLocker,
			Name:         "Causeway Bay Smart Locker",
			Address:      "Times Square, Ground Floor",
			District:     "Wan Chai",
			Latitude:     ptr(22.278010),
			Longitude:    ptr(114.182710),
			Phone:        "+852-2730-0273",
			OpeningHours: "24/7",
		},
		{
			LocationType: model.LocationLocker,
			Name:         "Tsim Sha Tsui Smart Locker",
			Address:      "Harbour City, Ocean Terminal",
			District:     "Yau Tsim Mong",
			Latitude:     ptr(22.294610),
			Longitude:    ptr(114.168810),
			Phone:        "+852-2730-0273",
			OpeningHours: "24/7",
		},
		{
			LocationType: model.LocationLocker,
			Name:         "Mong Kok Smart Locker",
			Address:      "Langham Place, Ground Floor",
			District:     "Yau Tsim Mong",
			Latitude:     ptr(22.318610),
			Longitude:    ptr(114.169110),
			Phone:        "+852-2730-0273",
			OpeningHours: "24/7",
		},
		{
			LocationType: model.LocationLocker,
			Name:         "Admiralty Smart Locker",
			Address:      "Pacific Place, Ground Floor",
			District:     "Central and Western",
			Latitude:     ptr(22.277910),
			Longitude:    ptr(114.165210),
			Phone:        "+852-2730-0273",
			OpeningHours: "24/7",
		},
		{
			LocationType: model.LocationShop,
			Name:         "ParcelGrid Central Shop",
			Address:      "123 Queen's Road Central",
			District:     "Central and Western",
			Latitude:     ptr(22.282410),
			Longitude:    ptr(114.155310),
			Phone:        "+852-2730-1234",
			OpeningHours: "Mon-Fri: 9:00-19:00, Sat: 9:00-17:00",
		},
		{
			LocationType: model.LocationShop,
			Name:         "ParcelGrid Causeway Bay Shop",
			Address:      "456 Hennessy Road",
			District:     "Wan Chai",
			Latitude:     ptr(22.280110),
			Longitude:    ptr(114.183310),
			Phone:        "+852-2730-2345",
			OpeningHours: "Mon-Fri: 9:00-19:00, Sat: 9:00-17:00",
		},
		{
			LocationType: model.LocationShop,
			Name:         "ParcelGrid Tsim Sha Tsui Shop",
			Address:      "789 Nathan Road",
			District:     "Yau Tsim Mong",
			Latitude:     ptr(22.297810),
			Longitude:    ptr(114.172110),
			Phone:        "+852-2730-3456",
			OpeningHours: "Mon-Fri: 9:00-19:00, Sat: 9:00-17:00",
		},
		{
			LocationType: model.LocationShop,
			Name:         "ParcelGrid Mong Kok Shop",
			Address:      "321 Argyle Street",
			District:     "Yau Tsim Mong",
			Latitude:     ptr(22.322010),
			Longitude:    ptr(114.170510),
			Phone:        "+852-2730-4567",
			OpeningHours: "Mon-Fri: 9:00-19:00, Sat: 9:00-17:00",
		},
		{
			LocationType: model.LocationShop,
			Name:         "ParcelGrid Wan Chai Shop",
			Address:      "654 Lockhart Road",
			District:     "Wan Chai",
			Latitude:     ptr(22.276910),
			Longitude:    ptr(114.172410),
			Phone:        "+852-2730-5678",
			OpeningHours: "Mon-Fri: 9:00-19:00, Sat: 9:00-17:00",
		},
	}
}
