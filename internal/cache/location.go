package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/parcelgrid/parcelgrid/internal/model"
)

// Cache key prefix and default TTL for location query results.
const (
	locationKeyPrefix = "locations:q:"

	// DefaultLocationTTL bounds how stale a cached result set can get.
	// Location data only changes when the seeder runs.
	DefaultLocationTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// locationQueryKey derives a stable Redis key from a normalized filter.
func locationQueryKey(filter model.LocationFilter) string {
	raw := filter.Type + "\x00" + filter.District + "\x00" + filter.Search
	sum := sha256.Sum256([]byte(raw))
	return locationKeyPrefix + hex.EncodeToString(sum[:16])
}

// GetLocations retrieves a cached result set for a filter.
// Returns ErrCacheMiss if not present.
func (c *Cache) GetLocations(ctx context.Context, filter model.LocationFilter) ([]*model.Location, error) {
	data, err := c.client.Get(ctx, locationQueryKey(filter)).Bytes()
	if err != nil {
		return nil, ErrCacheMiss
	}

	var locations []*model.Location
	if err := json.Unmarshal(data, &locations); err != nil {
		// Corrupted entry - treat as miss
		return nil, ErrCacheMiss
	}

	return locations, nil
}

// SetLocations caches a result set for a filter.
func (c *Cache) SetLocations(ctx context.Context, filter model.LocationFilter, locations []*model.Location, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}

	data, err := json.Marshal(locations)
	if err != nil {
		return fmt.Errorf("marshal locations: %w", err)
	}

	return c.client.Set(ctx, locationQueryKey(filter), data, ttl).Err()
}

// InvalidateLocations drops all cached location result sets. Called by
// the seeder after a reload.
func (c *Cache) InvalidateLocations(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, locationKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete cached query: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached queries: %w", err)
	}
	return nil
}
