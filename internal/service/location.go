package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parcelgrid/parcelgrid/internal/cache"
	"github.com/parcelgrid/parcelgrid/internal/metrics"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// LocationRepository defines the persistence needed by LocationService.
type LocationRepository interface {
	SearchLocations(ctx context.Context, filter model.LocationFilter) ([]*model.Location, error)
}

// LocationCache defines the query cache needed by LocationService.
type LocationCache interface {
	GetLocations(ctx context.Context, filter model.LocationFilter) ([]*model.Location, error)
	SetLocations(ctx context.Context, filter model.LocationFilter, locations []*model.Location, ttl time.Duration) error
}

// LocationQueryResult is the outcome of a successful metered query.
type LocationQueryResult struct {
	Locations        []*model.Location
	Count            int
	CreditsUsed      int64
	CreditsRemaining int64
}

// LocationService runs metered location queries: each successful query
// debits a fixed credit cost from the caller's balance.
type LocationService struct {
	repo     LocationRepository
	ledger   LedgerRepository
	cache    LocationCache
	cost     int64
	cacheTTL time.Duration
	metrics  metrics.Recorder
}

// NewLocationService creates a new LocationService. cache may be nil
// to disable query caching.
func NewLocationService(repo LocationRepository, ledger LedgerRepository, locCache LocationCache, cost int64, cacheTTL time.Duration, recorder metrics.Recorder) *LocationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultLocationTTL
	}
	return &LocationService{
		repo:     repo,
		ledger:   ledger,
		cache:    locCache,
		cost:     cost,
		cacheTTL: cacheTTL,
		metrics:  recorder,
	}
}

// QueryCost returns the per-query credit cost.
func (s *LocationService) QueryCost() int64 {
	return s.cost
}

// Query executes a metered location search for the user. The balance
// is checked up front so a broke caller never triggers the search, but
// the debit itself happens after the search so the ledger description
// can carry the result count. A shortfall reported by the debit is
// authoritative: results are discarded and the caller gets
// *repository.InsufficientCreditsError.
func (s *LocationService) Query(ctx context.Context, userID string, filter model.LocationFilter) (*LocationQueryResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLocationQueryDuration(time.Since(start))
	}()

	filter = filter.Normalize()

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		s.metrics.IncLocationQuery(metrics.QueryError)
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if balance.Credits < s.cost {
		s.metrics.IncLocationQuery(metrics.QueryInsufficient)
		return nil, &repository.InsufficientCreditsError{
			Required:  s.cost,
			Available: balance.Credits,
		}
	}

	locations, err := s.searchCached(ctx, filter)
	if err != nil {
		s.metrics.IncLocationQuery(metrics.QueryError)
		return nil, fmt.Errorf("search locations: %w", err)
	}

	updated, err := s.ledger.Debit(ctx, repository.LedgerEntry{
		UserID:      userID,
		Type:        model.TxAPICall,
		Amount:      s.cost,
		Description: fmt.Sprintf("Location query: %d results", len(locations)),
	})
	if err != nil {
		var insufficient *repository.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			// Balance dropped between the check and the debit. The
			// ledger's answer wins; the computed results are discarded.
			s.metrics.IncLocationQuery(metrics.QueryInsufficient)
			return nil, insufficient
		}
		s.metrics.IncLocationQuery(metrics.QueryError)
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("debit: %w", err)
	}

	s.metrics.IncLocationQuery(metrics.QueryOK)
	s.metrics.AddCreditsSpent(s.cost)

	return &LocationQueryResult{
		Locations:        locations,
		Count:            len(locations),
		CreditsUsed:      s.cost,
		CreditsRemaining: updated.Credits,
	}, nil
}

// searchCached consults the query cache before hitting the database.
// Cache failures degrade to a DB search.
func (s *LocationService) searchCached(ctx context.Context, filter model.LocationFilter) ([]*model.Location, error) {
	if s.cache != nil {
		cached, err := s.cache.GetLocations(ctx, filter)
		if err == nil {
			s.metrics.IncLocationCacheHit()
			return cached, nil
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.IncLocationCacheMiss()
		}
	}

	locations, err := s.repo.SearchLocations(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetLocations(ctx, filter, locations, s.cacheTTL); err != nil {
			_ = err // eventual consistency is acceptable
		}
	}

	return locations, nil
}
