package service

import (
	"context"
	"time"

	"github.com/parcelgrid/parcelgrid/internal/cache"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// fakeLedger is an in-memory LedgerRepository for unit tests.
type fakeLedger struct {
	balances     map[string]*model.CreditBalance
	transactions []*model.CreditTransaction
	debitErr     error
	creditErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]*model.CreditBalance)}
}

func (f *fakeLedger) seed(userID string, credits int64) {
	f.balances[userID] = &model.CreditBalance{
		UserID:      userID,
		Credits:     credits,
		TotalEarned: credits,
	}
}

func (f *fakeLedger) GetBalance(_ context.Context, userID string) (*model.CreditBalance, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	copied := *balance
	return &copied, nil
}

func (f *fakeLedger) Credit(_ context.Context, entry repository.LedgerEntry) (*model.CreditBalance, error) {
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	balance, ok := f.balances[entry.UserID]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	balance.Credits += entry.Amount
	balance.TotalEarned += entry.Amount
	f.record(entry, entry.Amount, balance.Credits)
	copied := *balance
	return &copied, nil
}

func (f *fakeLedger) Debit(_ context.Context, entry repository.LedgerEntry) (*model.CreditBalance, error) {
	if f.debitErr != nil {
		return nil, f.debitErr
	}
	balance, ok := f.balances[entry.UserID]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	if balance.Credits < entry.Amount {
		return nil, &repository.InsufficientCreditsError{
			Required:  entry.Amount,
			Available: balance.Credits,
		}
	}
	balance.Credits -= entry.Amount
	balance.TotalSpent += entry.Amount
	f.record(entry, -entry.Amount, balance.Credits)
	copied := *balance
	return &copied, nil
}

func (f *fakeLedger) ListTransactions(_ context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	var out []*model.CreditTransaction
	for i := len(f.transactions) - 1; i >= 0; i-- {
		if f.transactions[i].UserID == userID {
			out = append(out, f.transactions[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLedger) record(entry repository.LedgerEntry, signed, after int64) {
	f.transactions = append(f.transactions, &model.CreditTransaction{
		ID:           generateID(),
		UserID:       entry.UserID,
		Type:         entry.Type,
		Amount:       signed,
		BalanceAfter: after,
		Description:  entry.Description,
		CreatedAt:    time.Now().UTC(),
	})
}

// fakeAccounts is an in-memory AccountRepository.
type fakeAccounts struct {
	users  map[string]*model.User // by username
	grants map[string]repository.LedgerEntry
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		users:  make(map[string]*model.User),
		grants: make(map[string]repository.LedgerEntry),
	}
}

func (f *fakeAccounts) RegisterUser(_ context.Context, user *model.User, grant repository.LedgerEntry) error {
	if _, exists := f.users[user.Username]; exists {
		return repository.ErrUsernameExists
	}
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	f.users[user.Username] = user
	f.grants[user.ID] = grant
	return nil
}

func (f *fakeAccounts) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

// fakeKeys is an in-memory APIKeyRepository.
type fakeKeys struct {
	keys         map[string]*model.APIKey // by ID
	users        map[string]*model.User   // by user ID
	collideTimes int
	createCalls  int
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{
		keys:  make(map[string]*model.APIKey),
		users: make(map[string]*model.User),
	}
}

func (f *fakeKeys) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	f.createCalls++
	if f.collideTimes > 0 {
		f.collideTimes--
		return repository.ErrKeyCollision
	}
	f.keys[key.ID] = key
	return nil
}

func (f *fakeKeys) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	var out []*model.APIKey
	for _, key := range f.keys {
		if key.UserID == userID && key.IsActive {
			out = append(out, key)
		}
	}
	return out, nil
}

func (f *fakeKeys) DeleteAPIKey(_ context.Context, userID, keyID string) error {
	key, ok := f.keys[keyID]
	if !ok || key.UserID != userID {
		return repository.ErrAPIKeyNotFound
	}
	delete(f.keys, keyID)
	return nil
}

func (f *fakeKeys) ResolveAPIKey(_ context.Context, secret string) (*model.User, *model.APIKey, error) {
	for _, key := range f.keys {
		if key.Key == secret && key.IsActive {
			user, ok := f.users[key.UserID]
			if !ok || !user.IsActive {
				return nil, nil, repository.ErrAPIKeyNotFound
			}
			return user, key, nil
		}
	}
	return nil, nil, repository.ErrAPIKeyNotFound
}

// fakeLocations is an in-memory LocationRepository.
type fakeLocations struct {
	results     []*model.Location
	searchCalls int
	lastFilter  model.LocationFilter
	err         error
}

func (f *fakeLocations) SearchLocations(_ context.Context, filter model.LocationFilter) ([]*model.Location, error) {
	f.searchCalls++
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeLocationCache is an in-memory LocationCache keyed per filter.
type fakeLocationCache struct {
	entries map[model.LocationFilter][]*model.Location
	gets    int
	sets    int
}

func newFakeLocationCache() *fakeLocationCache {
	return &fakeLocationCache{entries: make(map[model.LocationFilter][]*model.Location)}
}

func (f *fakeLocationCache) GetLocations(_ context.Context, filter model.LocationFilter) ([]*model.Location, error) {
	f.gets++
	if cached, ok := f.entries[filter]; ok {
		return cached, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeLocationCache) SetLocations(_ context.Context, filter model.LocationFilter, locations []*model.Location, _ time.Duration) error {
	f.sets++
	f.entries[filter] = locations
	return nil
}
