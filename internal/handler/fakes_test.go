package handler

import (
	"context"

	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// fakeLedger backs service.LedgerRepository for handler tests.
type fakeLedger struct {
	balances map[string]*model.CreditBalance
	txs      []*model.CreditTransaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]*model.CreditBalance)}
}

func (f *fakeLedger) seed(userID string, credits int64) {
	f.balances[userID] = &model.CreditBalance{UserID: userID, Credits: credits, TotalEarned: credits}
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
	balance, ok := f.balances[entry.UserID]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	balance.Credits += entry.Amount
	balance.TotalEarned += entry.Amount
	copied := *balance
	return &copied, nil
}

func (f *fakeLedger) Debit(_ context.Context, entry repository.LedgerEntry) (*model.CreditBalance, error) {
	balance, ok := f.balances[entry.UserID]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	if balance.Credits < entry.Amount {
		return nil, &repository.InsufficientCreditsError{Required: entry.Amount, Available: balance.Credits}
	}
	balance.Credits -= entry.Amount
	balance.TotalSpent += entry.Amount
	copied := *balance
	return &copied, nil
}

func (f *fakeLedger) ListTransactions(_ context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	var out []*model.CreditTransaction
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeLocations backs service.LocationRepository for handler tests.
type fakeLocations struct {
	results []*model.Location
}

func (f *fakeLocations) SearchLocations(_ context.Context, _ model.LocationFilter) ([]*model.Location, error) {
	return f.results, nil
}

// fakeAccounts backs service.AccountRepository for handler tests.
type fakeAccounts struct {
	users map[string]*model.User
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: make(map[string]*model.User)}
}

func (f *fakeAccounts) RegisterUser(_ context.Context, user *model.User, _ repository.LedgerEntry) error {
	if _, exists := f.users[user.Username]; exists {
		return repository.ErrUsernameExists
	}
	f.users[user.Username] = user
	return nil
}

func (f *fakeAccounts) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

// fakeKeys backs service.APIKeyRepository for handler tests.
type fakeKeys struct {
	keys map[string]*model.APIKey
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{keys: make(map[string]*model.APIKey)}
}

func (f *fakeKeys) CreateAPIKey(_ context.Context, key *model.APIKey) error {
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
			return &model.User{ID: key.UserID, IsActive: true}, key, nil
		}
	}
	return nil, nil, repository.ErrAPIKeyNotFound
}
