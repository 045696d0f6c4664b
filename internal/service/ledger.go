package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// Ledger errors.
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("unknown transaction type")
	ErrBalanceNotFound        = errors.New("credit balance not found")
)

var validTxTypes = map[string]bool{
	model.TxPurchase:        true,
	model.TxAPICall:         true,
	model.TxRefund:          true,
	model.TxAdminAdjustment: true,
}

// LedgerRepository defines the persistence needed by CreditService.
type LedgerRepository interface {
	GetBalance(ctx context.Context, userID string) (*model.CreditBalance, error)
	Credit(ctx context.Context, entry repository.LedgerEntry) (*model.CreditBalance, error)
	Debit(ctx context.Context, entry repository.LedgerEntry) (*model.CreditBalance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error)
}

// CreditService handles credit balance operations.
type CreditService struct {
	repo LedgerRepository
}

// NewCreditService creates a new CreditService.
func NewCreditService(repo LedgerRepository) *CreditService {
	return &CreditService{repo: repo}
}

// Balance returns the user's current balance.
func (s *CreditService) Balance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Transactions returns the user's recent ledger entries, newest first.
func (s *CreditService) Transactions(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	txs, err := s.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// AddCredits credits the user's balance atomically.
func (s *CreditService) AddCredits(ctx context.Context, userID string, amount int64, txType, description string) (*model.CreditBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validTxTypes[txType] {
		return nil, ErrInvalidTransactionType
	}

	balance, err := s.repo.Credit(ctx, repository.LedgerEntry{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("credit: %w", err)
	}
	return balance, nil
}

// SpendCredits debits the user's balance atomically. A shortfall
// returns *repository.InsufficientCreditsError and leaves the ledger
// untouched.
func (s *CreditService) SpendCredits(ctx context.Context, userID string, amount int64, txType, description string) (*model.CreditBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validTxTypes[txType] {
		return nil, ErrInvalidTransactionType
	}

	balance, err := s.repo.Debit(ctx, repository.LedgerEntry{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		var insufficient *repository.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			return nil, insufficient
		case errors.Is(err, repository.ErrBalanceNotFound):
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("debit: %w", err)
	}
	return balance, nil
}
