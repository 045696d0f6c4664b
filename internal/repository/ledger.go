package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/parcelgrid/parcelgrid/internal/model"
)

// Common errors for ledger operations.
var (
	// ErrBalanceNotFound indicates the user has no balance row. Balances
	// are created at registration, so this is store corruption, not a
	// normal lazy-init path.
	ErrBalanceNotFound = errors.New("credit balance not found")

	// ErrNonPositiveAmount rejects ledger entries whose amount is zero or
	// negative. A negative debit would mint credits.
	ErrNonPositiveAmount = errors.New("ledger amount must be positive")
)

// InsufficientCreditsError is returned when a debit would drive the
// balance below zero. It carries the numbers the 402 response needs.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// LedgerEntry describes one credit or debit to apply. Amount is always
// positive; Debit negates it in the audit row.
type LedgerEntry struct {
	ID          string
	UserID      string
	Type        string
	Amount      int64
	Description string
}

const balanceColumns = `user_id, credits, total_earned, total_spent, created_at, updated_at`

// GetBalance retrieves a user's credit balance.
func (r *Repository) GetBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM credit_balances WHERE user_id = $1`

	balance, err := scanBalance(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// Credit atomically adds entry.Amount to the user's balance and appends
// the audit row. Both writes happen in one transaction: either both are
// visible afterwards or neither is.
func (r *Repository) Credit(ctx context.Context, entry LedgerEntry) (*model.CreditBalance, error) {
	if entry.Amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, entry.UserID)
	if err != nil {
		return nil, err
	}

	balance.Credits += entry.Amount
	balance.TotalEarned += entry.Amount

	if err := writeBalanceAndAudit(ctx, tx, balance, entry, entry.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit: %w", err)
	}

	return balance, nil
}

// Debit atomically checks and subtracts entry.Amount. The row lock taken
// by lockBalance serializes concurrent debits per user, so two debits
// racing for the last credits cannot both pass the check. A failed debit
// is a complete no-op: the transaction rolls back before any write.
func (r *Repository) Debit(ctx context.Context, entry LedgerEntry) (*model.CreditBalance, error) {
	if entry.Amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin debit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, entry.UserID)
	if err != nil {
		return nil, err
	}

	if balance.Credits < entry.Amount {
		return nil, &InsufficientCreditsError{
			Required:  entry.Amount,
			Available: balance.Credits,
		}
	}

	balance.Credits -= entry.Amount
	balance.TotalSpent += entry.Amount

	if err := writeBalanceAndAudit(ctx, tx, balance, entry, -entry.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}

	return balance, nil
}

// ListTransactions retrieves a user's most recent transactions.
func (r *Repository) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, transaction_type, amount, balance_after, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// lockBalance reads the balance row under FOR UPDATE, establishing the
// per-user serialization point for the check-then-mutate sequence.
func lockBalance(ctx context.Context, tx pgx.Tx, userID string) (*model.CreditBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM credit_balances WHERE user_id = $1 FOR UPDATE`
	return scanBalance(tx.QueryRow(ctx, query, userID))
}

// writeBalanceAndAudit persists the mutated balance and appends the
// audit row with the balance snapshot, inside the caller's transaction.
func writeBalanceAndAudit(ctx context.Context, tx pgx.Tx, balance *model.CreditBalance, entry LedgerEntry, signedAmount int64) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	updateQuery := `
		UPDATE credit_balances
		SET credits = $2, total_earned = $3, total_spent = $4, updated_at = now()
		WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery,
		balance.UserID,
		balance.Credits,
		balance.TotalEarned,
		balance.TotalSpent,
	); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	insertQuery := `
		INSERT INTO credit_transactions (id, user_id, transaction_type, amount, balance_after, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	if _, err := tx.Exec(ctx, insertQuery,
		entry.ID,
		entry.UserID,
		entry.Type,
		signedAmount,
		balance.Credits,
		entry.Description,
	); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// scanBalance scans a single row into a CreditBalance model.
func scanBalance(row pgx.Row) (*model.CreditBalance, error) {
	var b model.CreditBalance

	err := row.Scan(
		&b.UserID,
		&b.Credits,
		&b.TotalEarned,
		&b.TotalSpent,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("failed to scan balance: %w", err)
	}

	return &b, nil
}

// RegisterUser creates the user, their balance row, and (when the grant
// is positive) the welcome transaction in a single atomic unit.
func (r *Repository) RegisterUser(ctx context.Context, user *model.User, grant LedgerEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback(ctx)

	userQuery := `
		INSERT INTO users (id, username, email, password_hash, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, userQuery,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if conflict := classifyUserConflict(err); conflict != err {
			return conflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	balanceQuery := `
		INSERT INTO credit_balances (user_id, credits, total_earned, total_spent, created_at, updated_at)
		VALUES ($1, $2, $3, 0, now(), now())
	`
	if _, err := tx.Exec(ctx, balanceQuery, user.ID, grant.Amount, grant.Amount); err != nil {
		return fmt.Errorf("failed to create balance: %w", err)
	}

	if grant.Amount > 0 {
		grantQuery := `
			INSERT INTO credit_transactions (id, user_id, transaction_type, amount, balance_after, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`
		if _, err := tx.Exec(ctx, grantQuery,
			grant.ID,
			user.ID,
			grant.Type,
			grant.Amount,
			grant.Amount,
			grant.Description,
		); err != nil {
			return fmt.Errorf("failed to record welcome grant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	return nil
}
