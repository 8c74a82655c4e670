package store

import (
	"context"
	"errors"

	"slh-wallet-bot/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Store defines the contract that every persistence backend (flat-file,
// SQLite, ...) must satisfy. All mutations persist synchronously before
// returning; callers may assume durability on success.
type Store interface {
	// --- Users ---
	GetUser(ctx context.Context, chatID int64) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error
	Users(ctx context.Context) ([]models.User, error)

	// --- Credit balances ---
	// GetCreditBalance returns zero for chats that never had a mutation.
	GetCreditBalance(ctx context.Context, chatID int64) (decimal.Decimal, error)
	// AdjustCreditBalance applies delta (positive or negative) and returns
	// the new balance. No floor is enforced; balances may go negative.
	AdjustCreditBalance(ctx context.Context, chatID int64, delta decimal.Decimal) (decimal.Decimal, error)

	// --- Transaction log ---
	// AppendTransaction adds one immutable entry to the event log.
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	Transactions(ctx context.Context) ([]models.Transaction, error)

	// --- Lifecycle ---
	Close()
}
