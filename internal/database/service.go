package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

// Service is the SQLite persistence backend. Balance adjustments and log
// appends run inside database transactions, with an optimistic version
// column guarding concurrent balance writers.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, path string) (*Service, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	zap.L().Info("Opening SQLite database", zap.String("file", path))
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Per-chat user records
	CREATE TABLE IF NOT EXISTS users (
		chat_id INTEGER PRIMARY KEY,
		language TEXT NOT NULL,
		custody TEXT NOT NULL DEFAULT 'none',
		address TEXT NOT NULL DEFAULT '',
		private_key TEXT NOT NULL DEFAULT '',
		pending_step TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Internal credit balances (hot data)
	CREATE TABLE IF NOT EXISTS credit_balances (
		chat_id INTEGER PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Append-only event log (audit trail, never mutated)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		from_chat_id INTEGER NOT NULL,
		to_chat_id INTEGER NOT NULL DEFAULT 0,
		from_address TEXT NOT NULL DEFAULT '',
		to_address TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		network TEXT NOT NULL DEFAULT '',
		tx_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_from_chat ON transactions(from_chat_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Users ---

func (s *Service) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUser, chatID).Scan(
		&user.ChatID, &user.Language, &user.Custody, &user.Address,
		&user.PrivateKey, &user.PendingStep, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: chat %d", store.ErrUserNotFound, chatID)
		}
		zap.L().Error("Failed to query user", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return &user, nil
}

func (s *Service) PutUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}

	_, err := s.db.ExecContext(ctx, queryUpsertUser,
		user.ChatID, user.Language, user.Custody, user.Address,
		user.PrivateKey, user.PendingStep, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		zap.L().Error("Failed to persist user", zap.Int64("chat_id", user.ChatID), zap.Error(err))
		return fmt.Errorf("unable to persist user: %w", err)
	}
	return nil
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ChatID, &user.Language, &user.Custody, &user.Address,
			&user.PrivateKey, &user.PendingStep, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// --- Credit balances ---

func (s *Service) GetCreditBalance(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	var balanceStr string
	var version int64
	err := s.db.QueryRowContext(ctx, queryGetCreditBalance, chatID).Scan(&balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance.
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse balance %q: %w", balanceStr, err)
	}
	return balance, nil
}

func (s *Service) AdjustCreditBalance(ctx context.Context, chatID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentStr string
	var version int64
	err = tx.QueryRowContext(ctx, queryGetCreditBalance, chatID).Scan(&currentStr, &version)

	var current decimal.Decimal
	created := false
	if errors.Is(err, sql.ErrNoRows) {
		current = decimal.Zero
		created = true
		if _, err := tx.ExecContext(ctx, queryInsertCreditBalance, chatID, "0"); err != nil {
			return decimal.Zero, fmt.Errorf("unable to create balance record: %w", err)
		}
		version = 1
	} else if err != nil {
		return decimal.Zero, fmt.Errorf("unable to read balance: %w", err)
	} else {
		current, err = decimal.NewFromString(currentStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unable to parse balance %q: %w", currentStr, err)
		}
	}

	next := current.Add(delta)

	result, err := tx.ExecContext(ctx, queryUpdateCreditBalance, next.String(), chatID, version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to update balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to check rows affected: %w", err)
	}
	if affected == 0 {
		return decimal.Zero, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("unable to commit balance update: %w", err)
	}

	zap.L().Debug("Credit balance adjusted",
		zap.Int64("chat_id", chatID),
		zap.Bool("created", created),
		zap.String("delta", delta.String()),
		zap.String("balance", next.String()))
	return next, nil
}

// --- Transaction log ---

func (s *Service) AppendTransaction(ctx context.Context, entry *models.Transaction) error {
	if entry == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	var existing string
	err := s.db.QueryRowContext(ctx, queryCheckDuplicateTransaction, entry.ID).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: id %s", store.ErrDuplicateTransaction, entry.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unable to check for duplicate transaction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertTransaction,
		entry.ID, entry.Type, entry.FromChatID, entry.ToChatID,
		entry.FromAddress, entry.ToAddress, entry.Amount.String(),
		entry.Network, entry.TxHash, entry.Status, entry.Username, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("unable to append transaction: %w", err)
	}
	return nil
}

func (s *Service) Transactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTransactions)
	if err != nil {
		return nil, fmt.Errorf("unable to query transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.Transaction
	for rows.Next() {
		var entry models.Transaction
		var amountStr string
		err := rows.Scan(&entry.ID, &entry.Type, &entry.FromChatID, &entry.ToChatID,
			&entry.FromAddress, &entry.ToAddress, &amountStr,
			&entry.Network, &entry.TxHash, &entry.Status, &entry.Username, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan transaction row: %w", err)
		}
		entry.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("unable to parse amount %q: %w", amountStr, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return entries, nil
}
