package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Snapshot file names, kept compatible with the legacy deployment so an
// existing data directory can be reused as-is.
const (
	usersFile        = "users.json"
	balancesFile     = "meah_balances.json"
	transactionsFile = "transactions.json"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Compile-time check: *Store must satisfy store.Store.
var _ store.Store = (*Store)(nil)

// Store keeps all state in memory and rewrites the whole snapshot file on
// every mutation. Durability over throughput: volumes are small and each
// write must land before the caller proceeds.
type Store struct {
	mu  sync.Mutex
	dir string

	users        map[int64]models.User
	balances     map[int64]decimal.Decimal
	transactions []models.Transaction
}

// Open loads the three snapshot files from dir, creating the directory if
// needed. Missing files start empty; unreadable files are an error rather
// than silent data loss.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create data directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		users:    make(map[int64]models.User),
		balances: make(map[int64]decimal.Decimal),
	}

	if err := loadSnapshot(filepath.Join(dir, usersFile), &s.users); err != nil {
		return nil, err
	}
	if err := loadSnapshot(filepath.Join(dir, balancesFile), &s.balances); err != nil {
		return nil, err
	}
	if err := loadSnapshot(filepath.Join(dir, transactionsFile), &s.transactions); err != nil {
		return nil, err
	}

	zap.L().Info("File store opened",
		zap.String("dir", dir),
		zap.Int("users", len(s.users)),
		zap.Int("balances", len(s.balances)),
		zap.Int("transactions", len(s.transactions)))
	return s, nil
}

func (s *Store) Close() {}

// --- Users ---

func (s *Store) GetUser(_ context.Context, chatID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[chatID]
	if !ok {
		return nil, fmt.Errorf("%w: chat %d", store.ErrUserNotFound, chatID)
	}
	u := user
	return &u, nil
}

func (s *Store) PutUser(_ context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.users[user.ChatID]
	s.users[user.ChatID] = *user
	if err := s.saveSnapshot(usersFile, s.users); err != nil {
		// Roll the in-memory map back so memory and disk stay in step.
		if existed {
			s.users[user.ChatID] = prev
		} else {
			delete(s.users, user.ChatID)
		}
		return err
	}
	return nil
}

func (s *Store) Users(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

// --- Credit balances ---

func (s *Store) GetCreditBalance(_ context.Context, chatID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bal, ok := s.balances[chatID]; ok {
		return bal, nil
	}
	return decimal.Zero, nil
}

func (s *Store) AdjustCreditBalance(_ context.Context, chatID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.balances[chatID]
	next := prev.Add(delta)
	s.balances[chatID] = next
	if err := s.saveSnapshot(balancesFile, s.balances); err != nil {
		if existed {
			s.balances[chatID] = prev
		} else {
			delete(s.balances, chatID)
		}
		return decimal.Zero, err
	}
	return next, nil
}

// --- Transaction log ---

func (s *Store) AppendTransaction(_ context.Context, tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.transactions {
		if existing.ID == tx.ID {
			return fmt.Errorf("%w: id %s", store.ErrDuplicateTransaction, tx.ID)
		}
	}

	s.transactions = append(s.transactions, *tx)
	if err := s.saveSnapshot(transactionsFile, s.transactions); err != nil {
		s.transactions = s.transactions[:len(s.transactions)-1]
		return err
	}
	return nil
}

func (s *Store) Transactions(_ context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out, nil
}

// --- Snapshot I/O ---

// loadSnapshot reads a JSON file into v, tolerating a missing file, an
// empty file, and a UTF-8 BOM left behind by legacy Windows editors.
func loadSnapshot(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", path, err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return nil
}

// saveSnapshot rewrites the whole file through a temp file + rename so a
// crash mid-write never leaves a truncated snapshot behind.
func (s *Store) saveSnapshot(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("unable to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("unable to replace %s: %w", path, err)
	}
	return nil
}
