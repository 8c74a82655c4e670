package ledger

import (
	"context"
	"fmt"
	"time"

	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service owns the internal MEAH credit balances and the append-only event
// log. It is deliberately unbounded in both directions: debits may drive a
// balance negative (legacy behavior, kept on purpose).
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Balance returns the stored balance, or zero for chats never credited.
func (s *Service) Balance(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	return s.store.GetCreditBalance(ctx, chatID)
}

// Credit adds amount to the chat's balance and persists synchronously.
func (s *Service) Credit(ctx context.Context, chatID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.store.AdjustCreditBalance(ctx, chatID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit failed: %w", err)
	}
	zap.L().Info("Credit applied",
		zap.Int64("chat_id", chatID),
		zap.String("amount", amount.String()),
		zap.String("balance", balance.String()))
	return balance, nil
}

// Debit subtracts amount from the chat's balance. No floor check.
func (s *Service) Debit(ctx context.Context, chatID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.store.AdjustCreditBalance(ctx, chatID, amount.Neg())
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit failed: %w", err)
	}
	zap.L().Info("Debit applied",
		zap.Int64("chat_id", chatID),
		zap.String("amount", amount.String()),
		zap.String("balance", balance.String()))
	return balance, nil
}

// Record appends entry to the immutable log, assigning an id and a UTC
// write-time timestamp when the caller left them unset.
func (s *Service) Record(ctx context.Context, entry models.Transaction) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.store.AppendTransaction(ctx, &entry); err != nil {
		return fmt.Errorf("record failed: %w", err)
	}

	zap.L().Info("Transaction recorded",
		zap.String("id", entry.ID),
		zap.String("type", entry.Type),
		zap.Int64("from_chat_id", entry.FromChatID),
		zap.String("amount", entry.Amount.String()))
	return nil
}

// Grant credits target's balance and records the internal transfer in one
// call. Used by the privileged bot command and the offline grant tool; the
// caller is responsible for operator authorization.
func (s *Service) Grant(ctx context.Context, fromChatID, toChatID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.Credit(ctx, toChatID, amount)
	if err != nil {
		return decimal.Zero, err
	}

	err = s.Record(ctx, models.Transaction{
		Type:       models.TxTypeCreditGrant,
		FromChatID: fromChatID,
		ToChatID:   toChatID,
		Amount:     amount,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// History returns the full event log, oldest first.
func (s *Service) History(ctx context.Context) ([]models.Transaction, error) {
	return s.store.Transactions(ctx)
}
