package custody

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Sentinel errors for custody policy and validation failures.
var (
	ErrAlreadyConfigured = errors.New("wallet already configured")
	ErrInvalidKey        = errors.New("invalid private key")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrNoWallet          = errors.New("no wallet configured")
	ErrExternalCustody   = errors.New("signing forbidden for externally-custodied wallet")
)

// Choice is the custody option a user picks when setting up a wallet.
type Choice string

const (
	ChoiceGenerate Choice = "generate"
	ChoiceImport   Choice = "import"
	ChoiceExternal Choice = "external"
)

// Manager decides which signing material backs each user's transfers and
// enforces the custody invariants. Every successful mutation is persisted
// before the call returns.
type Manager struct {
	store       store.Store
	defaultLang string
}

func NewManager(st store.Store, defaultLang string) *Manager {
	return &Manager{store: st, defaultLang: defaultLang}
}

// EnsureUser creates the user record with defaults on first contact.
// Idempotent: an existing record is returned untouched.
func (m *Manager) EnsureUser(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := m.store.GetUser(ctx, chatID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user = &models.User{
		ChatID:    chatID,
		Language:  m.defaultLang,
		Custody:   models.CustodyNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.PutUser(ctx, user); err != nil {
		return nil, err
	}
	zap.L().Info("User created", zap.Int64("chat_id", chatID))
	return user, nil
}

// BeginSetup starts (or, for generate, completes) custody setup.
// Generate synthesizes a keypair synchronously and finalizes custody with
// no pending step; import and external park the chat on the matching step
// until the follow-up message arrives.
func (m *Manager) BeginSetup(ctx context.Context, chatID int64, choice Choice) (*models.User, error) {
	user, err := m.EnsureUser(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user.Custody != models.CustodyNone {
		return nil, fmt.Errorf("%w: chat %d is %s", ErrAlreadyConfigured, chatID, user.Custody)
	}

	switch choice {
	case ChoiceGenerate:
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("unable to generate key: %w", err)
		}
		user.Custody = models.CustodyGenerated
		user.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()
		user.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))
		user.PendingStep = models.StepNone

	case ChoiceImport:
		user.PendingStep = models.StepAwaitingPrivateKey

	case ChoiceExternal:
		user.PendingStep = models.StepAwaitingExternalAddress

	default:
		return nil, fmt.Errorf("unknown custody choice: %q", choice)
	}

	user.UpdatedAt = time.Now().UTC()
	if err := m.store.PutUser(ctx, user); err != nil {
		return nil, err
	}

	zap.L().Info("Custody setup",
		zap.Int64("chat_id", chatID),
		zap.String("choice", string(choice)),
		zap.String("custody", string(user.Custody)))
	return user, nil
}

// CompleteImport finishes the import flow. On a malformed key the user
// record is left unchanged and the chat stays on awaiting_private_key.
func (m *Manager) CompleteImport(ctx context.Context, chatID int64, rawKey string) (*models.User, error) {
	user, err := m.store.GetUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	key, err := parseKey(rawKey)
	if err != nil {
		zap.L().Warn("Invalid private key", zap.Int64("chat_id", chatID))
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	user.Custody = models.CustodyImported
	user.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	user.PrivateKey = normalizeKeyHex(rawKey)
	user.PendingStep = models.StepNone
	user.UpdatedAt = time.Now().UTC()
	if err := m.store.PutUser(ctx, user); err != nil {
		return nil, err
	}

	zap.L().Info("Wallet imported", zap.Int64("chat_id", chatID), zap.String("address", user.Address))
	return user, nil
}

// CompleteExternal finishes the watch-only flow. No signing material is
// ever stored for external custody.
func (m *Manager) CompleteExternal(ctx context.Context, chatID int64, rawAddress string) (*models.User, error) {
	user, err := m.store.GetUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	addr := strings.TrimSpace(rawAddress)
	if !common.IsHexAddress(addr) {
		zap.L().Warn("Invalid external address", zap.Int64("chat_id", chatID))
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	user.Custody = models.CustodyExternal
	user.Address = common.HexToAddress(addr).Hex()
	user.PrivateKey = ""
	user.PendingStep = models.StepNone
	user.UpdatedAt = time.Now().UTC()
	if err := m.store.PutUser(ctx, user); err != nil {
		return nil, err
	}

	zap.L().Info("External address saved", zap.Int64("chat_id", chatID), zap.String("address", user.Address))
	return user, nil
}

// ResolveSigner returns the signing key for generated and imported
// custody. External custody is never signed for by the bot; users without
// a wallet get ErrNoWallet.
func (m *Manager) ResolveSigner(ctx context.Context, chatID int64) (*ecdsa.PrivateKey, error) {
	user, err := m.store.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrNoWallet
		}
		return nil, err
	}

	switch user.Custody {
	case models.CustodyGenerated, models.CustodyImported:
		key, err := parseKey(user.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("stored key unreadable for chat %d: %w", chatID, err)
		}
		return key, nil
	case models.CustodyExternal:
		return nil, ErrExternalCustody
	default:
		return nil, ErrNoWallet
	}
}

// SetLanguage updates the user's display language. It never touches the
// pending custody step: a language switch mid-flow leaves the flow parked.
func (m *Manager) SetLanguage(ctx context.Context, chatID int64, lang string) (*models.User, error) {
	user, err := m.EnsureUser(ctx, chatID)
	if err != nil {
		return nil, err
	}
	user.Language = lang
	user.UpdatedAt = time.Now().UTC()
	if err := m.store.PutUser(ctx, user); err != nil {
		return nil, err
	}
	zap.L().Info("Language changed", zap.Int64("chat_id", chatID), zap.String("lang", lang))
	return user, nil
}

func parseKey(raw string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(normalizeKeyHex(raw))
}

func normalizeKeyHex(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "0x")
}
