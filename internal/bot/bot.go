package bot

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"time"

	"slh-wallet-bot/internal/conversation"
	"slh-wallet-bot/internal/custody"
	"slh-wallet-bot/internal/i18n"
	"slh-wallet-bot/internal/ledger"
	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"
	"slh-wallet-bot/internal/telegram"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Messenger is the Telegram transport surface the bot consumes. Satisfied
// by telegram.Client; tests substitute a fake.
type Messenger interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TokenService is the ERC-20 surface used by the command handlers.
type TokenService interface {
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, holder string) (decimal.Decimal, error)
	Transfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount *big.Int) (common.Hash, error)
}

// ChainReader is the node surface used for native balances and
// confirmation waits.
type ChainReader interface {
	NativeBalance(ctx context.Context, address string) (decimal.Decimal, error)
	WaitMined(ctx context.Context, txHash common.Hash) (bool, error)
}

// Bot drives the long-poll loop and dispatches every inbound message to
// either a command handler or the conversational state machine. Updates
// for the same chat are serialized; distinct chats run concurrently.
type Bot struct {
	tg       Messenger
	store    store.Store
	custody  *custody.Manager
	machine  *conversation.Machine
	ledger   *ledger.Service
	chain    ChainReader
	token    TokenService
	catalog  *i18n.Catalog
	profile  *models.Profile
	network  string
	pollTime time.Duration

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	offset   int64
	stopChan chan struct{}
	doneChan chan struct{}
}

// Deps carries the collaborators the bot needs; all fields are required
// except Chain and Token, which may be nil when the node is unreachable
// (chain commands then answer with an error message instead of crashing).
type Deps struct {
	Messenger   Messenger
	Store       store.Store
	Custody     *custody.Manager
	Machine     *conversation.Machine
	Ledger      *ledger.Service
	Chain       ChainReader
	Token       TokenService
	Catalog     *i18n.Catalog
	Profile     *models.Profile
	Network     string
	PollTimeout time.Duration
}

func New(deps Deps) *Bot {
	return &Bot{
		tg:       deps.Messenger,
		store:    deps.Store,
		custody:  deps.Custody,
		machine:  deps.Machine,
		ledger:   deps.Ledger,
		chain:    deps.Chain,
		token:    deps.Token,
		catalog:  deps.Catalog,
		profile:  deps.Profile,
		network:  deps.Network,
		pollTime: deps.PollTimeout,
		locks:    make(map[int64]*sync.Mutex),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the long-poll loop in the background.
func (b *Bot) Start(ctx context.Context) {
	zap.L().Info("Starting bot poll loop", zap.Duration("poll_timeout", b.pollTime))
	go b.pollLoop(ctx)
}

// Stop gracefully stops the poll loop and waits for it to drain.
func (b *Bot) Stop() {
	zap.L().Info("Stopping bot")
	close(b.stopChan)
	<-b.doneChan
	zap.L().Info("Bot stopped")
}

func (b *Bot) pollLoop(ctx context.Context) {
	defer close(b.doneChan)

	for {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.tg.GetUpdates(ctx, b.offset, b.pollTime)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Error("Poll failed", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-b.stopChan:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= b.offset {
				b.offset = update.UpdateID + 1
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.dispatch(ctx, *update.Message)
		}
	}
}

// dispatch serializes handling per chat: a chat mid /send cannot interleave
// a second message, while other chats proceed unimpeded.
func (b *Bot) dispatch(ctx context.Context, msg telegram.Message) {
	lock := b.chatLock(msg.Chat.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := b.handleMessage(ctx, msg); err != nil {
		zap.L().Error("Message handling failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err))
	}
}

func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	lock, ok := b.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[chatID] = lock
	}
	return lock
}

// reply resolves key in the user's language and delivers it.
func (b *Bot) reply(ctx context.Context, chatID int64, key string, params map[string]string) error {
	lang := b.userLanguage(ctx, chatID)
	return b.tg.SendMessage(ctx, chatID, b.catalog.Resolve(lang, key, params))
}

// replyLines joins several resolved keys into one message.
func (b *Bot) replyLines(ctx context.Context, chatID int64, lines []conversation.Reply) error {
	lang := b.userLanguage(ctx, chatID)
	text := ""
	for i, line := range lines {
		if i > 0 {
			text += "\n"
		}
		text += b.catalog.Resolve(lang, line.Key, line.Params)
	}
	return b.tg.SendMessage(ctx, chatID, text)
}

func (b *Bot) userLanguage(ctx context.Context, chatID int64) string {
	user, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		return ""
	}
	return user.Language
}
