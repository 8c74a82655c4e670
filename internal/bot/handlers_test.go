package bot

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"slh-wallet-bot/internal/conversation"
	"slh-wallet-bot/internal/custody"
	"slh-wallet-bot/internal/filestore"
	"slh-wallet-bot/internal/i18n"
	"slh-wallet-bot/internal/ledger"
	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"
	"slh-wallet-bot/internal/telegram"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	testKeyHex  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x96216849c49358B10257cb55b28eA603c874b05E"
	operatorID  = int64(1000)
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeMessenger) GetUpdates(context.Context, int64, time.Duration) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeMessenger) lastText() string {
	msgs := f.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

type fakeToken struct {
	transferTo     string
	transferAmount *big.Int
	transferErr    error
}

func (f *fakeToken) Name(context.Context) (string, error)     { return "Shalom", nil }
func (f *fakeToken) Symbol(context.Context) (string, error)   { return "SLH", nil }
func (f *fakeToken) Decimals(context.Context) (uint8, error)  { return 2, nil }
func (f *fakeToken) BalanceOf(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(250), nil
}

func (f *fakeToken) Transfer(_ context.Context, _ *ecdsa.PrivateKey, to string, amount *big.Int) (ethcommon.Hash, error) {
	if f.transferErr != nil {
		return ethcommon.Hash{}, f.transferErr
	}
	f.transferTo = to
	f.transferAmount = amount
	return ethcommon.HexToHash("0xabc123"), nil
}

type fakeChain struct {
	mined bool
}

func (f *fakeChain) NativeBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.5), nil
}

func (f *fakeChain) WaitMined(context.Context, ethcommon.Hash) (bool, error) {
	return f.mined, nil
}

type testBot struct {
	bot  *Bot
	tg   *fakeMessenger
	st   store.Store
	tok  *fakeToken
	mgr  *custody.Manager
	ldgr *ledger.Service
}

func setupTestBot(t *testing.T) *testBot {
	st, err := filestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	catalog, err := i18n.New("en")
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}

	tg := &fakeMessenger{}
	tok := &fakeToken{}
	mgr := custody.NewManager(st, "en")
	ldgr := ledger.NewService(st)

	b := New(Deps{
		Messenger: tg,
		Store:     st,
		Custody:   mgr,
		Machine:   conversation.NewMachine(mgr, catalog.Languages()),
		Ledger:    ldgr,
		Chain:     &fakeChain{mined: true},
		Token:     tok,
		Catalog:   catalog,
		Profile: &models.Profile{
			CommunityLink:   "https://t.me/slh",
			OperatorChatIDs: []int64{operatorID},
		},
		Network:     "BSC",
		PollTimeout: time.Second,
	})
	return &testBot{bot: b, tg: tg, st: st, tok: tok, mgr: mgr, ldgr: ldgr}
}

func message(chatID int64, text string) telegram.Message {
	return telegram.Message{
		Chat: telegram.Chat{ID: chatID},
		From: &telegram.Actor{ID: chatID, Username: "tester"},
		Text: text,
	}
}

func TestSplitCommand(t *testing.T) {
	command, args := splitCommand("/send 0xabc 10")
	if command != "send" {
		t.Errorf("Expected send, got %s", command)
	}
	if len(args) != 2 || args[0] != "0xabc" || args[1] != "10" {
		t.Errorf("Unexpected args %v", args)
	}

	// The group suffix is stripped; the name keeps its case.
	command, _ = splitCommand("/balance@SlhWalletBot")
	if command != "balance" {
		t.Errorf("Expected balance, got %s", command)
	}
}

func TestHandleMessage_CommandsAreCaseSensitive(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "/Balance")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if len(tb.tg.messages()) != 0 {
		t.Errorf("Expected /Balance to be ignored, got %v", tb.tg.messages())
	}
}

func TestHandleMessage_FreeTextRunsStateMachine(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "1")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	last := tb.tg.lastText()
	if !strings.Contains(last, "Address: 0x") {
		t.Errorf("Expected wallet creation reply, got %q", last)
	}
}

func TestHandleMessage_UnknownTextSilent(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "random chatter")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if len(tb.tg.messages()) != 0 {
		t.Errorf("Expected silence, got %v", tb.tg.messages())
	}
}

func TestHandleBalance_NoWallet(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "/balance")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "no wallet") {
		t.Errorf("Expected no_wallet reply, got %q", tb.tg.lastText())
	}
}

func TestHandleBalance_WithWallet(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()
	importWallet(t, tb, 1)

	if err := tb.bot.handleMessage(ctx, message(1, "/balance")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	last := tb.tg.lastText()
	if !strings.Contains(last, "250") || !strings.Contains(last, "SLH") {
		t.Errorf("Expected token balance in reply, got %q", last)
	}
	if !strings.Contains(last, "0.5") {
		t.Errorf("Expected native balance in reply, got %q", last)
	}
}

func TestHandleSend_ExternalCustodyBlocked(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(2, "3")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if err := tb.bot.handleMessage(ctx, message(2, testAddress)); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	if err := tb.bot.handleMessage(ctx, message(2, "/send "+testAddress+" 10")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "external") {
		t.Errorf("Expected external custody block, got %q", tb.tg.lastText())
	}
}

func TestHandleSend_HappyPath(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()
	importWallet(t, tb, 1)

	if err := tb.bot.handleMessage(ctx, message(1, "/send "+testAddress+" 1.5")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	if tb.tok.transferTo != testAddress {
		t.Errorf("Expected transfer to %s, got %s", testAddress, tb.tok.transferTo)
	}
	// 1.5 tokens at 2 decimals.
	if tb.tok.transferAmount == nil || tb.tok.transferAmount.String() != "150" {
		t.Errorf("Expected transfer amount 150, got %v", tb.tok.transferAmount)
	}
	if !strings.Contains(tb.tg.lastText(), "confirmed") {
		t.Errorf("Expected confirmation reply, got %q", tb.tg.lastText())
	}

	entries, err := tb.ldgr.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 recorded transfer, got %d", len(entries))
	}
	if entries[0].Type != models.TxTypeTokenTransfer {
		t.Errorf("Expected type %s, got %s", models.TxTypeTokenTransfer, entries[0].Type)
	}
	if entries[0].Status != models.TxStatusConfirmed {
		t.Errorf("Expected confirmed status, got %s", entries[0].Status)
	}
	if !entries[0].Amount.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Expected amount 1.5, got %s", entries[0].Amount.String())
	}
}

func TestHandleSend_RevertedNotRecorded(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()
	importWallet(t, tb, 1)
	tb.bot.chain = &fakeChain{mined: false}

	if err := tb.bot.handleMessage(ctx, message(1, "/send "+testAddress+" 1")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "rejected") {
		t.Errorf("Expected rejection reply, got %q", tb.tg.lastText())
	}

	entries, err := tb.ldgr.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no record for reverted transfer, got %d", len(entries))
	}
}

// failingAppendStore accepts every write except transaction appends.
type failingAppendStore struct {
	store.Store
}

func (f *failingAppendStore) AppendTransaction(context.Context, *models.Transaction) error {
	return errors.New("disk full")
}

func TestHandleSend_RecordFailureSurfaced(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()
	importWallet(t, tb, 1)
	tb.bot.ledger = ledger.NewService(&failingAppendStore{tb.st})

	if err := tb.bot.handleMessage(ctx, message(1, "/send "+testAddress+" 1")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	// The transfer went through on chain, so the reply must say so while
	// still flagging the failed bookkeeping.
	last := tb.tg.lastText()
	if !strings.Contains(last, "could not record") {
		t.Errorf("Expected record failure notice, got %q", last)
	}
	if !strings.Contains(last, "confirmed") {
		t.Errorf("Expected confirmation in the notice, got %q", last)
	}
}

func TestHandleSend_InvalidInputs(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()
	importWallet(t, tb, 1)

	if err := tb.bot.handleMessage(ctx, message(1, "/send not-an-address 10")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "address") {
		t.Errorf("Expected invalid address reply, got %q", tb.tg.lastText())
	}

	if err := tb.bot.handleMessage(ctx, message(1, "/send "+testAddress+" -4")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "amount") {
		t.Errorf("Expected invalid amount reply, got %q", tb.tg.lastText())
	}
}

func TestHandleRequest_RecordsEntry(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(3, "/request 20")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "20") {
		t.Errorf("Expected amount in reply, got %q", tb.tg.lastText())
	}

	entries, err := tb.ldgr.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != models.TxTypeCreditRequest {
		t.Errorf("Expected type %s, got %s", models.TxTypeCreditRequest, entries[0].Type)
	}
	if entries[0].FromChatID != 3 {
		t.Errorf("Expected from chat 3, got %d", entries[0].FromChatID)
	}
	if entries[0].Username != "tester" {
		t.Errorf("Expected username tester, got %q", entries[0].Username)
	}

	// A request records intent only; no balance moves.
	balance, err := tb.ldgr.Balance(ctx, 3)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected zero balance after request, got %s", balance.String())
	}
}

func TestHandleGrant_OperatorOnly(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(3, "/meah_send 4 50")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "operators") {
		t.Errorf("Expected operator gate reply, got %q", tb.tg.lastText())
	}

	balance, err := tb.ldgr.Balance(ctx, 4)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected no grant from non-operator, got %s", balance.String())
	}
}

func TestHandleGrant_OperatorGrants(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(operatorID, "/meah_send 4 50")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	balance, err := tb.ldgr.Balance(ctx, 4)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected balance 50, got %s", balance.String())
	}

	// Recipient notice plus operator confirmation.
	msgs := tb.tg.messages()
	var toTarget, toOperator bool
	for _, m := range msgs {
		if m.ChatID == 4 {
			toTarget = true
		}
		if m.ChatID == operatorID && strings.Contains(m.Text, "50") {
			toOperator = true
		}
	}
	if !toTarget || !toOperator {
		t.Errorf("Expected notices to target and operator, got %v", msgs)
	}
}

func TestHandleCreditBalance(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if _, err := tb.ldgr.Credit(ctx, 5, decimal.NewFromInt(75)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if err := tb.bot.handleMessage(ctx, message(5, "/meah_balance")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "75") {
		t.Errorf("Expected balance in reply, got %q", tb.tg.lastText())
	}
}

func TestHandleCommunity_UsesProfile(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "/community")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "https://t.me/slh") {
		t.Errorf("Expected community link, got %q", tb.tg.lastText())
	}
}

func TestHandleLearn_EndsWithSignature(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "/learn")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	msgs := tb.tg.messages()
	if len(msgs) == 0 {
		t.Fatal("Expected learn replies")
	}
	if !strings.Contains(msgs[len(msgs)-1].Text, "the SLH team") {
		t.Errorf("Expected signature as the last line, got %q", msgs[len(msgs)-1].Text)
	}
}

func TestHandleStart(t *testing.T) {
	tb := setupTestBot(t)
	ctx := context.Background()

	if err := tb.bot.handleMessage(ctx, message(1, "/start")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "1 -") {
		t.Errorf("Expected setup menu, got %q", tb.tg.lastText())
	}

	importWallet(t, tb, 1)
	if err := tb.bot.handleMessage(ctx, message(1, "/start")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
	if !strings.Contains(tb.tg.lastText(), "already") {
		t.Errorf("Expected already_configured, got %q", tb.tg.lastText())
	}
}

func importWallet(t *testing.T, tb *testBot, chatID int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := tb.mgr.BeginSetup(ctx, chatID, custody.ChoiceImport); err != nil {
		t.Fatalf("BeginSetup failed: %v", err)
	}
	if _, err := tb.mgr.CompleteImport(ctx, chatID, testKeyHex); err != nil {
		t.Fatalf("CompleteImport failed: %v", err)
	}
}
