package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slh-wallet-bot/internal/chain"
	"slh-wallet-bot/internal/conversation"
	"slh-wallet-bot/internal/custody"
	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/telegram"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// handleMessage routes one inbound message. Slash commands are dispatched
// here; everything else flows through the conversational state machine.
func (b *Bot) handleMessage(ctx context.Context, msg telegram.Message) error {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	if !strings.HasPrefix(text, "/") {
		reply, err := b.machine.Handle(ctx, chatID, text)
		if err != nil {
			return fmt.Errorf("conversation step failed: %w", err)
		}
		if reply.IsZero() {
			return nil
		}
		return b.reply(ctx, chatID, reply.Key, reply.Params)
	}

	command, args := splitCommand(text)
	zap.L().Info("Command received", zap.Int64("chat_id", chatID), zap.String("command", command))

	switch command {
	case "start":
		return b.handleStart(ctx, chatID)
	case "help":
		return b.reply(ctx, chatID, "help", nil)
	case "setlang":
		return b.handleSetLang(ctx, chatID)
	case "balance":
		return b.handleBalance(ctx, chatID)
	case "send":
		return b.handleSend(ctx, msg, args)
	case "deposit":
		return b.handleDeposit(ctx, chatID)
	case "community":
		return b.reply(ctx, chatID, "community", map[string]string{"link": b.profile.CommunityLink})
	case "donate":
		return b.handleDonate(ctx, chatID)
	case "learn":
		return b.handleLearn(ctx, chatID)
	case "meah_balance":
		return b.handleCreditBalance(ctx, chatID)
	case "request":
		return b.handleRequest(ctx, msg, args)
	case "meah_send":
		return b.handleGrant(ctx, msg, args)
	default:
		// Unknown commands are ignored, same as unrecognized free text.
		return nil
	}
}

// splitCommand extracts the bare command name and its arguments. A group
// suffix ("/send@SlhBot") is stripped. Command names are case-sensitive:
// "/Balance" matches nothing.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return command, fields[1:]
}

func senderUsername(msg telegram.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.Username
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) error {
	user, err := b.custody.EnsureUser(ctx, chatID)
	if err != nil {
		return err
	}
	if user.HasWallet() {
		return b.reply(ctx, chatID, "already_configured", nil)
	}
	return b.reply(ctx, chatID, "start", nil)
}

func (b *Bot) handleSetLang(ctx context.Context, chatID int64) error {
	if _, err := b.custody.EnsureUser(ctx, chatID); err != nil {
		return err
	}
	return b.reply(ctx, chatID, "choose_lang", nil)
}

func (b *Bot) handleBalance(ctx context.Context, chatID int64) error {
	user, err := b.custody.EnsureUser(ctx, chatID)
	if err != nil {
		return err
	}
	if !user.HasWallet() {
		return b.reply(ctx, chatID, "no_wallet", nil)
	}
	if b.chain == nil || b.token == nil {
		return b.reply(ctx, chatID, "balance_error", nil)
	}

	native, err := b.chain.NativeBalance(ctx, user.Address)
	if err != nil {
		zap.L().Error("Native balance fetch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.reply(ctx, chatID, "balance_error", nil)
	}
	tokenBalance, err := b.token.BalanceOf(ctx, user.Address)
	if err != nil {
		zap.L().Error("Token balance fetch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.reply(ctx, chatID, "balance_error", nil)
	}
	name, err := b.token.Name(ctx)
	if err != nil {
		return b.reply(ctx, chatID, "balance_error", nil)
	}
	symbol, err := b.token.Symbol(ctx)
	if err != nil {
		return b.reply(ctx, chatID, "balance_error", nil)
	}

	return b.reply(ctx, chatID, "balance", map[string]string{
		"address":      user.Address,
		"bnb":          native.String(),
		"tokenName":    name,
		"symbol":       symbol,
		"tokenBalance": tokenBalance.String(),
	})
}

func (b *Bot) handleSend(ctx context.Context, msg telegram.Message, args []string) error {
	chatID := msg.Chat.ID

	user, err := b.custody.EnsureUser(ctx, chatID)
	if err != nil {
		return err
	}
	if !user.HasWallet() {
		return b.reply(ctx, chatID, "no_wallet", nil)
	}
	if user.Custody == models.CustodyExternal {
		return b.reply(ctx, chatID, "send_external_block", nil)
	}
	if len(args) < 2 {
		return b.reply(ctx, chatID, "help", nil)
	}
	to, rawAmount := args[0], args[1]
	if !ethcommon.IsHexAddress(to) {
		return b.reply(ctx, chatID, "send_invalid_address", nil)
	}
	if b.chain == nil || b.token == nil {
		return b.reply(ctx, chatID, "send_error", nil)
	}

	decimals, err := b.token.Decimals(ctx)
	if err != nil {
		zap.L().Error("Decimals fetch failed", zap.Error(err))
		return b.reply(ctx, chatID, "send_error", nil)
	}
	amount, err := chain.ParseAmount(rawAmount, decimals)
	if err != nil {
		return b.reply(ctx, chatID, "send_invalid_amount", nil)
	}

	key, err := b.custody.ResolveSigner(ctx, chatID)
	if err != nil {
		if errors.Is(err, custody.ErrExternalCustody) {
			return b.reply(ctx, chatID, "send_external_block", nil)
		}
		if errors.Is(err, custody.ErrNoWallet) {
			return b.reply(ctx, chatID, "no_wallet", nil)
		}
		return err
	}

	txHash, err := b.token.Transfer(ctx, key, to, amount)
	if err != nil {
		zap.L().Error("Transfer submission failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.reply(ctx, chatID, "send_error", nil)
	}

	if err := b.reply(ctx, chatID, "send_sending", map[string]string{"hash": txHash.Hex()}); err != nil {
		zap.L().Warn("Submission notice not delivered", zap.Error(err))
	}

	success, err := b.chain.WaitMined(ctx, txHash)
	if err != nil {
		zap.L().Error("Confirmation wait failed", zap.String("tx_hash", txHash.Hex()), zap.Error(err))
		return b.reply(ctx, chatID, "send_error", nil)
	}
	if !success {
		// Reverted on chain; nothing moved, so nothing is recorded.
		return b.reply(ctx, chatID, "send_fail", nil)
	}

	err = b.ledger.Record(ctx, models.Transaction{
		Type:        models.TxTypeTokenTransfer,
		FromChatID:  chatID,
		FromAddress: user.Address,
		ToAddress:   ethcommon.HexToAddress(to).Hex(),
		Amount:      decimal.NewFromBigInt(amount, 0).Shift(-int32(decimals)),
		Network:     b.network,
		TxHash:      txHash.Hex(),
		Status:      models.TxStatusConfirmed,
		Username:    senderUsername(msg),
	})
	if err != nil {
		// The on-chain transfer went through; only the bookkeeping failed.
		zap.L().Error("Transfer record failed", zap.Error(err))
		return b.reply(ctx, chatID, "send_success_unrecorded", nil)
	}

	return b.reply(ctx, chatID, "send_success", nil)
}

func (b *Bot) handleDeposit(ctx context.Context, chatID int64) error {
	user, err := b.custody.EnsureUser(ctx, chatID)
	if err != nil {
		return err
	}
	if !user.HasWallet() {
		return b.reply(ctx, chatID, "no_wallet", nil)
	}

	symbol := "SLH"
	if b.token != nil {
		if s, err := b.token.Symbol(ctx); err == nil {
			symbol = s
		}
	}
	return b.reply(ctx, chatID, "deposit", map[string]string{
		"symbol":  symbol,
		"address": user.Address,
	})
}

func (b *Bot) handleDonate(ctx context.Context, chatID int64) error {
	return b.replyLines(ctx, chatID, []conversation.Reply{
		{Key: "donate_intro"},
		{Key: "donate_ton", Params: map[string]string{"tonAddress": b.profile.TonDonateAddr}},
		{Key: "donate_evm", Params: map[string]string{"evmAddress": b.profile.EvmDonateAddr}},
		{Key: "donate_meah"},
		{Key: "donate_tax"},
		{Key: "donate_contact", Params: map[string]string{"devContact": b.profile.DevContact}},
		{Key: "dev_signature"},
	})
}

func (b *Bot) handleLearn(ctx context.Context, chatID int64) error {
	return b.replyLines(ctx, chatID, []conversation.Reply{
		{Key: "learn_intro"},
		{Key: "learn_points"},
		{Key: "learn_more"},
		{Key: "dev_signature"},
	})
}

func (b *Bot) handleCreditBalance(ctx context.Context, chatID int64) error {
	if _, err := b.custody.EnsureUser(ctx, chatID); err != nil {
		return err
	}
	balance, err := b.ledger.Balance(ctx, chatID)
	if err != nil {
		return fmt.Errorf("credit balance lookup failed: %w", err)
	}
	return b.reply(ctx, chatID, "meah_balance", map[string]string{"balance": balance.String()})
}

func (b *Bot) handleRequest(ctx context.Context, msg telegram.Message, args []string) error {
	chatID := msg.Chat.ID
	if _, err := b.custody.EnsureUser(ctx, chatID); err != nil {
		return err
	}
	if len(args) < 1 {
		return b.reply(ctx, chatID, "request_invalid_amount", nil)
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil || !amount.IsPositive() {
		return b.reply(ctx, chatID, "request_invalid_amount", nil)
	}

	err = b.ledger.Record(ctx, models.Transaction{
		Type:       models.TxTypeCreditRequest,
		FromChatID: chatID,
		Amount:     amount,
		Status:     models.TxStatusPending,
		Username:   senderUsername(msg),
	})
	if err != nil {
		return fmt.Errorf("credit request record failed: %w", err)
	}
	return b.reply(ctx, chatID, "request_recorded", map[string]string{"amount": amount.String()})
}

// handleGrant is the privileged MEAH transfer. Only chats listed in the
// profile's operator set may invoke it.
func (b *Bot) handleGrant(ctx context.Context, msg telegram.Message, args []string) error {
	chatID := msg.Chat.ID
	if _, err := b.custody.EnsureUser(ctx, chatID); err != nil {
		return err
	}
	if !b.profile.IsOperator(chatID) {
		zap.L().Warn("Unauthorized grant attempt", zap.Int64("chat_id", chatID))
		return b.reply(ctx, chatID, "meah_operator_only", nil)
	}
	if len(args) < 2 {
		return b.reply(ctx, chatID, "request_invalid_amount", nil)
	}

	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return b.reply(ctx, chatID, "request_invalid_amount", nil)
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil || !amount.IsPositive() {
		return b.reply(ctx, chatID, "request_invalid_amount", nil)
	}

	if _, err := b.ledger.Grant(ctx, chatID, target, amount); err != nil {
		return fmt.Errorf("grant failed: %w", err)
	}

	// The recipient gets a courtesy notice; delivery failure does not undo
	// the grant.
	if err := b.reply(ctx, target, "meah_received", map[string]string{"amount": amount.String()}); err != nil {
		zap.L().Warn("Grant notice not delivered", zap.Int64("target", target), zap.Error(err))
	}
	return b.reply(ctx, chatID, "meah_sent", map[string]string{
		"amount": amount.String(),
		"target": strconv.FormatInt(target, 10),
	})
}
