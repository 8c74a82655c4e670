package main

import (
	"context"
	"flag"

	"slh-wallet-bot/internal/common"
	"slh-wallet-bot/internal/config"
	"slh-wallet-bot/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Offline MEAH grant tool. Writes the same ledger entries the privileged
// bot command does, for use when the bot is down or the operator prefers
// the shell.
func main() {
	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	chatFlag := flag.Int64("chat", 0, "Target chat id to credit (required)")
	amountFlag := flag.String("amount", "", "MEAH amount to grant (required, positive)")
	fromFlag := flag.Int64("from", 0, "Operator chat id recorded as the grant source")
	flag.Parse()

	if *chatFlag == 0 || *amountFlag == "" {
		logger.Fatal("Both -chat and -amount are required")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil || !amount.IsPositive() {
		logger.Fatal("Amount must be a positive decimal", zap.String("amount", *amountFlag))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	st, err := common.OpenStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	balance, err := ledger.NewService(st).Grant(ctx, *fromFlag, *chatFlag, amount)
	if err != nil {
		logger.Fatal("Grant failed", zap.Error(err))
	}

	logger.Info("Grant applied",
		zap.Int64("chat_id", *chatFlag),
		zap.String("amount", amount.String()),
		zap.String("new_balance", balance.String()))
}
