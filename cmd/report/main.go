package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"slh-wallet-bot/internal/common"
	"slh-wallet-bot/internal/config"
	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers       int
	usersWithWallets int
	usersWithCredits int
	totalCredits     decimal.Decimal
}

func formatAddress(address string) string {
	if address == "" {
		return "none"
	}
	if len(address) > 12 {
		return address[:12] + "..."
	}
	return address
}

func printUser(ctx context.Context, st store.Store, user models.User, isLast bool) (decimal.Decimal, error) {
	balance, err := st.GetCreditBalance(ctx, user.ChatID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get credit balance: %w", err)
	}

	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-12d custody=%-10s addr=%-15s lang=%-3s meah=%s\n",
		symbol,
		user.ChatID,
		user.Custody,
		formatAddress(user.Address),
		user.Language,
		balance.String())
	return balance, nil
}

func printTransactions(transactions []models.Transaction) {
	for i, tx := range transactions {
		isLast := i == len(transactions)-1
		fmt.Printf("%s %-25s %-10s %12s | from=%d to=%d | %s\n",
			common.BoxPrefix(isLast),
			tx.Type,
			tx.Status,
			tx.Amount.String(),
			tx.FromChatID,
			tx.ToChatID,
			tx.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func processUsers(ctx context.Context, st store.Store, users []models.User, logger *zap.Logger) reportStats {
	stats := reportStats{totalCredits: decimal.Zero}

	for i, user := range users {
		stats.totalUsers++
		if user.HasWallet() {
			stats.usersWithWallets++
		}

		balance, err := printUser(ctx, st, user, i == len(users)-1)
		if err != nil {
			logger.Error("Failed to process user",
				zap.Int64("chat_id", user.ChatID),
				zap.Error(err))
			continue
		}
		if !balance.IsZero() {
			stats.usersWithCredits++
			stats.totalCredits = stats.totalCredits.Add(balance)
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	showTransactions := flag.Bool("transactions", false, "Include the full transaction log in the report")
	flag.Parse()

	logger.Info("Starting wallet report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	st, err := common.OpenStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	users, err := st.Users(ctx)
	if err != nil {
		logger.Fatal("Failed to load users", zap.Error(err))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ChatID < users[j].ChatID })

	common.PrintHeader("WALLET AND CREDIT REPORT", common.DefaultWidth)
	stats := processUsers(ctx, st, users, logger)

	if *showTransactions {
		transactions, err := st.Transactions(ctx)
		if err != nil {
			logger.Fatal("Failed to load transactions", zap.Error(err))
		}
		fmt.Printf("\n┌─ Transactions: %d\n", len(transactions))
		common.PrintBoxSeparator(78)
		printTransactions(transactions)
	}

	summary := fmt.Sprintf("SUMMARY: %d users (%d with wallets, %d with MEAH, total MEAH %s)",
		stats.totalUsers, stats.usersWithWallets, stats.usersWithCredits, stats.totalCredits.String())
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Report completed",
		zap.Int("users", stats.totalUsers),
		zap.Int("users_with_wallets", stats.usersWithWallets),
		zap.Int("users_with_credits", stats.usersWithCredits))
}
