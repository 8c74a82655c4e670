package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slh-wallet-bot/internal/bot"
	"slh-wallet-bot/internal/chain"
	"slh-wallet-bot/internal/common"
	"slh-wallet-bot/internal/config"
	"slh-wallet-bot/internal/conversation"
	"slh-wallet-bot/internal/custody"
	"slh-wallet-bot/internal/i18n"
	"slh-wallet-bot/internal/ledger"
	"slh-wallet-bot/internal/telegram"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting SLH wallet bot")

	if cfg.Telegram.Token == "" {
		zap.L().Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	st, err := common.OpenStore(ctx, cfg.Storage)
	if err != nil {
		zap.L().Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	profile, err := common.LoadProfile(cfg.Bot.ProfileFile)
	if err != nil {
		zap.L().Fatal("Failed to load profile", zap.Error(err))
	}
	zap.L().Info("Profile loaded", zap.Int("operators", len(profile.OperatorChatIDs)))

	catalog, err := i18n.New(cfg.Bot.DefaultLanguage)
	if err != nil {
		zap.L().Fatal("Failed to load locale catalogs", zap.Error(err))
	}

	tgClient, err := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.PollTimeout)
	if err != nil {
		zap.L().Fatal("Failed to create telegram client", zap.Error(err))
	}

	chainClient, err := chain.Dial(cfg.Chain.RPCURL, cfg.Chain.ChainID,
		cfg.Chain.ConfirmationInterval, cfg.Chain.ConfirmationTimeout)
	if err != nil {
		zap.L().Fatal("Failed to connect to EVM node", zap.Error(err))
	}
	defer chainClient.Close()

	token, err := chain.NewToken(chainClient, cfg.Chain.ContractAddress)
	if err != nil {
		zap.L().Fatal("Failed to bind token contract", zap.Error(err))
	}

	custodyMgr := custody.NewManager(st, cfg.Bot.DefaultLanguage)
	machine := conversation.NewMachine(custodyMgr, catalog.Languages())
	ledgerSvc := ledger.NewService(st)

	b := bot.New(bot.Deps{
		Messenger:   tgClient,
		Store:       st,
		Custody:     custodyMgr,
		Machine:     machine,
		Ledger:      ledgerSvc,
		Chain:       chainClient,
		Token:       token,
		Catalog:     catalog,
		Profile:     profile,
		Network:     cfg.Chain.Network,
		PollTimeout: cfg.Telegram.PollTimeout,
	})
	b.Start(ctx)

	zap.L().Info("Bot running")
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping bot...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Bot stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
