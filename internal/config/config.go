package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"slh-wallet-bot/internal/models"
)

// Load reads the full configuration from the environment. The Telegram
// token is left empty when unset; the bot daemon fails fast on it while
// storage-only CLI tools do not need it at all.
func Load() (*models.Config, error) {
	pollTimeout, err := getEnvDuration("POLL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	confirmationInterval, err := getEnvDuration("CONFIRMATION_POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, err
	}

	confirmationTimeout, err := getEnvDuration("CONFIRMATION_TIMEOUT", 3*time.Minute)
	if err != nil {
		return nil, err
	}

	chainID, err := getEnvInt64("CHAIN_ID", 56)
	if err != nil {
		return nil, err
	}

	backend := getEnvString("STORAGE_BACKEND", "file")
	if backend != "file" && backend != "sqlite" {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q (want file or sqlite)", backend)
	}

	return &models.Config{
		Telegram: models.TelegramConfig{
			Token:       getEnvString("TELEGRAM_BOT_TOKEN", ""),
			PollTimeout: pollTimeout,
		},
		Chain: models.ChainConfig{
			RPCURL:               getEnvString("RPC_URL", ""),
			ContractAddress:      getEnvString("CONTRACT_ADDRESS", ""),
			ChainID:              chainID,
			Network:              getEnvString("CHAIN_NETWORK", "BSC"),
			ConfirmationInterval: confirmationInterval,
			ConfirmationTimeout:  confirmationTimeout,
		},
		Storage: models.StorageConfig{
			Backend:      backend,
			DataDir:      getEnvString("DATA_DIR", "."),
			DatabasePath: getEnvString("DATABASE_PATH", "slh-wallet.db"),
		},
		Bot: models.BotConfig{
			DefaultLanguage: getEnvString("DEFAULT_LANGUAGE", "he"),
			ProfileFile:     getEnvString("PROFILE_FILE", "profile.yaml"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return n, nil
	}
	return defaultValue, nil
}
