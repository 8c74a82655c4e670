package common

import (
	"context"
	"log"
	"strings"

	"slh-wallet-bot/internal/database"
	"slh-wallet-bot/internal/filestore"
	"slh-wallet-bot/internal/models"
	"slh-wallet-bot/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// OpenStore builds the persistence backend selected by configuration.
// Both backends satisfy store.Store, so callers never branch on the
// concrete type.
func OpenStore(ctx context.Context, cfg models.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return database.NewService(ctx, cfg.DatabasePath)
	default:
		return filestore.Open(cfg.DataDir)
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
