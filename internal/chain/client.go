package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Native coin precision (wei per BNB/ETH).
const nativeDecimals = 18

// Client wraps the EVM node connection used for balance reads, transfer
// submission and confirmation waits.
type Client struct {
	eth          *ethclient.Client
	chainID      int64
	pollInterval time.Duration
	waitTimeout  time.Duration
}

func Dial(endpoint string, chainID int64, pollInterval, waitTimeout time.Duration) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	eth, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, fmt.Errorf("unable to dial rpc endpoint: %w", err)
	}

	zap.L().Info("Connected to EVM node",
		zap.String("endpoint", trimmed),
		zap.Int64("chain_id", chainID))
	return &Client{
		eth:          eth,
		chainID:      chainID,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// NativeBalance returns the address's native-coin balance in whole units.
func (c *Client) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address: %q", address)
	}
	wei, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to fetch native balance: %w", err)
	}
	return decimal.NewFromBigInt(wei, 0).Shift(-nativeDecimals), nil
}

// WaitMined blocks until the transaction is mined or the wait budget runs
// out, then reports whether it succeeded.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			return receipt.Status == types.ReceiptStatusSuccessful, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return false, fmt.Errorf("unable to fetch receipt: %w", err)
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return false, fmt.Errorf("confirmation wait for %s: %w", txHash.Hex(), waitCtx.Err())
		}
	}
}
