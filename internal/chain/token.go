package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Minimal ERC-20 surface: the five entry points the bot actually calls.
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// Token binds the configured contract address to the ERC-20 interface.
// Immutable metadata (decimals, name, symbol) is cached after the first
// successful fetch. Failures are never cached: a request that hits a node
// outage fails alone, and the next request retries.
type Token struct {
	client   *Client
	address  common.Address
	contract abi.ABI

	metaMu   sync.Mutex
	metaOK   bool
	decimals uint8
	name     string
	symbol   string
}

func NewToken(client *Client, contractAddress string) (*Token, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address: %q", contractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("unable to parse token ABI: %w", err)
	}
	return &Token{
		client:   client,
		address:  common.HexToAddress(contractAddress),
		contract: parsed,
	}, nil
}

// Address returns the bound contract address.
func (t *Token) Address() string {
	return t.address.Hex()
}

func (t *Token) loadMetadata(ctx context.Context) error {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	if t.metaOK {
		return nil
	}

	var decimals uint8
	if err := t.call(ctx, "decimals", nil, &decimals); err != nil {
		return fmt.Errorf("unable to fetch decimals: %w", err)
	}
	var name string
	if err := t.call(ctx, "name", nil, &name); err != nil {
		return fmt.Errorf("unable to fetch name: %w", err)
	}
	var symbol string
	if err := t.call(ctx, "symbol", nil, &symbol); err != nil {
		return fmt.Errorf("unable to fetch symbol: %w", err)
	}

	t.decimals, t.name, t.symbol = decimals, name, symbol
	t.metaOK = true
	zap.L().Info("Token metadata loaded",
		zap.String("contract", t.address.Hex()),
		zap.String("name", name),
		zap.String("symbol", symbol),
		zap.Uint8("decimals", decimals))
	return nil
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	if err := t.loadMetadata(ctx); err != nil {
		return 0, err
	}
	return t.decimals, nil
}

func (t *Token) Name(ctx context.Context) (string, error) {
	if err := t.loadMetadata(ctx); err != nil {
		return "", err
	}
	return t.name, nil
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	if err := t.loadMetadata(ctx); err != nil {
		return "", err
	}
	return t.symbol, nil
}

// BalanceOf returns the holder's token balance in whole token units.
func (t *Token) BalanceOf(ctx context.Context, holder string) (decimal.Decimal, error) {
	if !common.IsHexAddress(holder) {
		return decimal.Zero, fmt.Errorf("invalid address: %q", holder)
	}
	decimals, err := t.Decimals(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	var raw *big.Int
	if err := t.call(ctx, "balanceOf", []interface{}{common.HexToAddress(holder)}, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("unable to fetch token balance: %w", err)
	}
	return decimal.NewFromBigInt(raw, 0).Shift(-int32(decimals)), nil
}

// Transfer submits transfer(to, amount) signed with key and returns the
// transaction hash. amount is in base units (see ParseAmount).
func (t *Token) Transfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount *big.Int) (common.Hash, error) {
	if !common.IsHexAddress(to) {
		return common.Hash{}, fmt.Errorf("invalid recipient address: %q", to)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	data, err := t.contract.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("unable to pack transfer call: %w", err)
	}

	nonce, err := t.client.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("unable to fetch nonce: %w", err)
	}
	gasPrice, err := t.client.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("unable to suggest gas price: %w", err)
	}
	gasLimit, err := t.client.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &t.address,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("unable to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, t.address, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(t.client.chainID)), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("unable to sign transaction: %w", err)
	}
	if err := t.client.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("unable to submit transaction: %w", err)
	}

	zap.L().Info("Transfer submitted",
		zap.String("from", from.Hex()),
		zap.String("to", to),
		zap.String("amount_base_units", amount.String()),
		zap.String("tx_hash", signed.Hash().Hex()))
	return signed.Hash(), nil
}

func (t *Token) call(ctx context.Context, method string, args []interface{}, out interface{}) error {
	data, err := t.contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("unable to pack %s: %w", method, err)
	}
	raw, err := t.client.eth.CallContract(ctx, ethereum.CallMsg{To: &t.address, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}
	if err := t.contract.UnpackIntoInterface(out, method, raw); err != nil {
		return fmt.Errorf("unable to unpack %s result: %w", method, err)
	}
	return nil
}
