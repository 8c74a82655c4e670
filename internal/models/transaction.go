package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the ledger log.
const (
	TxTypeTokenTransfer = "SLH_TRANSFER"
	TxTypeCreditRequest = "MEAH_REQUEST"
	TxTypeCreditGrant   = "MEAH_TRANSFER_INTERNAL"
)

// Transaction statuses.
const (
	TxStatusPending   = "PENDING"
	TxStatusConfirmed = "CONFIRMED"
)

// Transaction is one immutable entry in the append-only event log.
// Entries are created only through the ledger's Record operation and are
// never mutated or deleted afterward.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	FromChatID  int64           `json:"from_chat_id" db:"from_chat_id"`
	ToChatID    int64           `json:"to_chat_id,omitempty" db:"to_chat_id"`
	FromAddress string          `json:"from_address,omitempty" db:"from_address"`
	ToAddress   string          `json:"to_address,omitempty" db:"to_address"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Network     string          `json:"network,omitempty" db:"network"`
	TxHash      string          `json:"tx_hash,omitempty" db:"tx_hash"`
	Status      string          `json:"status,omitempty" db:"status"`
	Username    string          `json:"username,omitempty" db:"username"`
	CreatedAt   time.Time       `json:"timestamp" db:"created_at"`
}
