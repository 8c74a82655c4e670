package models

import "time"

// CustodyMode describes who holds the signing material for a user's wallet.
type CustodyMode string

const (
	// CustodyNone means the user has not set up a wallet yet.
	CustodyNone CustodyMode = "none"
	// CustodyGenerated means the bot created the keypair for the user.
	CustodyGenerated CustodyMode = "generated"
	// CustodyImported means the user supplied their own private key.
	CustodyImported CustodyMode = "imported"
	// CustodyExternal means only a watch address is registered; the bot
	// never holds signing material for this user.
	CustodyExternal CustodyMode = "external"
)

// Step is the pending conversational step for a chat. At most one custody
// setup flow can be in flight per chat.
type Step string

const (
	StepNone                    Step = ""
	StepAwaitingPrivateKey      Step = "awaiting_private_key"
	StepAwaitingExternalAddress Step = "awaiting_external_address"
)

// User is the per-chat record. Invariant: PendingStep != StepNone implies
// Custody == CustodyNone (custody is still being established).
type User struct {
	ChatID      int64       `json:"chat_id" db:"chat_id"`
	Language    string      `json:"language" db:"language"`
	Custody     CustodyMode `json:"custody" db:"custody"`
	Address     string      `json:"address,omitempty" db:"address"`
	PrivateKey  string      `json:"private_key,omitempty" db:"private_key"`
	PendingStep Step        `json:"pending_step,omitempty" db:"pending_step"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// HasWallet reports whether an address is associated with the user.
func (u *User) HasWallet() bool {
	return u != nil && u.Custody != CustodyNone && u.Address != ""
}

// CanSign reports whether the bot holds signing material for the user.
func (u *User) CanSign() bool {
	return u != nil && (u.Custody == CustodyGenerated || u.Custody == CustodyImported)
}
