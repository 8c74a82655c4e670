package models

import "time"

// Config represents the application configuration
type Config struct {
	Telegram TelegramConfig
	Chain    ChainConfig
	Storage  StorageConfig
	Bot      BotConfig
}

// TelegramConfig holds Bot API transport settings
type TelegramConfig struct {
	Token       string
	PollTimeout time.Duration
}

// ChainConfig holds EVM node and token contract settings
type ChainConfig struct {
	RPCURL               string
	ContractAddress      string
	ChainID              int64
	Network              string
	ConfirmationInterval time.Duration
	ConfirmationTimeout  time.Duration
}

// StorageConfig selects and parameterizes the persistence backend
type StorageConfig struct {
	Backend      string // "file" or "sqlite"
	DataDir      string // file backend: directory holding the JSON snapshots
	DatabasePath string // sqlite backend
}

// BotConfig holds bot-level behavior settings
type BotConfig struct {
	DefaultLanguage string
	ProfileFile     string
}

// Profile is the static informational content served by the bot, loaded
// from a YAML file so deployments can swap it without a rebuild.
type Profile struct {
	CommunityLink   string  `yaml:"community_link"`
	TonDonateAddr   string  `yaml:"ton_donate_address"`
	EvmDonateAddr   string  `yaml:"evm_donate_address"`
	DevContact      string  `yaml:"dev_contact"`
	OperatorChatIDs []int64 `yaml:"operator_chat_ids"`
}

// IsOperator reports whether chatID belongs to the configured operator set.
func (p *Profile) IsOperator(chatID int64) bool {
	for _, id := range p.OperatorChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
