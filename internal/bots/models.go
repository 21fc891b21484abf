package bots

import (
	"gorm.io/gorm"
)

// BotConfig is the persisted configuration for one trading bot. Exchange
// credentials are stored only as vault ciphertext; the webhook key is stored
// only as a SHA-256 hash. Configurations are deactivated, never deleted.
type BotConfig struct {
	gorm.Model         `json:"-"`
	BotID              string `gorm:"uniqueIndex" json:"bot_id"`
	TradingPair        string `json:"trading_pair"`
	EncryptedAPIKey    string `json:"-"`
	EncryptedAPISecret string `json:"-"`
	WebhookKeyHash     string `json:"-"`
	KeyVersion         int    `json:"key_version"`
	Active             bool   `json:"active"`
}
