// Package bots manages trading bot configurations: registration, webhook key
// lifecycle, activation state, and on-demand decryption of exchange
// credentials.
package bots

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradekit/autotrader/internal/bitvavo"
	"github.com/tradekit/autotrader/internal/vault"
)

const botIDLength = 6

const botIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// How many fresh bot IDs to try when the unique index reports a collision.
const maxBotIDAttempts = 5

var (
	ErrBotNotFound        = errors.New("bot configuration not found")
	ErrInvalidTradingPair = errors.New("trading pair must be a non-empty uppercase symbol")
	ErrMissingCredentials = errors.New("exchange API key and secret are required")
)

// Service manages bot configurations. Credentials are encrypted before they
// ever reach the database and are only decrypted on demand for a single
// exchange call.
type Service struct {
	db       *Database
	vault    *vault.Vault
	newBotID func() (string, error)
}

func NewService(gormDB *gorm.DB, v *vault.Vault) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		vault:    v,
		newBotID: generateBotID,
	}
}

// Register creates a new bot for the given trading pair, encrypting the
// exchange credentials at rest. It returns the stored configuration plus the
// plaintext webhook key, which is shown exactly once.
func (s *Service) Register(tradingPair, apiKey, apiSecret string) (*BotConfig, string, error) {
	if tradingPair == "" || tradingPair != strings.ToUpper(tradingPair) {
		return nil, "", ErrInvalidTradingPair
	}
	if apiKey == "" || apiSecret == "" {
		return nil, "", ErrMissingCredentials
	}

	encryptedKey, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return nil, "", err
	}
	encryptedSecret, err := s.vault.Encrypt(apiSecret)
	if err != nil {
		return nil, "", err
	}

	webhookKey, err := generateWebhookKey()
	if err != nil {
		return nil, "", err
	}

	// A 6-char random ID can collide; retry with a fresh one when the
	// unique index rejects the insert.
	var bot *BotConfig
	for attempt := 0; ; attempt++ {
		botID, err := s.newBotID()
		if err != nil {
			return nil, "", err
		}

		bot = &BotConfig{
			BotID:              botID,
			TradingPair:        tradingPair,
			EncryptedAPIKey:    encryptedKey,
			EncryptedAPISecret: encryptedSecret,
			WebhookKeyHash:     hashWebhookKey(webhookKey),
			KeyVersion:         1,
			Active:             true,
		}

		err = s.db.CreateBot(bot)
		if err == nil {
			break
		}
		if !isDuplicateBotID(err) {
			return nil, "", err
		}
		if attempt+1 >= maxBotIDAttempts {
			return nil, "", fmt.Errorf("allocating bot id: %w", err)
		}
		log.Warn().Str("bot_id", botID).Msg("bot id collision, retrying with a fresh id")
	}

	log.Info().
		Str("bot_id", bot.BotID).
		Str("trading_pair", bot.TradingPair).
		Msg("bot registered")

	return bot, webhookKey, nil
}

// GetBot returns an active bot configuration, or nil when the bot does not
// exist or is deactivated.
func (s *Service) GetBot(botID string) (*BotConfig, error) {
	return s.db.GetActiveBot(botID)
}

// GetBotIncludingInactive returns the configuration regardless of state, so
// deactivated bots stay addressable for reactivation.
func (s *Service) GetBotIncludingInactive(botID string) (*BotConfig, error) {
	return s.db.GetBot(botID)
}

func (s *Service) ListBots(includeInactive bool) ([]BotConfig, error) {
	return s.db.ListBots(includeInactive)
}

// SetActive toggles a bot's active flag. Deactivation excludes the bot from
// default lookups without deleting its history.
func (s *Service) SetActive(botID string, active bool) error {
	bot, err := s.db.GetBot(botID)
	if err != nil {
		return err
	}
	if bot == nil {
		return ErrBotNotFound
	}

	bot.Active = active
	if err := s.db.UpdateBot(bot); err != nil {
		return err
	}

	log.Info().Str("bot_id", botID).Bool("active", active).Msg("bot state changed")
	return nil
}

// RotateWebhookKey replaces a bot's webhook key, returning the new plaintext
// key once. Only the hash is stored.
func (s *Service) RotateWebhookKey(botID string) (string, error) {
	bot, err := s.db.GetBot(botID)
	if err != nil {
		return "", err
	}
	if bot == nil {
		return "", ErrBotNotFound
	}

	webhookKey, err := generateWebhookKey()
	if err != nil {
		return "", err
	}

	bot.WebhookKeyHash = hashWebhookKey(webhookKey)
	if err := s.db.UpdateBot(bot); err != nil {
		return "", err
	}

	log.Info().Str("bot_id", botID).Msg("webhook key rotated")
	return webhookKey, nil
}

// ValidateWebhookKey compares the hash of a claimed key against the bot's
// stored hash. Unknown bots and wrong keys are indistinguishable to the
// caller.
func (s *Service) ValidateWebhookKey(botID, claimedKey string) bool {
	bot, err := s.db.GetBot(botID)
	if err != nil || bot == nil || bot.WebhookKeyHash == "" {
		return false
	}
	claimed := hashWebhookKey(claimedKey)
	return subtle.ConstantTimeCompare([]byte(bot.WebhookKeyHash), []byte(claimed)) == 1
}

// Credentials decrypts a bot's exchange credentials for immediate use. The
// result is never persisted; callers pass it straight to the exchange client.
func (s *Service) Credentials(bot *BotConfig) (bitvavo.Credentials, error) {
	apiKey, err := s.vault.Decrypt(bot.EncryptedAPIKey)
	if err != nil {
		return bitvavo.Credentials{}, fmt.Errorf("decrypting API key for bot %s: %w", bot.BotID, err)
	}
	apiSecret, err := s.vault.Decrypt(bot.EncryptedAPISecret)
	if err != nil {
		return bitvavo.Credentials{}, fmt.Errorf("decrypting API secret for bot %s: %w", bot.BotID, err)
	}
	return bitvavo.Credentials{Key: apiKey, Secret: apiSecret}, nil
}

// generateBotID produces a 6-character alphanumeric identifier. Uniqueness
// is enforced by the unique index on bot_id.
func generateBotID() (string, error) {
	var sb strings.Builder
	for i := 0; i < botIDLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(botIDAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(botIDAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// isDuplicateBotID detects a unique-index violation on bot_id. The sqlite
// driver does not translate constraint errors into gorm sentinels by
// default, so the message is matched as well.
func isDuplicateBotID(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: bot_configs.bot_id")
}

func generateWebhookKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashWebhookKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}
