package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all deployment-level settings. Per-bot exchange credentials
// live encrypted in the database, not here.
type Config struct {
	Port         string
	DatabasePath string

	// Bitvavo exchange settings
	BitvavoAPIURL string
	WindowMS      int

	// Base64-encoded 256-bit key protecting exchange credentials at rest
	EncryptionMasterKey string

	// Secret used to sign operator API tokens
	JWTSecret string

	// Origin addresses allowed to post signals without a webhook key
	AllowedWebhookIPs []string
}

// Default TradingView alert origin addresses, overridable via WEBHOOK_ALLOWED_IPS.
var defaultAllowedIPs = []string{
	"52.89.214.238",
	"34.212.75.30",
	"54.218.53.128",
	"52.32.178.7",
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:                envOrDefault("PORT", "8080"),
		DatabasePath:        envOrDefault("DATABASE_PATH", "autotrader.db"),
		BitvavoAPIURL:       envOrDefault("BITVAVO_API_URL", "https://api.bitvavo.com/v2"),
		WindowMS:            intFromEnv("BITVAVO_WINDOW_MS", 10000),
		EncryptionMasterKey: os.Getenv("ENCRYPTION_MASTER_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		AllowedWebhookIPs:   listFromEnv("WEBHOOK_ALLOWED_IPS", defaultAllowedIPs),
	}

	if cfg.EncryptionMasterKey == "" {
		return nil, errors.New("ENCRYPTION_MASTER_KEY must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer in environment, using fallback")
		return fallback
	}
	return n
}

func listFromEnv(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
