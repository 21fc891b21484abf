package bots

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradekit/autotrader/internal/vault"
)

const testMasterKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="

var testDBCounter int

func newTestService(t *testing.T) *Service {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:bots_test_%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&BotConfig{}); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	v, err := vault.New(testMasterKey)
	if err != nil {
		t.Fatalf("creating vault: %v", err)
	}
	return NewService(db, v)
}

func TestRegisterEncryptsCredentials(t *testing.T) {
	service := newTestService(t)

	bot, webhookKey, err := service.Register("BTC-EUR", "plain-key", "plain-secret")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if len(bot.BotID) != 6 {
		t.Errorf("bot ID length = %d, want 6", len(bot.BotID))
	}
	for _, r := range bot.BotID {
		if !strings.ContainsRune(botIDAlphabet, r) {
			t.Errorf("bot ID contains invalid character %q", r)
		}
	}
	if bot.KeyVersion != 1 {
		t.Errorf("key version = %d, want 1", bot.KeyVersion)
	}
	if !bot.Active {
		t.Error("newly registered bot should be active")
	}
	if webhookKey == "" {
		t.Error("registration must return a webhook key")
	}

	if bot.EncryptedAPIKey == "plain-key" || bot.EncryptedAPISecret == "plain-secret" {
		t.Fatal("credentials stored in plaintext")
	}
	if bot.WebhookKeyHash == webhookKey {
		t.Fatal("webhook key stored in plaintext")
	}

	creds, err := service.Credentials(bot)
	if err != nil {
		t.Fatalf("Credentials returned error: %v", err)
	}
	if creds.Key != "plain-key" || creds.Secret != "plain-secret" {
		t.Errorf("decrypted credentials = %+v, want original plaintext", creds)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	service := newTestService(t)

	tests := []struct {
		name        string
		pair        string
		key, secret string
		want        error
	}{
		{"lowercase pair", "btc-eur", "k", "s", ErrInvalidTradingPair},
		{"empty pair", "", "k", "s", ErrInvalidTradingPair},
		{"missing key", "BTC-EUR", "", "s", ErrMissingCredentials},
		{"missing secret", "BTC-EUR", "k", "", ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := service.Register(tt.pair, tt.key, tt.secret)
			if err != tt.want {
				t.Errorf("Register error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterRetriesOnBotIDCollision(t *testing.T) {
	service := newTestService(t)

	existing, _, err := service.Register("BTC-EUR", "k", "s")
	if err != nil {
		t.Fatal(err)
	}

	// First draw collides with the existing bot, second is fresh.
	ids := []string{existing.BotID, "Zz9Zz9"}
	service.newBotID = func() (string, error) {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id, nil
	}

	bot, _, err := service.Register("ETH-EUR", "k", "s")
	if err != nil {
		t.Fatalf("Register returned error after a recoverable collision: %v", err)
	}
	if bot.BotID != "Zz9Zz9" {
		t.Errorf("bot ID = %s, want the retried Zz9Zz9", bot.BotID)
	}
}

func TestRegisterGivesUpAfterRepeatedCollisions(t *testing.T) {
	service := newTestService(t)

	existing, _, err := service.Register("BTC-EUR", "k", "s")
	if err != nil {
		t.Fatal(err)
	}

	service.newBotID = func() (string, error) {
		return existing.BotID, nil
	}

	if _, _, err := service.Register("ETH-EUR", "k", "s"); err == nil {
		t.Fatal("expected an error when every generated bot id collides")
	}
}

func TestValidateWebhookKey(t *testing.T) {
	service := newTestService(t)

	bot, webhookKey, err := service.Register("BTC-EUR", "k", "s")
	if err != nil {
		t.Fatal(err)
	}

	if !service.ValidateWebhookKey(bot.BotID, webhookKey) {
		t.Error("correct webhook key rejected")
	}
	if service.ValidateWebhookKey(bot.BotID, "wrong-key") {
		t.Error("wrong webhook key accepted")
	}
	if service.ValidateWebhookKey("nosuch", webhookKey) {
		t.Error("unknown bot accepted")
	}
}

func TestRotateWebhookKeyInvalidatesOldKey(t *testing.T) {
	service := newTestService(t)

	bot, oldKey, err := service.Register("BTC-EUR", "k", "s")
	if err != nil {
		t.Fatal(err)
	}

	newKey, err := service.RotateWebhookKey(bot.BotID)
	if err != nil {
		t.Fatalf("RotateWebhookKey returned error: %v", err)
	}
	if newKey == oldKey {
		t.Fatal("rotation returned the same key")
	}

	if service.ValidateWebhookKey(bot.BotID, oldKey) {
		t.Error("old webhook key still valid after rotation")
	}
	if !service.ValidateWebhookKey(bot.BotID, newKey) {
		t.Error("new webhook key rejected")
	}
}

func TestDeactivationExcludesFromDefaultLookup(t *testing.T) {
	service := newTestService(t)

	bot, _, err := service.Register("BTC-EUR", "k", "s")
	if err != nil {
		t.Fatal(err)
	}

	if err := service.SetActive(bot.BotID, false); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}

	got, err := service.GetBot(bot.BotID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("deactivated bot returned by default lookup")
	}

	got, err = service.GetBotIncludingInactive(bot.BotID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("deactivated bot must stay addressable by ID")
	}
	if got.Active {
		t.Error("bot should be inactive")
	}

	// Reactivate and confirm it shows up again.
	if err := service.SetActive(bot.BotID, true); err != nil {
		t.Fatal(err)
	}
	got, err = service.GetBot(bot.BotID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("reactivated bot missing from default lookup")
	}
}

func TestSetActiveUnknownBot(t *testing.T) {
	service := newTestService(t)
	if err := service.SetActive("nosuch", false); err != ErrBotNotFound {
		t.Errorf("SetActive error = %v, want ErrBotNotFound", err)
	}
}
