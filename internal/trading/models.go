package trading

import (
	"time"

	"gorm.io/gorm"
)

// Signal is the immutable audit record of an inbound trading instruction.
// It is persisted before any exchange call, so a crash mid-execution still
// leaves evidence of intent.
type Signal struct {
	gorm.Model `json:"-"`
	BotID      string    `gorm:"index" json:"bot_id"`
	Ticker     string    `json:"ticker"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
	DryRun     bool      `json:"dry_run"`
}

// OrderRecord is the outcome of attempting to execute a signal: exactly one
// per processed signal, never mutated afterwards in the normal flow.
type OrderRecord struct {
	gorm.Model      `json:"-"`
	BotID           string    `gorm:"index" json:"bot_id"`
	Ticker          string    `json:"ticker"`
	ExchangeOrderID string    `json:"exchange_order_id"`
	Status          string    `json:"status"` // COMPLETED or FAILED
	ErrorMessage    string    `json:"error_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)
