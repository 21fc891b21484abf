// Package positions tracks the single open/closed position per bot and
// trading pair.
package positions

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

type Position struct {
	gorm.Model `json:"-"`
	BotID      string `gorm:"index:idx_bot_ticker" json:"bot_id"`
	Ticker     string `gorm:"index:idx_bot_ticker" json:"ticker"`
	Status     string `json:"status"`
}

// Tracker maintains position state. Callers must serialize access per
// (bot, ticker); the trading service holds a keyed lock around the
// read-then-write sequences here.
type Tracker struct {
	db *gorm.DB
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// GetOpenPosition returns the OPEN position for the pair, or nil when none
// exists.
func (t *Tracker) GetOpenPosition(botID, ticker string) (*Position, error) {
	var position Position
	err := t.db.Where("bot_id = ? AND ticker = ? AND status = ?", botID, ticker, StatusOpen).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// Open records a new OPEN position after a successful buy. It is idempotent:
// when an OPEN position already exists for the pair nothing is created, so
// duplicate buy signals never produce parallel open positions.
func (t *Tracker) Open(botID, ticker string) error {
	existing, err := t.GetOpenPosition(botID, ticker)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Debug().
			Str("bot_id", botID).
			Str("ticker", ticker).
			Msg("position already open, skipping")
		return nil
	}

	position := Position{
		BotID:  botID,
		Ticker: ticker,
		Status: StatusOpen,
	}
	return t.db.Create(&position).Error
}

// Close transitions the pair's OPEN position to CLOSED. A sell with no open
// position leaves the store untouched: only entries are tracked, an exit
// without a recorded entry creates no row.
func (t *Tracker) Close(botID, ticker string) error {
	existing, err := t.GetOpenPosition(botID, ticker)
	if err != nil {
		return err
	}
	if existing == nil {
		log.Debug().
			Str("bot_id", botID).
			Str("ticker", ticker).
			Msg("no open position to close")
		return nil
	}

	existing.Status = StatusClosed
	return t.db.Save(existing).Error
}
