package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradekit/autotrader/internal/bots"
	"github.com/tradekit/autotrader/internal/positions"
	"github.com/tradekit/autotrader/internal/trading"
)

// New initializes a GORM sqlite connection and migrates all schemas.
func New(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&bots.BotConfig{},
		&trading.Signal{},
		&trading.OrderRecord{},
		&positions.Position{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
