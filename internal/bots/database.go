package bots

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateBot(bot *BotConfig) error {
	return d.db.Create(bot).Error
}

// GetActiveBot returns the active configuration for a bot ID, or nil when no
// active configuration exists.
func (d *Database) GetActiveBot(botID string) (*BotConfig, error) {
	var bot BotConfig
	if err := d.db.Where("bot_id = ? AND active = ?", botID, true).First(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bot, nil
}

// GetBot returns the configuration for a bot ID regardless of active status.
func (d *Database) GetBot(botID string) (*BotConfig, error) {
	var bot BotConfig
	if err := d.db.Where("bot_id = ?", botID).First(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bot, nil
}

func (d *Database) ListBots(includeInactive bool) ([]BotConfig, error) {
	var bots []BotConfig
	query := d.db
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&bots).Error; err != nil {
		return nil, err
	}
	return bots, nil
}

func (d *Database) UpdateBot(bot *BotConfig) error {
	return d.db.Save(bot).Error
}
