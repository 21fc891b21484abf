package trading

import (
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) SaveSignal(signal *Signal) error {
	return d.db.Create(signal).Error
}

func (d *Database) SaveOrder(order *OrderRecord) error {
	return d.db.Create(order).Error
}

func (d *Database) ListOrdersByBot(botID string) ([]OrderRecord, error) {
	var orders []OrderRecord
	if err := d.db.Where("bot_id = ?", botID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) ListSignalsByBot(botID string) ([]Signal, error) {
	var signals []Signal
	if err := d.db.Where("bot_id = ?", botID).Order("created_at DESC").Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}
