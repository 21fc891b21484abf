package positions

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:positions_test_%d?mode=memory&cache=shared", testDBCounter)
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
	if err := db.AutoMigrate(&Position{}); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewTracker(db)
}

func countPositions(t *testing.T, tracker *Tracker, botID, ticker, status string) int64 {
	t.Helper()
	var count int64
	err := tracker.db.Model(&Position{}).
		Where("bot_id = ? AND ticker = ? AND status = ?", botID, ticker, status).
		Count(&count).Error
	if err != nil {
		t.Fatalf("counting positions: %v", err)
	}
	return count
}

func TestOpenCreatesSingleOpenPosition(t *testing.T) {
	tracker := newTestTracker(t)

	if err := tracker.Open("abc123", "BTCEUR"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	got, err := tracker.GetOpenPosition("abc123", "BTCEUR")
	if err != nil {
		t.Fatalf("GetOpenPosition returned error: %v", err)
	}
	if got == nil || got.Status != StatusOpen {
		t.Fatalf("expected an OPEN position, got %+v", got)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	tracker := newTestTracker(t)

	if err := tracker.Open("abc123", "BTCEUR"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Open("abc123", "BTCEUR"); err != nil {
		t.Fatal(err)
	}

	if n := countPositions(t, tracker, "abc123", "BTCEUR", StatusOpen); n != 1 {
		t.Errorf("open position count = %d, want exactly 1", n)
	}
}

func TestCloseTransitionsOpenToClosed(t *testing.T) {
	tracker := newTestTracker(t)

	if err := tracker.Open("abc123", "BTCEUR"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Close("abc123", "BTCEUR"); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	open, err := tracker.GetOpenPosition("abc123", "BTCEUR")
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Errorf("expected no open position after close, got %+v", open)
	}
	if n := countPositions(t, tracker, "abc123", "BTCEUR", StatusClosed); n != 1 {
		t.Errorf("closed position count = %d, want 1", n)
	}
}

func TestCloseWithoutOpenPositionIsNoOp(t *testing.T) {
	tracker := newTestTracker(t)

	if err := tracker.Close("abc123", "BTCEUR"); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	var count int64
	if err := tracker.db.Model(&Position{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("position count = %d, a sell without an entry must not create rows", count)
	}
}

func TestPositionsAreScopedPerPair(t *testing.T) {
	tracker := newTestTracker(t)

	if err := tracker.Open("abc123", "BTCEUR"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Open("abc123", "ETHEUR"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Open("xyz789", "BTCEUR"); err != nil {
		t.Fatal(err)
	}

	if err := tracker.Close("abc123", "BTCEUR"); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		botID, ticker string
		wantOpen      bool
	}{
		{"abc123", "BTCEUR", false},
		{"abc123", "ETHEUR", true},
		{"xyz789", "BTCEUR", true},
	} {
		got, err := tracker.GetOpenPosition(tc.botID, tc.ticker)
		if err != nil {
			t.Fatal(err)
		}
		if (got != nil) != tc.wantOpen {
			t.Errorf("GetOpenPosition(%s, %s) open=%v, want %v", tc.botID, tc.ticker, got != nil, tc.wantOpen)
		}
	}
}
