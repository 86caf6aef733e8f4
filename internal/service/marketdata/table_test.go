package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
)

func TestTableReturnsFreshSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	table := NewTable(30 * time.Second).WithClock(func() time.Time { return now })
	table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 100, At: now.Add(-5 * time.Second)})

	snap, err := table.GetSnapshot(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Price != 100 {
		t.Fatalf("price = %.2f, want 100", snap.Price)
	}
}

func TestTableStaleSnapshotUnavailable(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	table := NewTable(30 * time.Second).WithClock(func() time.Time { return now })
	table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 100, At: now.Add(-2 * time.Minute)})

	_, err := table.GetSnapshot(context.Background(), "BTCUSDT")
	if !errors.Is(err, domrepo.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestTableUnknownAssetUnavailable(t *testing.T) {
	table := NewTable(30 * time.Second)
	_, err := table.GetSnapshot(context.Background(), "DOGEUSDT")
	if !errors.Is(err, domrepo.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestTableKeepsLatestUpdate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	table := NewTable(time.Minute).WithClock(func() time.Time { return now })
	table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 100, At: now.Add(-2 * time.Second)})
	table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 105, At: now.Add(-time.Second)})

	snap, err := table.GetSnapshot(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Price != 105 {
		t.Fatalf("price = %.2f, want latest 105", snap.Price)
	}
}
