package marketdata

import (
	"context"
	"sync"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
)

// Table is the in-memory snapshot store behind the MarketGateway
// interface. The stream writes, the engine reads. A snapshot older
// than the staleness cutoff counts as unavailable.
type Table struct {
	mu        sync.RWMutex
	snaps     map[string]*models.Snapshot
	staleness time.Duration
	now       func() time.Time
}

func NewTable(staleness time.Duration) *Table {
	return &Table{
		snaps:     make(map[string]*models.Snapshot),
		staleness: staleness,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (t *Table) WithClock(now func() time.Time) *Table {
	t.now = now
	return t
}

// Update stores the latest snapshot for an asset.
func (t *Table) Update(snap *models.Snapshot) {
	if snap == nil || snap.Asset == "" {
		return
	}
	t.mu.Lock()
	t.snaps[snap.Asset] = snap
	t.mu.Unlock()
}

// GetSnapshot returns the current snapshot for asset, or
// ErrDataUnavailable when none exists or the last one is stale.
func (t *Table) GetSnapshot(_ context.Context, asset string) (*models.Snapshot, error) {
	t.mu.RLock()
	snap, ok := t.snaps[asset]
	t.mu.RUnlock()
	if !ok {
		return nil, domrepo.ErrDataUnavailable
	}
	if t.staleness > 0 && t.now().Sub(snap.At) > t.staleness {
		return nil, domrepo.ErrDataUnavailable
	}
	return snap, nil
}

// Assets lists assets with a current snapshot, fresh or stale.
func (t *Table) Assets() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.snaps))
	for a := range t.snaps {
		out = append(out, a)
	}
	return out
}
