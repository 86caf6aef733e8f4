package engine

import (
	"context"
	"sync"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
)

type fakeGateway struct {
	mu    sync.Mutex
	snaps map[string]*models.Snapshot
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{snaps: make(map[string]*models.Snapshot)}
}

func (g *fakeGateway) set(asset string, price float64, indicators map[string]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snaps[asset] = &models.Snapshot{Asset: asset, Price: price, Indicators: indicators}
}

func (g *fakeGateway) GetSnapshot(_ context.Context, asset string) (*models.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap, ok := g.snaps[asset]
	if !ok {
		return nil, domrepo.ErrDataUnavailable
	}
	return snap, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	signals map[string]*models.Signal
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{signals: make(map[string]*models.Signal)}
}

func indexKey(strategyID, asset string) string { return strategyID + "|" + asset }

func (f *fakeIndex) Claim(_ context.Context, sig *models.Signal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := indexKey(sig.StrategyID, sig.Asset)
	if _, exists := f.signals[key]; exists {
		return false, nil
	}
	f.signals[key] = sig
	return true, nil
}

func (f *fakeIndex) List(_ context.Context) ([]*models.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Signal, 0, len(f.signals))
	for _, s := range f.signals {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeIndex) Release(_ context.Context, strategyID, asset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.signals, indexKey(strategyID, asset))
	return nil
}

func (f *fakeIndex) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signals), nil
}

func (f *fakeIndex) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = make(map[string]*models.Signal)
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	skipped map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{skipped: make(map[string]int)}
}

func (m *fakeMetrics) RecordSignalGenerated(_, _ string) {}
func (m *fakeMetrics) RecordResolution(_ string)        {}
func (m *fakeMetrics) RecordSkippedPair(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}
func (m *fakeMetrics) RecordError(_ string)              {}
func (m *fakeMetrics) RecordLastPrice(_ string, _ float64) {}
func (m *fakeMetrics) RecordActiveSignals(_ int)         {}
func (m *fakeMetrics) RecordLatency(_ string, _ float64) {}

type fakeSink struct {
	mu       sync.Mutex
	outcomes []*models.Outcome
}

func (s *fakeSink) Submit(_ context.Context, o *models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *fakeSink) all() []*models.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}
