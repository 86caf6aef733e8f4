package repository

import (
	"context"
	"sync"

	"SigForge/internal/domain/models"
)

// In-memory backend. Selected with backend "memory" for development and
// tests; the process loses state on restart.

type MemoryActiveIndex struct {
	mu      sync.Mutex
	signals map[string]*models.Signal
}

func NewMemoryActiveIndex() *MemoryActiveIndex {
	return &MemoryActiveIndex{signals: make(map[string]*models.Signal)}
}

func pairKey(strategyID, asset string) string { return strategyID + "|" + asset }

func (m *MemoryActiveIndex) Claim(_ context.Context, sig *models.Signal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(sig.StrategyID, sig.Asset)
	if _, exists := m.signals[key]; exists {
		return false, nil
	}
	m.signals[key] = sig
	return true, nil
}

func (m *MemoryActiveIndex) List(_ context.Context) ([]*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Signal, 0, len(m.signals))
	for _, s := range m.signals {
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryActiveIndex) Release(_ context.Context, strategyID, asset string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signals, pairKey(strategyID, asset))
	return nil
}

func (m *MemoryActiveIndex) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signals), nil
}

func (m *MemoryActiveIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = make(map[string]*models.Signal)
	return nil
}

type MemoryOutcomeLog struct {
	mu       sync.Mutex
	outcomes []*models.Outcome
}

func NewMemoryOutcomeLog() *MemoryOutcomeLog {
	return &MemoryOutcomeLog{}
}

func (m *MemoryOutcomeLog) Append(_ context.Context, o *models.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.outcomes = append(m.outcomes, &cp)
	return nil
}

func (m *MemoryOutcomeLog) List(_ context.Context) ([]*models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out, nil
}

func (m *MemoryOutcomeLog) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = nil
	return nil
}

func (m *MemoryOutcomeLog) Health(_ context.Context) error { return nil }
func (m *MemoryOutcomeLog) Close() error                   { return nil }

type MemoryAuditLog struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (m *MemoryAuditLog) Append(_ context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

// List returns the newest events first, up to limit.
func (m *MemoryAuditLog) List(_ context.Context, limit int) ([]*models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *MemoryAuditLog) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

type MemorySnapshotStore struct {
	mu         sync.Mutex
	evaluation *models.EvaluationSnapshot
	consensus  *models.ConsensusResult
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (m *MemorySnapshotStore) SaveEvaluation(_ context.Context, s *models.EvaluationSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluation = s
	return nil
}

func (m *MemorySnapshotStore) LoadEvaluation(_ context.Context) (*models.EvaluationSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluation, nil
}

func (m *MemorySnapshotStore) SaveConsensus(_ context.Context, r *models.ConsensusResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consensus = r
	return nil
}

func (m *MemorySnapshotStore) LoadConsensus(_ context.Context) (*models.ConsensusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consensus, nil
}

func (m *MemorySnapshotStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluation = nil
	m.consensus = nil
	return nil
}
