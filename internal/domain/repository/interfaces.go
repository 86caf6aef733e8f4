package repository

import (
	"context"
	"errors"

	"SigForge/internal/domain/models"
)

// ErrDataUnavailable is returned by the gateway when it has no fresh
// snapshot for an asset this tick. It is recovered locally: the pair is
// skipped and retried next tick, never escalated.
var ErrDataUnavailable = errors.New("market data unavailable")

// MarketGateway supplies price and indicator snapshots. The engine must
// tolerate ErrDataUnavailable without error propagation.
type MarketGateway interface {
	GetSnapshot(ctx context.Context, asset string) (*models.Snapshot, error)
}

// ActiveIndex holds at most one ACTIVE signal per (strategy, asset).
// Claim is an atomic check-and-insert: it stores the signal and returns
// true only when no active signal exists for the key.
type ActiveIndex interface {
	Claim(ctx context.Context, sig *models.Signal) (bool, error)
	List(ctx context.Context) ([]*models.Signal, error)
	Release(ctx context.Context, strategyID, asset string) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// OutcomeLog is the append-only history of resolved signals, the sole
// source of truth for performance statistics.
type OutcomeLog interface {
	Append(ctx context.Context, o *models.Outcome) error
	List(ctx context.Context) ([]*models.Outcome, error)
	Clear(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// AuditLog records promotion/elimination/override/reset events,
// append-only.
type AuditLog interface {
	Append(ctx context.Context, e *models.AuditEvent) error
	List(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	Clear(ctx context.Context) error
}

// SnapshotStore keeps the last computed evaluation and consensus
// results for the read endpoints.
type SnapshotStore interface {
	SaveEvaluation(ctx context.Context, s *models.EvaluationSnapshot) error
	LoadEvaluation(ctx context.Context) (*models.EvaluationSnapshot, error)
	SaveConsensus(ctx context.Context, r *models.ConsensusResult) error
	LoadConsensus(ctx context.Context) (*models.ConsensusResult, error)
	Clear(ctx context.Context) error
}

// Publisher streams resolved outcomes and audit events to downstream
// consumers.
type Publisher interface {
	PublishOutcome(ctx context.Context, o *models.Outcome) error
	PublishAudit(ctx context.Context, e *models.AuditEvent) error
	Close() error
}

// Metrics abstracts the Prometheus recorder for the engine.
type Metrics interface {
	RecordSignalGenerated(strategy, asset string)
	RecordResolution(outcome string)
	RecordSkippedPair(reason string)
	RecordError(kind string)
	RecordLastPrice(asset string, price float64)
	RecordActiveSignals(n int)
	RecordLatency(op string, seconds float64)
}
