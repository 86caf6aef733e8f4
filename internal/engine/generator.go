package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
)

// Generator decides, per (strategy, asset) pair, whether to emit a new
// signal from a fresh data snapshot.
type Generator struct {
	gateway  domrepo.MarketGateway
	index    domrepo.ActiveIndex
	metrics  domrepo.Metrics
	validity time.Duration
	now      func() time.Time
	newID    func() string
}

// NewGenerator creates a Generator. validity is the hard ceiling after
// which an unresolved signal is forced to EXPIRED.
func NewGenerator(gateway domrepo.MarketGateway, index domrepo.ActiveIndex, metrics domrepo.Metrics, validity time.Duration) *Generator {
	return &Generator{
		gateway:  gateway,
		index:    index,
		metrics:  metrics,
		validity: validity,
		now:      time.Now,
		newID:    defaultID,
	}
}

// WithClock overrides the time source, for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithIDFunc overrides signal ID generation, for tests.
func (g *Generator) WithIDFunc(fn func() string) *Generator {
	g.newID = fn
	return g
}

// Generate evaluates one (strategy, asset) pair against a fresh
// snapshot. It returns (nil, nil) when the pair is skipped: asset out
// of scope, no data this tick, rule not triggered, or an active
// duplicate already claimed. A missing snapshot is not an error.
func (g *Generator) Generate(ctx context.Context, strat StrategySpec, asset string) (*models.Signal, error) {
	if !strat.CoversAsset(asset) {
		g.metrics.RecordSkippedPair("out_of_scope")
		return nil, nil
	}

	snap, err := g.gateway.GetSnapshot(ctx, asset)
	if err != nil {
		if errors.Is(err, domrepo.ErrDataUnavailable) {
			g.metrics.RecordSkippedPair("no_data")
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot %s: %w", asset, err)
	}
	g.metrics.RecordLastPrice(asset, snap.Price)

	if strat.Entry == nil || !strat.Entry(snap.Price, snap.Indicators) {
		return nil, nil
	}

	now := g.now()
	sig := g.buildSignal(strat, asset, snap, now)

	// Atomic check-and-insert on the (strategy, asset) key. A false
	// claim means an active duplicate exists; the pair is skipped.
	claimed, err := g.index.Claim(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("claim active slot %s/%s: %w", strat.ID, asset, err)
	}
	if !claimed {
		g.metrics.RecordSkippedPair("active_duplicate")
		return nil, nil
	}

	g.metrics.RecordSignalGenerated(strat.ID, asset)
	return sig, nil
}

func (g *Generator) buildSignal(strat StrategySpec, asset string, snap *models.Snapshot, now time.Time) *models.Signal {
	entry := snap.Price
	var target, stop float64
	switch strat.Direction {
	case models.Bearish:
		target = entry * (1 - strat.TakeProfitPct/100)
		stop = entry * (1 + strat.StopLossPct/100)
	default:
		// Bullish, and the band edges for range-bound: target marks the
		// upper edge of the hold band, stop the lower breakout edge.
		target = entry * (1 + strat.TakeProfitPct/100)
		stop = entry * (1 - strat.StopLossPct/100)
	}

	return &models.Signal{
		ID:            g.newID(),
		StrategyID:    strat.ID,
		Asset:         asset,
		Direction:     strat.Direction,
		EntryPrice:    entry,
		TargetPrice:   target,
		StopPrice:     stop,
		TakeProfitPct: strat.TakeProfitPct,
		StopLossPct:   strat.StopLossPct,
		MaxHold:       strat.MaxHold,
		CreatedAt:     now,
		ExpiresAt:     now.Add(g.validity),
		Status:        models.StatusActive,
		Indicators:    snap.CloneIndicators(),
	}
}

func defaultID() string {
	return fmt.Sprintf("sig-%d", time.Now().UnixNano())
}
