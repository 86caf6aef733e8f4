package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
	"SigForge/pkg/logger"
	"SigForge/pkg/util"
)

// OutcomeSink receives finished outcome records. The pipeline in
// internal/middleware implements it; tests use the log directly.
type OutcomeSink interface {
	Submit(ctx context.Context, o *models.Outcome) error
}

// Resolver walks the active set each tick and retires every signal
// whose exit condition is met.
type Resolver struct {
	gateway domrepo.MarketGateway
	index   domrepo.ActiveIndex
	sink    OutcomeSink
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// ResolutionStats summarizes one resolution pass.
type ResolutionStats struct {
	Checked  int
	Resolved int
	Skipped  int
}

func NewResolver(gateway domrepo.MarketGateway, index domrepo.ActiveIndex, sink OutcomeSink, metrics domrepo.Metrics, log *logger.Logger) *Resolver {
	return &Resolver{
		gateway: gateway,
		index:   index,
		sink:    sink,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ResolveActive fetches one snapshot per distinct asset in the active
// set and applies the exit rules to every active signal. Signals whose
// asset has no fresh data stay active and are retried next tick.
func (r *Resolver) ResolveActive(ctx context.Context) (ResolutionStats, error) {
	var stats ResolutionStats

	active, err := r.index.List(ctx)
	if err != nil {
		return stats, err
	}
	stats.Checked = len(active)
	if len(active) == 0 {
		return stats, nil
	}

	prices := make(map[string]float64)
	for _, sig := range active {
		if _, ok := prices[sig.Asset]; ok {
			continue
		}
		snap, err := r.gateway.GetSnapshot(ctx, sig.Asset)
		if err != nil {
			if errors.Is(err, domrepo.ErrDataUnavailable) {
				continue
			}
			return stats, err
		}
		prices[sig.Asset] = snap.Price
	}

	now := r.now()
	for _, sig := range active {
		price, ok := prices[sig.Asset]
		if !ok {
			// Without a live price no exit rule can fire. Expiry is the
			// one exception: the record carries the entry price and a
			// zero pnl, never a synthesized win or loss.
			if !now.Before(sig.ExpiresAt) {
				if err := r.retire(ctx, sig, models.StatusExpired, sig.EntryPrice, 0, now); err != nil {
					r.metrics.RecordError("resolution")
					r.log.Error("retire signal failed", logger.String("signal", sig.ID), logger.Error(err))
					continue
				}
				stats.Resolved++
			} else {
				stats.Skipped++
			}
			continue
		}

		status, pnl, done := Evaluate(sig, price, now)
		if !done {
			continue
		}
		if err := r.retire(ctx, sig, status, price, pnl, now); err != nil {
			r.metrics.RecordError("resolution")
			r.log.Error("retire signal failed", logger.String("signal", sig.ID), logger.Error(err))
			continue
		}
		stats.Resolved++
	}

	if n, err := r.index.Count(ctx); err == nil {
		r.metrics.RecordActiveSignals(n)
	}
	return stats, nil
}

// retire hands the outcome to the sink before touching the signal. A
// sink failure leaves the signal untouched in the active set so the
// next tick retries the whole resolution; only an accepted record
// flips the signal state and frees the pair.
func (r *Resolver) retire(ctx context.Context, sig *models.Signal, status models.SignalStatus, price, pnl float64, now time.Time) error {
	outcome := &models.Outcome{
		SignalID:      sig.ID,
		StrategyID:    sig.StrategyID,
		Asset:         sig.Asset,
		Direction:     sig.Direction,
		Status:        status,
		EntryPrice:    sig.EntryPrice,
		ResolvedPrice: price,
		PnlPct:        pnl,
		CreatedAt:     sig.CreatedAt,
		ResolvedAt:    now,
	}
	if err := r.sink.Submit(ctx, outcome); err != nil {
		return err
	}
	if err := sig.Resolve(status, price, pnl, now); err != nil {
		r.log.Warn("signal state transition", logger.String("signal", sig.ID), logger.Error(err))
	}
	if err := r.index.Release(ctx, sig.StrategyID, sig.Asset); err != nil {
		return err
	}
	r.metrics.RecordResolution(string(status))
	return nil
}

// Evaluate applies the exit rules to one active signal at the given
// price and time. Checks run in strict order: target, stop, max hold,
// hard expiry. It returns done=false when no condition is met yet.
func Evaluate(sig *models.Signal, price float64, now time.Time) (models.SignalStatus, float64, bool) {
	pnl := Pnl(sig.Direction, sig.EntryPrice, price, sig.TakeProfitPct)

	if targetReached(sig, price) {
		return models.StatusWin, pnl, true
	}
	if stopReached(sig, price) {
		return models.StatusLoss, pnl, true
	}
	if now.Sub(sig.CreatedAt) >= sig.MaxHold {
		if pnl > 0 {
			return models.StatusWin, pnl, true
		}
		return models.StatusLoss, pnl, true
	}
	if !now.Before(sig.ExpiresAt) {
		return models.StatusExpired, pnl, true
	}
	return sig.Status, 0, false
}

// Pnl is the direction-adjusted profit percentage. Bullish gains when
// price rises, bearish when it falls. Range-bound measures how far
// inside the take-profit band the price sits: positive while the
// deviation from entry is under the band width, negative once outside.
func Pnl(dir models.Direction, entry, current, tpPct float64) float64 {
	if entry == 0 {
		return 0
	}
	switch dir {
	case models.Bearish:
		return util.Round2((entry - current) / entry * 100)
	case models.RangeBound:
		dev := math.Abs(current-entry) / entry * 100
		return util.Round2(tpPct - dev)
	default:
		return util.Round2((current - entry) / entry * 100)
	}
}

func targetReached(sig *models.Signal, price float64) bool {
	switch sig.Direction {
	case models.Bearish:
		return price <= sig.TargetPrice
	case models.RangeBound:
		// No favorable price event for a range hold; wins come from the
		// max-hold check with the price still inside the band.
		return false
	default:
		return price >= sig.TargetPrice
	}
}

func stopReached(sig *models.Signal, price float64) bool {
	switch sig.Direction {
	case models.Bearish:
		return price >= sig.StopPrice
	case models.RangeBound:
		if sig.EntryPrice == 0 {
			return false
		}
		dev := math.Abs(price-sig.EntryPrice) / sig.EntryPrice * 100
		return dev >= sig.StopLossPct
	default:
		return price <= sig.StopPrice
	}
}
