package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SigForge/internal/domain/models"
	"SigForge/pkg/logger"
)

func activeSignal(dir models.Direction, created time.Time) *models.Signal {
	sig := &models.Signal{
		ID:            "sig-1",
		StrategyID:    "momentum-1",
		Asset:         "BTCUSDT",
		Direction:     dir,
		EntryPrice:    100,
		TakeProfitPct: 10,
		StopLossPct:   5,
		MaxHold:       4 * time.Hour,
		CreatedAt:     created,
		ExpiresAt:     created.Add(24 * time.Hour),
		Status:        models.StatusActive,
	}
	switch dir {
	case models.Bearish:
		sig.TargetPrice = 90
		sig.StopPrice = 105
	default:
		sig.TargetPrice = 110
		sig.StopPrice = 95
	}
	return sig
}

func TestEvaluateTargetHitWins(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.Bullish, created)

	status, pnl, done := Evaluate(sig, 112, created.Add(30*time.Minute))
	if !done {
		t.Fatal("expected a resolution")
	}
	if status != models.StatusWin {
		t.Fatalf("status = %s, want WIN", status)
	}
	if pnl != 12.0 {
		t.Fatalf("pnl = %.2f, want 12.00", pnl)
	}
}

func TestEvaluateStopHitLoses(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.Bullish, created)

	status, pnl, done := Evaluate(sig, 94, created.Add(time.Hour))
	if !done || status != models.StatusLoss {
		t.Fatalf("status = %s done = %v, want LOSS", status, done)
	}
	if pnl != -6.0 {
		t.Fatalf("pnl = %.2f, want -6.00", pnl)
	}
}

func TestEvaluateBearishPnlInverted(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.Bearish, created)

	status, pnl, done := Evaluate(sig, 88, created.Add(time.Hour))
	if !done || status != models.StatusWin {
		t.Fatalf("status = %s done = %v, want WIN", status, done)
	}
	if pnl != 12.0 {
		t.Fatalf("bearish pnl = %.2f, want 12.00", pnl)
	}

	status, pnl, done = Evaluate(activeSignal(models.Bearish, created), 106, created.Add(time.Hour))
	if !done || status != models.StatusLoss {
		t.Fatalf("status = %s done = %v, want LOSS", status, done)
	}
	if pnl != -6.0 {
		t.Fatalf("bearish stop pnl = %.2f, want -6.00", pnl)
	}
}

func TestEvaluateMaxHoldDecidesBySign(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	at := created.Add(4 * time.Hour)

	status, pnl, done := Evaluate(activeSignal(models.Bullish, created), 104, at)
	if !done || status != models.StatusWin {
		t.Fatalf("positive pnl at max hold: status = %s done = %v, want WIN", status, done)
	}
	if pnl != 4.0 {
		t.Fatalf("pnl = %.2f, want 4.00", pnl)
	}

	status, pnl, done = Evaluate(activeSignal(models.Bullish, created), 98, at)
	if !done || status != models.StatusLoss {
		t.Fatalf("negative pnl at max hold: status = %s done = %v, want LOSS", status, done)
	}
	if pnl != -2.0 {
		t.Fatalf("pnl = %.2f, want -2.00", pnl)
	}
}

func TestEvaluateHardExpiry(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.Bullish, created)
	sig.MaxHold = 48 * time.Hour

	status, _, done := Evaluate(sig, 101, created.Add(24*time.Hour))
	if !done || status != models.StatusExpired {
		t.Fatalf("status = %s done = %v, want EXPIRED", status, done)
	}
}

func TestEvaluateNoConditionStaysActive(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.Bullish, created)

	status, _, done := Evaluate(sig, 103, created.Add(time.Hour))
	if done {
		t.Fatalf("resolved to %s, want still active", status)
	}
}

func TestEvaluateRangeBound(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.RangeBound, created)
	sig.TakeProfitPct = 2
	sig.StopLossPct = 5

	// Breakout beyond the stop band loses regardless of direction.
	status, _, done := Evaluate(sig, 106, created.Add(time.Hour))
	if !done || status != models.StatusLoss {
		t.Fatalf("upside breakout: status = %s done = %v, want LOSS", status, done)
	}
	sig = activeSignal(models.RangeBound, created)
	sig.TakeProfitPct = 2
	sig.StopLossPct = 5
	status, _, done = Evaluate(sig, 94, created.Add(time.Hour))
	if !done || status != models.StatusLoss {
		t.Fatalf("downside breakout: status = %s done = %v, want LOSS", status, done)
	}

	// Inside the band at max hold wins with positive pnl.
	sig = activeSignal(models.RangeBound, created)
	sig.TakeProfitPct = 2
	sig.StopLossPct = 5
	status, pnl, done := Evaluate(sig, 101, created.Add(4*time.Hour))
	if !done || status != models.StatusWin {
		t.Fatalf("band hold: status = %s done = %v, want WIN", status, done)
	}
	if pnl != 1.0 {
		t.Fatalf("band hold pnl = %.2f, want 1.00", pnl)
	}
}

func TestSignalResolveIsOneWay(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sig := activeSignal(models.Bullish, created)

	if err := sig.Resolve(models.StatusWin, 112, 12, created.Add(time.Hour)); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := sig.Resolve(models.StatusLoss, 94, -6, created.Add(2*time.Hour)); err == nil {
		t.Fatal("second resolve must fail")
	}
	if sig.Status != models.StatusWin || sig.PnlPct != 12 {
		t.Fatalf("terminal state mutated: %s %.2f", sig.Status, sig.PnlPct)
	}
}

func TestResolveActiveRetiresAndReleases(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	gw.set("BTCUSDT", 112, nil)
	idx := newFakeIndex()
	sink := &fakeSink{}

	sig := activeSignal(models.Bullish, created)
	if ok, _ := idx.Claim(context.Background(), sig); !ok {
		t.Fatal("claim failed")
	}

	r := NewResolver(gw, idx, sink, newFakeMetrics(), logger.Nop()).
		WithClock(func() time.Time { return created.Add(30 * time.Minute) })
	stats, err := r.ResolveActive(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stats.Resolved != 1 {
		t.Fatalf("resolved = %d, want 1", stats.Resolved)
	}

	outcomes := sink.all()
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.Status != models.StatusWin || o.PnlPct != 12.0 || o.ResolvedPrice != 112 {
		t.Fatalf("outcome = %s pnl %.2f price %.2f, want WIN 12.00 112", o.Status, o.PnlPct, o.ResolvedPrice)
	}
	if n, _ := idx.Count(context.Background()); n != 0 {
		t.Fatalf("active count = %d after resolution, want 0", n)
	}
}

func TestResolveActiveKeepsSignalWithoutData(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	idx := newFakeIndex()
	sink := &fakeSink{}
	if ok, _ := idx.Claim(context.Background(), activeSignal(models.Bullish, created)); !ok {
		t.Fatal("claim failed")
	}

	r := NewResolver(newFakeGateway(), idx, sink, newFakeMetrics(), logger.Nop()).
		WithClock(func() time.Time { return created.Add(time.Hour) })
	stats, err := r.ResolveActive(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stats.Resolved != 0 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v, want 0 resolved 1 skipped", stats)
	}
	if n, _ := idx.Count(context.Background()); n != 1 {
		t.Fatalf("active count = %d, want 1", n)
	}
}

func TestResolveActiveExpiresWithoutData(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	idx := newFakeIndex()
	sink := &fakeSink{}
	sig := activeSignal(models.Bullish, created)
	sig.MaxHold = 48 * time.Hour
	if ok, _ := idx.Claim(context.Background(), sig); !ok {
		t.Fatal("claim failed")
	}

	r := NewResolver(newFakeGateway(), idx, sink, newFakeMetrics(), logger.Nop()).
		WithClock(func() time.Time { return created.Add(25 * time.Hour) })
	stats, err := r.ResolveActive(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stats.Resolved != 1 {
		t.Fatalf("resolved = %d, want 1", stats.Resolved)
	}
	outcomes := sink.all()
	if outcomes[0].Status != models.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", outcomes[0].Status)
	}
}

func TestResolveActiveWithoutDataNeverFabricatesWinOrLoss(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Max hold elapsed long ago, hard expiry passed too, and the asset
	// has no price. The only legitimate record is an expiry at zero pnl;
	// a max-hold win or loss from a stand-in price would be fabricated.
	for _, dir := range []models.Direction{models.Bullish, models.Bearish, models.RangeBound} {
		idx := newFakeIndex()
		sink := &fakeSink{}
		sig := activeSignal(dir, created)
		if dir == models.RangeBound {
			sig.TakeProfitPct = 2
			sig.StopLossPct = 5
		}
		if ok, _ := idx.Claim(ctx, sig); !ok {
			t.Fatalf("%s: claim failed", dir)
		}

		r := NewResolver(newFakeGateway(), idx, sink, newFakeMetrics(), logger.Nop()).
			WithClock(func() time.Time { return created.Add(25 * time.Hour) })
		stats, err := r.ResolveActive(ctx)
		if err != nil {
			t.Fatalf("%s: resolve: %v", dir, err)
		}
		if stats.Resolved != 1 {
			t.Fatalf("%s: resolved = %d, want 1", dir, stats.Resolved)
		}

		o := sink.all()[0]
		if o.Status != models.StatusExpired {
			t.Fatalf("%s: status = %s, want EXPIRED", dir, o.Status)
		}
		if o.PnlPct != 0 {
			t.Fatalf("%s: pnl = %.2f, want 0.00 without price data", dir, o.PnlPct)
		}
		if o.ResolvedPrice != o.EntryPrice {
			t.Fatalf("%s: resolved price = %.2f, want entry %.2f", dir, o.ResolvedPrice, o.EntryPrice)
		}
	}
}

type failingSink struct {
	fakeSink
	mu       sync.Mutex
	failures int
}

func (s *failingSink) Submit(ctx context.Context, o *models.Outcome) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errTestSinkDown
	}
	s.mu.Unlock()
	return s.fakeSink.Submit(ctx, o)
}

var errTestSinkDown = errors.New("sink down")

func TestResolveActiveRetriesAfterSinkFailure(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	gw := newFakeGateway()
	gw.set("BTCUSDT", 112, nil)
	idx := newFakeIndex()
	sink := &failingSink{failures: 1}

	sig := activeSignal(models.Bullish, created)
	if ok, _ := idx.Claim(ctx, sig); !ok {
		t.Fatal("claim failed")
	}

	r := NewResolver(gw, idx, sink, newFakeMetrics(), logger.Nop()).
		WithClock(func() time.Time { return created.Add(30 * time.Minute) })

	// The sink rejects the record: the signal must stay untouched in the
	// active set so the next tick can retry.
	stats, err := r.ResolveActive(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stats.Resolved != 0 {
		t.Fatalf("resolved = %d with sink down, want 0", stats.Resolved)
	}
	if sig.Status != models.StatusActive {
		t.Fatalf("signal status = %s after sink failure, want ACTIVE", sig.Status)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Fatalf("active count = %d, want 1", n)
	}

	// Sink recovered: exactly one record, pair freed.
	stats, err = r.ResolveActive(ctx)
	if err != nil {
		t.Fatalf("resolve after recovery: %v", err)
	}
	if stats.Resolved != 1 {
		t.Fatalf("resolved = %d after recovery, want 1", stats.Resolved)
	}
	if got := len(sink.all()); got != 1 {
		t.Fatalf("outcomes = %d, want exactly 1", got)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Fatalf("active count = %d after recovery, want 0", n)
	}
}
