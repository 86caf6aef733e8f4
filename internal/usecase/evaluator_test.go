package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"SigForge/internal/domain/models"
	"SigForge/internal/engine"
	"SigForge/internal/middleware"
	"SigForge/internal/repository"
	"SigForge/internal/service/marketdata"
	"SigForge/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignalGenerated(string, string) {}
func (nopMetrics) RecordResolution(string)              {}
func (nopMetrics) RecordSkippedPair(string)             {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLastPrice(string, float64)      {}
func (nopMetrics) RecordActiveSignals(int)              {}
func (nopMetrics) RecordLatency(string, float64)        {}

type harness struct {
	evaluator *Evaluator
	table     *marketdata.Table
	outcomes  *repository.MemoryOutcomeLog
	audit     *repository.MemoryAuditLog
	tracker   *engine.Tracker
	clock     *time.Time
}

func alwaysEnter(float64, map[string]float64) bool { return true }

func newHarness(t *testing.T, strategies []engine.StrategySpec, assets []string) *harness {
	t.Helper()

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	table := marketdata.NewTable(0)
	index := repository.NewMemoryActiveIndex()
	outcomes := repository.NewMemoryOutcomeLog()
	audit := repository.NewMemoryAuditLog()
	snapshots := repository.NewMemorySnapshotStore()
	tracker := engine.NewTracker()
	metrics := nopMetrics{}
	pub := repository.NopPublisher{}

	pipeline := middleware.NewOutcomePipeline(outcomes, pub, tracker, metrics)
	generator := engine.NewGenerator(table, index, metrics, 24*time.Hour).WithClock(now)
	resolver := engine.NewResolver(table, index, pipeline, metrics, logger.Nop()).WithClock(now)

	thresholds := engine.Thresholds{
		MinDecisionSample:   10,
		SurvivalWinRate:     45,
		DrawdownCap:         25,
		MinAvgPnl:           -0.5,
		MinSharpe:           0.1,
		MinPromotionSample:  30,
		PromotionWinRate:    60,
		PromotionPF:         1.5,
		PromotionSharpe:     1.0,
		ChampionshipWinRate: 55,
		ChampionshipTopN:    10,
		WinRateWeight:       0.5,
		ProfitFactorWeight:  0.3,
		SharpeWeight:        0.2,
	}

	h := &harness{
		table:    table,
		outcomes: outcomes,
		audit:    audit,
		tracker:  tracker,
		clock:    &clock,
	}
	h.evaluator = NewEvaluator(EvaluatorDeps{
		Strategies: strategies,
		Assets:     assets,
		Generator:  generator,
		Resolver:   resolver,
		Tracker:    tracker,
		Classifier: engine.NewClassifier(thresholds),
		Analyzer:   engine.NewAnalyzer(0.7, 5),
		Outcomes:   outcomes,
		Audit:      audit,
		Snapshots:  snapshots,
		Index:      index,
		Publisher:  pub,
		Metrics:    metrics,
		Logger:     logger.Nop(),
		Workers:    4,
	}).WithClock(now)

	// generator/resolver clocks chase the harness clock
	generator.WithClock(func() time.Time { return clock })
	resolver.WithClock(func() time.Time { return clock })
	h.evaluator.WithClock(func() time.Time { return clock })
	return h
}

func momentumSpec() engine.StrategySpec {
	return engine.StrategySpec{
		Strategy: models.Strategy{
			ID:            "momentum-1",
			Name:          "Momentum Long",
			Direction:     models.Bullish,
			TakeProfitPct: 10,
			StopLossPct:   5,
			MaxHold:       4 * time.Hour,
		},
		Entry: alwaysEnter,
	}
}

func TestGenerationAndResolutionRoundTrip(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	h.table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 100, At: *h.clock})
	stats := h.evaluator.GenerationTick(ctx)
	if stats.Generated != 1 || stats.Errors != 0 {
		t.Fatalf("generation stats = %+v, want 1 generated", stats)
	}

	// Second tick while the signal is active produces nothing new.
	stats = h.evaluator.GenerationTick(ctx)
	if stats.Generated != 0 {
		t.Fatalf("duplicate generation: %+v", stats)
	}

	*h.clock = h.clock.Add(30 * time.Minute)
	h.table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 112, At: *h.clock})
	rstats, err := h.evaluator.ResolutionTick(ctx)
	if err != nil {
		t.Fatalf("resolution: %v", err)
	}
	if rstats.Resolved != 1 {
		t.Fatalf("resolution stats = %+v, want 1 resolved", rstats)
	}

	outcomes, _ := h.outcomes.List(ctx)
	if len(outcomes) != 1 || outcomes[0].Status != models.StatusWin || outcomes[0].PnlPct != 12.0 {
		t.Fatalf("outcome = %+v, want WIN at +12.00", outcomes[0])
	}

	// The pair is free again after resolution.
	stats = h.evaluator.GenerationTick(ctx)
	if stats.Generated != 1 {
		t.Fatalf("post-resolution generation: %+v", stats)
	}
}

func TestGenerationTickSkipsAssetsWithoutData(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT", "ETHUSDT"})
	ctx := context.Background()

	h.table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 100, At: *h.clock})
	stats := h.evaluator.GenerationTick(ctx)
	if stats.Pairs != 2 || stats.Generated != 1 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want 2 pairs, 1 generated, 0 errors", stats)
	}
}

func feedOutcomes(t *testing.T, h *harness, strategy string, wins, losses int, winPnl, lossPnl float64) {
	t.Helper()
	for i := 0; i < wins; i++ {
		h.tracker.Add(&models.Outcome{
			SignalID: "w", StrategyID: strategy, Status: models.StatusWin, PnlPct: winPnl,
		})
	}
	for i := 0; i < losses; i++ {
		h.tracker.Add(&models.Outcome{
			SignalID: "l", StrategyID: strategy, Status: models.StatusLoss, PnlPct: lossPnl,
		})
	}
}

func TestEvaluateCycleClassifiesAndAudits(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	feedOutcomes(t, h, "momentum-1", 8, 14, 2.0, -2.0)

	snap, err := h.evaluator.EvaluateCycle(ctx, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if snap.Eliminated != 1 || len(snap.Reports) != 1 {
		t.Fatalf("snapshot = %+v, want one eliminated report", snap)
	}
	report := snap.Reports[0]
	if report.Verdict != models.VerdictEliminated {
		t.Fatalf("verdict = %s, want ELIMINATED", report.Verdict)
	}
	if report.Stats.WinRate != 36.36 {
		t.Fatalf("win rate = %.2f, want 36.36", report.Stats.WinRate)
	}

	events, _ := h.audit.List(ctx, 10)
	if len(events) != 1 || events[0].Type != models.AuditElimination {
		t.Fatalf("audit = %+v, want one elimination event", events)
	}

	// A second cycle on an unchanged log yields the identical verdict
	// and a second audit occurrence.
	snap2, _ := h.evaluator.EvaluateCycle(ctx, false)
	if snap2.Reports[0].Verdict != snap.Reports[0].Verdict {
		t.Fatal("verdict not stable across cycles")
	}
	events, _ = h.audit.List(ctx, 10)
	if len(events) != 2 {
		t.Fatalf("audit occurrences = %d, want 2", len(events))
	}

	// Read endpoint serves the saved snapshot.
	latest, err := h.evaluator.LatestEvaluation(ctx)
	if err != nil || latest == nil || latest.Eliminated != 1 {
		t.Fatalf("latest = %+v err=%v", latest, err)
	}
}

func TestEvaluateCycleVerifyDetectsDrift(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	// Log and tracker agree at first.
	for i := 0; i < 12; i++ {
		o := &models.Outcome{
			SignalID: "s", StrategyID: "momentum-1", Asset: "BTCUSDT",
			Direction: models.Bullish, Status: models.StatusWin, PnlPct: 1.0,
			CreatedAt: *h.clock, ResolvedAt: *h.clock,
		}
		_ = h.outcomes.Append(ctx, o)
		h.tracker.Add(o)
	}
	snap, _ := h.evaluator.EvaluateCycle(ctx, true)
	if len(snap.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none when in sync", snap.Warnings)
	}

	// Poison the tracker, then verify must catch and repair it.
	h.tracker.Add(&models.Outcome{SignalID: "x", StrategyID: "momentum-1", Status: models.StatusLoss, PnlPct: -50})
	snap, _ = h.evaluator.EvaluateCycle(ctx, true)
	if len(snap.Warnings) == 0 {
		t.Fatal("expected drift warning")
	}
	if got := h.tracker.Stats("momentum-1").Trades; got != 12 {
		t.Fatalf("trades after rebuild = %d, want 12", got)
	}
}

func TestWarmupSeedsTrackerFromPersistedLog(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	// Outcomes on disk that the tracker never saw, as after a restart.
	for i := 0; i < 5; i++ {
		_ = h.outcomes.Append(ctx, &models.Outcome{
			SignalID: fmt.Sprintf("s%d", i), StrategyID: "momentum-1", Asset: "BTCUSDT",
			Direction: models.Bullish, Status: models.StatusWin, PnlPct: 2.0,
			CreatedAt: *h.clock, ResolvedAt: *h.clock,
		})
	}
	if got := h.tracker.Stats("momentum-1").Trades; got != 0 {
		t.Fatalf("trades before warmup = %d, want 0", got)
	}

	if err := h.evaluator.Warmup(ctx); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if got := h.tracker.Stats("momentum-1").Trades; got != 5 {
		t.Fatalf("trades after warmup = %d, want 5", got)
	}

	// The first cycle after warmup already sees the history.
	for i := 5; i < 12; i++ {
		o := &models.Outcome{
			SignalID: fmt.Sprintf("s%d", i), StrategyID: "momentum-1", Asset: "BTCUSDT",
			Direction: models.Bullish, Status: models.StatusWin, PnlPct: 2.0,
			CreatedAt: *h.clock, ResolvedAt: *h.clock,
		}
		_ = h.outcomes.Append(ctx, o)
		h.tracker.Add(o)
	}
	snap, err := h.evaluator.EvaluateCycle(ctx, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(snap.Reports) != 1 || snap.Reports[0].Stats.Trades != 12 {
		t.Fatalf("snapshot = %+v, want 12 trades counted", snap)
	}
}

func TestOverrideIsAdvisory(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	feedOutcomes(t, h, "momentum-1", 8, 14, 2.0, -2.0)

	if _, err := h.evaluator.Override(ctx, "momentum-1", models.VerdictPromoted, "board decision"); err != nil {
		t.Fatalf("override: %v", err)
	}
	if _, err := h.evaluator.Override(ctx, "ghost", models.VerdictPromoted, "nope"); err == nil {
		t.Fatal("override of unknown strategy must fail")
	}

	snap, _ := h.evaluator.EvaluateCycle(ctx, false)
	report := snap.Reports[0]
	if report.Verdict != models.VerdictEliminated {
		t.Fatalf("computed verdict changed to %s, override must stay advisory", report.Verdict)
	}
	if report.Override == nil || report.Override.Verdict != models.VerdictPromoted {
		t.Fatalf("override annotation missing: %+v", report.Override)
	}

	events, _ := h.audit.List(ctx, 10)
	foundOverride := false
	for _, e := range events {
		if e.Type == models.AuditOverride {
			foundOverride = true
		}
	}
	if !foundOverride {
		t.Fatal("override missing from audit trail")
	}
}

func TestResetClearsEverything(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	h.table.Update(&models.Snapshot{Asset: "BTCUSDT", Price: 100, At: *h.clock})
	h.evaluator.GenerationTick(ctx)
	feedOutcomes(t, h, "momentum-1", 8, 14, 2.0, -2.0)
	_, _ = h.evaluator.EvaluateCycle(ctx, false)

	if err := h.evaluator.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := h.evaluator.ActiveCount(ctx); n != 0 {
		t.Fatalf("active = %d after reset, want 0", n)
	}
	if got := h.tracker.Stats("momentum-1").Trades; got != 0 {
		t.Fatalf("trades = %d after reset, want 0", got)
	}
	latest, _ := h.evaluator.LatestEvaluation(ctx)
	if latest != nil {
		t.Fatal("evaluation snapshot must be cleared")
	}
	events, _ := h.audit.List(ctx, 10)
	if len(events) != 1 || events[0].Type != models.AuditReset {
		t.Fatalf("audit after reset = %+v, want only the reset marker", events)
	}
}

func TestRunConsensusStoresResult(t *testing.T) {
	h := newHarness(t, []engine.StrategySpec{momentumSpec()}, []string{"BTCUSDT"})
	ctx := context.Background()

	res, err := h.evaluator.RunConsensus(ctx, []models.Prediction{
		{Algorithm: "a1", Asset: "BTCUSDT", Signal: models.SignalBuy},
		{Algorithm: "a2", Asset: "BTCUSDT", Signal: models.SignalBuy},
		{Algorithm: "a3", Asset: "BTCUSDT", Signal: models.SignalSell},
		{Algorithm: "a4", Asset: "BTCUSDT", Signal: models.SignalNeutral},
	})
	if err != nil {
		t.Fatalf("consensus: %v", err)
	}
	if res.Assets[0].Majority != models.SignalBuy || res.Assets[0].Strength != 50.0 {
		t.Fatalf("consensus = %+v, want BUY at 50%%", res.Assets[0])
	}

	latest, err := h.evaluator.LatestConsensus(ctx)
	if err != nil || latest == nil {
		t.Fatalf("latest consensus: %+v err=%v", latest, err)
	}

	if _, err := h.evaluator.RunConsensus(ctx, nil); err == nil {
		t.Fatal("empty round must fail")
	}
}
