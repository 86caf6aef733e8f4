package engine

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"SigForge/internal/domain/models"
)

func outcome(strategy string, status models.SignalStatus, pnl float64, seq int) *models.Outcome {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Hour)
	return &models.Outcome{
		SignalID:   fmt.Sprintf("sig-%s-%d", strategy, seq),
		StrategyID: strategy,
		Asset:      "BTCUSDT",
		Direction:  models.Bullish,
		Status:     status,
		EntryPrice: 100,
		PnlPct:     pnl,
		CreatedAt:  created,
		ResolvedAt: created.Add(time.Hour),
	}
}

func losingRecord() []*models.Outcome {
	var out []*models.Outcome
	for i := 0; i < 8; i++ {
		out = append(out, outcome("weak", models.StatusWin, 2.0, i))
	}
	for i := 8; i < 22; i++ {
		out = append(out, outcome("weak", models.StatusLoss, -2.0, i))
	}
	return out
}

func TestAggregateLosingStrategy(t *testing.T) {
	st, skipped := Aggregate("weak", losingRecord())
	if skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}
	if st.Trades != 22 || st.Wins != 8 || st.Losses != 14 {
		t.Fatalf("counts = %d/%d/%d, want 22/8/14", st.Trades, st.Wins, st.Losses)
	}
	if st.WinRate != 36.36 {
		t.Fatalf("win rate = %.2f, want 36.36", st.WinRate)
	}
	if st.ProfitFactor != 0.57 {
		t.Fatalf("profit factor = %.2f, want 0.57", st.ProfitFactor)
	}
	if st.TotalPnlPct != -12.0 {
		t.Fatalf("total pnl = %.2f, want -12.00", st.TotalPnlPct)
	}
	if st.AvgPnlPct != -0.55 {
		t.Fatalf("avg pnl = %.2f, want -0.55", st.AvgPnlPct)
	}
	if st.Expectancy != -0.55 {
		t.Fatalf("expectancy = %.2f, want -0.55", st.Expectancy)
	}
}

func TestAggregateProfitFactorCappedWithoutLosses(t *testing.T) {
	outcomes := []*models.Outcome{
		outcome("gold", models.StatusWin, 3.0, 0),
		outcome("gold", models.StatusWin, 2.0, 1),
		outcome("gold", models.StatusWin, 4.0, 2),
	}
	st, _ := Aggregate("gold", outcomes)
	if st.ProfitFactor != 999 {
		t.Fatalf("profit factor = %.2f, want capped 999", st.ProfitFactor)
	}
	if math.IsNaN(st.ProfitFactor) || math.IsInf(st.ProfitFactor, 0) {
		t.Fatal("profit factor must stay finite")
	}
}

func TestAggregateSharpeNeedsTwoTrades(t *testing.T) {
	st, _ := Aggregate("solo", []*models.Outcome{outcome("solo", models.StatusWin, 5.0, 0)})
	if st.Sharpe != 0 {
		t.Fatalf("sharpe = %.2f with one trade, want 0", st.Sharpe)
	}
}

func TestAggregateMaxDrawdownOnCumulativePnl(t *testing.T) {
	outcomes := []*models.Outcome{
		outcome("dd", models.StatusWin, 5.0, 0),
		outcome("dd", models.StatusLoss, -3.0, 1),
		outcome("dd", models.StatusLoss, -4.0, 2),
		outcome("dd", models.StatusWin, 2.0, 3),
	}
	st, _ := Aggregate("dd", outcomes)
	if st.MaxDrawdown != 7.0 {
		t.Fatalf("max drawdown = %.2f, want 7.00", st.MaxDrawdown)
	}
}

func TestAggregateSkipsMalformedRecords(t *testing.T) {
	bad := outcome("weak", models.StatusActive, 1.0, 99) // non-terminal
	noID := outcome("weak", models.StatusWin, 1.0, 100)
	noID.SignalID = ""
	outcomes := append(losingRecord(), bad, noID)

	st, skipped := Aggregate("weak", outcomes)
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
	if st.Trades != 22 {
		t.Fatalf("trades = %d, want 22 with malformed records ignored", st.Trades)
	}
}

func TestAggregateWinRateCountsExpiredTrades(t *testing.T) {
	var outcomes []*models.Outcome
	for i := 0; i < 6; i++ {
		outcomes = append(outcomes, outcome("exp", models.StatusWin, 2.0, i))
	}
	outcomes = append(outcomes,
		outcome("exp", models.StatusLoss, -1.0, 6),
		outcome("exp", models.StatusLoss, -1.0, 7),
		outcome("exp", models.StatusExpired, 0, 8),
		outcome("exp", models.StatusExpired, 0, 9),
	)

	st, _ := Aggregate("exp", outcomes)
	if st.Trades != 10 || st.Wins != 6 || st.Losses != 2 {
		t.Fatalf("counts = %d/%d/%d, want 10/6/2", st.Trades, st.Wins, st.Losses)
	}
	// Expiries are trades that failed to win: 6/10, not 6/8.
	if st.WinRate != 60.0 {
		t.Fatalf("win rate = %.2f, want 60.00 over all trades", st.WinRate)
	}

	tracker := NewTracker()
	for _, o := range outcomes {
		tracker.Add(o)
	}
	if got := tracker.Stats("exp").WinRate; got != 60.0 {
		t.Fatalf("tracker win rate = %.2f, want 60.00", got)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	outcomes := losingRecord()
	a, _ := Aggregate("weak", outcomes)
	b, _ := Aggregate("weak", outcomes)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated aggregation diverged:\n%+v\n%+v", a, b)
	}
}

func TestAggregateInvariants(t *testing.T) {
	cases := [][]*models.Outcome{
		nil,
		losingRecord(),
		{outcome("x", models.StatusExpired, 0, 0)},
		{outcome("x", models.StatusWin, 1.5, 0), outcome("x", models.StatusLoss, -1.5, 1)},
	}
	for i, outcomes := range cases {
		id := "weak"
		if len(outcomes) > 0 {
			id = outcomes[0].StrategyID
		}
		st, _ := Aggregate(id, outcomes)
		if st.WinRate < 0 || st.WinRate > 100 {
			t.Fatalf("case %d: win rate %.2f out of range", i, st.WinRate)
		}
		if math.IsNaN(st.ProfitFactor) || math.IsInf(st.ProfitFactor, 0) {
			t.Fatalf("case %d: profit factor not finite", i)
		}
		if math.IsNaN(st.Sharpe) || math.IsInf(st.Sharpe, 0) {
			t.Fatalf("case %d: sharpe not finite", i)
		}
		if st.MaxDrawdown < 0 {
			t.Fatalf("case %d: negative drawdown %.2f", i, st.MaxDrawdown)
		}
	}
}

func TestTrackerMatchesAggregate(t *testing.T) {
	var outcomes []*models.Outcome
	pnls := []float64{2.5, -1.0, 3.0, -2.5, 1.5, -0.5, 4.0, -3.0, 2.0, 1.0}
	for i, pnl := range pnls {
		status := models.StatusWin
		if pnl < 0 {
			status = models.StatusLoss
		}
		outcomes = append(outcomes, outcome("alpha", status, pnl, i))
		outcomes = append(outcomes, outcome("beta", status, pnl/2, i))
	}

	tracker := NewTracker()
	for _, o := range outcomes {
		tracker.Add(o)
	}

	for _, id := range []string{"alpha", "beta"} {
		want, _ := Aggregate(id, outcomes)
		got := tracker.Stats(id)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: tracker diverged from oracle:\ngot  %+v\nwant %+v", id, got, want)
		}
	}
}

func TestTrackerRebuildAndReset(t *testing.T) {
	tracker := NewTracker()
	outcomes := losingRecord()
	tracker.Rebuild(outcomes)
	if got := tracker.Stats("weak").Trades; got != 22 {
		t.Fatalf("trades after rebuild = %d, want 22", got)
	}
	tracker.Reset()
	if got := tracker.Stats("weak").Trades; got != 0 {
		t.Fatalf("trades after reset = %d, want 0", got)
	}
	if len(tracker.Strategies()) != 0 {
		t.Fatal("strategies must be empty after reset")
	}
}
