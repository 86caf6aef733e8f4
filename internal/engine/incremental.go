package engine

import (
	"math"
	"sync"

	"SigForge/internal/domain/models"
	"SigForge/pkg/util"
)

// Tracker maintains per-strategy running aggregates so a full log scan
// is not needed on every evaluation cycle. Aggregate remains the oracle;
// EvaluateCycle cross-checks the two when verification is requested.
type Tracker struct {
	mu      sync.RWMutex
	aggs    map[string]*runningAgg
	skipped int
}

type runningAgg struct {
	trades      int
	wins        int
	losses      int
	sumPnl      float64
	sumSqPnl    float64
	grossProfit float64
	grossLoss   float64
	cum         float64
	peak        float64
	maxDD       float64
}

func NewTracker() *Tracker {
	return &Tracker{aggs: make(map[string]*runningAgg)}
}

// Add folds one outcome into the running aggregates. Malformed records
// are counted and ignored.
func (t *Tracker) Add(o *models.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !o.Valid() {
		t.skipped++
		return
	}
	agg := t.aggs[o.StrategyID]
	if agg == nil {
		agg = &runningAgg{}
		t.aggs[o.StrategyID] = agg
	}
	agg.trades++
	switch o.Status {
	case models.StatusWin:
		agg.wins++
	case models.StatusLoss:
		agg.losses++
	}
	pnl := o.PnlPct
	agg.sumPnl += pnl
	agg.sumSqPnl += pnl * pnl
	if pnl > 0 {
		agg.grossProfit += pnl
	} else if pnl < 0 {
		agg.grossLoss += -pnl
	}
	agg.cum += pnl
	if agg.cum > agg.peak {
		agg.peak = agg.cum
	}
	if dd := agg.peak - agg.cum; dd > agg.maxDD {
		agg.maxDD = dd
	}
}

// Rebuild discards all aggregates and refolds the given log, in order.
func (t *Tracker) Rebuild(outcomes []*models.Outcome) {
	t.mu.Lock()
	t.aggs = make(map[string]*runningAgg)
	t.skipped = 0
	t.mu.Unlock()
	for _, o := range outcomes {
		t.Add(o)
	}
}

// Reset drops all aggregates.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aggs = make(map[string]*runningAgg)
	t.skipped = 0
}

// Skipped returns the count of malformed records seen since the last
// rebuild or reset.
func (t *Tracker) Skipped() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.skipped
}

// Strategies returns the IDs with at least one folded trade.
func (t *Tracker) Strategies() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.aggs))
	for id := range t.aggs {
		out = append(out, id)
	}
	return out
}

// Stats materializes StrategyStats for one strategy from the running
// aggregates, applying the same rounding and caps as Aggregate.
func (t *Tracker) Stats(strategyID string) models.StrategyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := models.StrategyStats{StrategyID: strategyID}
	agg := t.aggs[strategyID]
	if agg == nil || agg.trades == 0 {
		return st
	}
	st.Trades = agg.trades
	st.Wins = agg.wins
	st.Losses = agg.losses

	st.WinRate = util.Round2(float64(agg.wins) / float64(agg.trades) * 100)
	decided := agg.wins + agg.losses
	st.ProfitFactor = profitFactor(agg.grossProfit, agg.grossLoss)
	st.AvgPnlPct = util.Round2(agg.sumPnl / float64(agg.trades))
	st.TotalPnlPct = util.Round2(agg.sumPnl)
	st.Sharpe = util.Round2(runningSharpe(agg))
	st.MaxDrawdown = util.Round2(agg.maxDD)
	st.Expectancy = util.Round2(expectancy(agg.wins, agg.losses, decided, agg.grossProfit, agg.grossLoss))
	return st
}

// runningSharpe derives the simplified Sharpe from sum and sum of
// squares, matching sharpe() on the same series.
func runningSharpe(agg *runningAgg) float64 {
	n := float64(agg.trades)
	if agg.trades < 2 {
		return 0
	}
	mean := agg.sumPnl / n
	variance := (agg.sumSqPnl - agg.sumPnl*agg.sumPnl/n) / (n - 1)
	if variance <= 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}
