package engine

import (
	"SigForge/internal/domain/models"
	"SigForge/pkg/util"
)

// profitFactorCap bounds the profit factor when a strategy has wins but
// no losing trades, keeping the value finite and sortable.
const profitFactorCap = 999.0

// Aggregate recomputes StrategyStats for one strategy from scratch over
// its outcome records, in log order. It is a pure function and serves
// as the oracle the incremental tracker is verified against.
//
// Malformed records are skipped, not fatal; the skip count is returned
// so callers can flag partial results.
func Aggregate(strategyID string, outcomes []*models.Outcome) (models.StrategyStats, int) {
	st := models.StrategyStats{StrategyID: strategyID}
	skipped := 0

	var (
		pnls        []float64
		grossProfit float64
		grossLoss   float64
		sumWin      float64
		sumLoss     float64
		cum         float64
		peak        float64
		maxDD       float64
	)

	for _, o := range outcomes {
		if o == nil || o.StrategyID != strategyID {
			continue
		}
		if !o.Valid() {
			skipped++
			continue
		}
		st.Trades++
		switch o.Status {
		case models.StatusWin:
			st.Wins++
		case models.StatusLoss:
			st.Losses++
		}
		pnl := o.PnlPct
		pnls = append(pnls, pnl)
		st.TotalPnlPct += pnl
		if pnl > 0 {
			grossProfit += pnl
			sumWin += pnl
		} else if pnl < 0 {
			grossLoss += -pnl
			sumLoss += -pnl
		}
		cum += pnl
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}

	if st.Trades == 0 {
		return st, skipped
	}

	// Win rate is over every resolved trade, expiries included; an
	// expired signal is a trade that failed to win.
	st.WinRate = util.Round2(float64(st.Wins) / float64(st.Trades) * 100)
	decided := st.Wins + st.Losses
	st.ProfitFactor = profitFactor(grossProfit, grossLoss)
	st.AvgPnlPct = util.Round2(st.TotalPnlPct / float64(st.Trades))
	st.TotalPnlPct = util.Round2(st.TotalPnlPct)
	st.Sharpe = util.Round2(sharpe(pnls))
	st.MaxDrawdown = util.Round2(maxDD)
	st.Expectancy = util.Round2(expectancy(st.Wins, st.Losses, decided, sumWin, sumLoss))
	return st, skipped
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit == 0 {
			return 0
		}
		return profitFactorCap
	}
	pf := grossProfit / grossLoss
	if pf > profitFactorCap {
		pf = profitFactorCap
	}
	return util.Round2(pf)
}

// sharpe is the simplified ratio of mean pnl to its sample standard
// deviation, zero when fewer than two trades or zero variance.
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	sd := util.SampleStdDev(pnls)
	if sd == 0 {
		return 0
	}
	return util.Mean(pnls) / sd
}

// expectancy = winProb * avgWin - lossProb * avgLoss, over decided
// trades only.
func expectancy(wins, losses, decided int, sumWin, sumLoss float64) float64 {
	if decided == 0 {
		return 0
	}
	var avgWin, avgLoss float64
	if wins > 0 {
		avgWin = sumWin / float64(wins)
	}
	if losses > 0 {
		avgLoss = sumLoss / float64(losses)
	}
	winProb := float64(wins) / float64(decided)
	lossProb := float64(losses) / float64(decided)
	return winProb*avgWin - lossProb*avgLoss
}
