package engine

import (
	"sort"

	"SigForge/internal/domain/models"
	"SigForge/pkg/util"
)

// Thresholds are the classifier's tuning knobs, copied from config at
// startup. Rates are percents.
type Thresholds struct {
	MinDecisionSample   int
	SurvivalWinRate     float64
	DrawdownCap         float64
	MinAvgPnl           float64
	MinSharpe           float64
	MinPromotionSample  int
	PromotionWinRate    float64
	PromotionPF         float64
	PromotionSharpe     float64
	ChampionshipWinRate float64
	ChampionshipTopN    int
	WinRateWeight       float64
	ProfitFactorWeight  float64
	SharpeWeight        float64
}

// Classifier maps stats to verdicts. It holds no state between cycles:
// the same stats always produce the same verdict.
type Classifier struct {
	t Thresholds
}

func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Classify labels one strategy from its stats. Strategies under the
// decision sample stay TESTING regardless of performance. Elimination
// checks run before promotion checks; a strategy failing any survival
// bar is ELIMINATED with every failed bar listed.
func (c *Classifier) Classify(st models.StrategyStats) (models.Verdict, []string) {
	if st.Trades < c.t.MinDecisionSample {
		return models.VerdictTesting, nil
	}

	var reasons []string
	if st.WinRate < c.t.SurvivalWinRate {
		reasons = append(reasons, "win rate below survival threshold")
	}
	if st.ProfitFactor < 1.0 {
		reasons = append(reasons, "profit factor below 1.0")
	}
	if st.MaxDrawdown > c.t.DrawdownCap {
		reasons = append(reasons, "max drawdown above cap")
	}
	if st.AvgPnlPct < c.t.MinAvgPnl {
		reasons = append(reasons, "average pnl below threshold")
	}
	if st.Sharpe < c.t.MinSharpe {
		reasons = append(reasons, "sharpe below minimum")
	}
	if len(reasons) > 0 {
		return models.VerdictEliminated, reasons
	}

	if st.Trades >= c.t.MinPromotionSample &&
		st.WinRate >= c.t.PromotionWinRate &&
		st.ProfitFactor >= c.t.PromotionPF &&
		st.AvgPnlPct > 0 &&
		st.Sharpe >= c.t.PromotionSharpe {
		return models.VerdictPromoted, nil
	}

	return models.VerdictUnderReview, nil
}

// Score is the composite ranking value: a weighted blend of win rate,
// profit factor and Sharpe, each scaled to a comparable range.
func (c *Classifier) Score(st models.StrategyStats) float64 {
	pf := st.ProfitFactor
	if pf > 10 {
		pf = 10
	}
	return util.Round2(c.t.WinRateWeight*st.WinRate +
		c.t.ProfitFactorWeight*pf*10 +
		c.t.SharpeWeight*st.Sharpe*10)
}

// Championship ranks eligible strategies by composite score, descending,
// ties broken by strategy ID for a stable order. Only strategies past
// the decision sample with a win rate at or above the championship bar
// qualify; ELIMINATED strategies never appear.
func (c *Classifier) Championship(reports []models.StrategyReport) []models.ChampionshipEntry {
	var entries []models.ChampionshipEntry
	for _, r := range reports {
		if r.Verdict == models.VerdictEliminated || r.Verdict == models.VerdictTesting {
			continue
		}
		if r.Stats.WinRate < c.t.ChampionshipWinRate {
			continue
		}
		entries = append(entries, models.ChampionshipEntry{
			Strategy: r.Strategy,
			Verdict:  r.Verdict,
			WinRate:  r.Stats.WinRate,
			Score:    r.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Strategy < entries[j].Strategy
	})
	if c.t.ChampionshipTopN > 0 && len(entries) > c.t.ChampionshipTopN {
		entries = entries[:c.t.ChampionshipTopN]
	}
	return entries
}
