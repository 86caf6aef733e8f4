package models

import "time"

// Verdict is the classifier's current label for a strategy. It is
// recomputed from stats every cycle, never persisted as sticky state.
type Verdict string

const (
	VerdictTesting     Verdict = "TESTING"
	VerdictUnderReview Verdict = "UNDER_REVIEW"
	VerdictPromoted    Verdict = "PROMOTED"
	VerdictEliminated  Verdict = "ELIMINATED"
)

// StrategyStats is derived from the outcome log for one strategy.
type StrategyStats struct {
	StrategyID   string  `json:"strategy_id"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`       // percent, 2 decimals
	ProfitFactor float64 `json:"profit_factor"`  // capped at 999
	AvgPnlPct    float64 `json:"avg_pnl_pct"`
	TotalPnlPct  float64 `json:"total_pnl_pct"`
	Sharpe       float64 `json:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown"`   // percent of cumulative pnl
	Expectancy   float64 `json:"expectancy"`
}

// StrategyReport couples stats with the verdict of the current cycle.
type StrategyReport struct {
	Strategy string        `json:"strategy"`
	Name     string        `json:"name,omitempty"`
	Stats    StrategyStats `json:"stats"`
	Verdict  Verdict       `json:"verdict"`
	Reasons  []string      `json:"reasons,omitempty"`
	Score    float64       `json:"score"`
	Override *AuditEvent   `json:"override,omitempty"` // advisory, never changes Verdict
}

// ChampionshipEntry is one row of the top-N composite ranking.
type ChampionshipEntry struct {
	Strategy string  `json:"strategy"`
	Verdict  Verdict `json:"verdict"`
	WinRate  float64 `json:"win_rate"`
	Score    float64 `json:"score"`
}

// EvaluationSnapshot is the output of one full evaluation cycle.
type EvaluationSnapshot struct {
	At           time.Time           `json:"at"`
	Testing      int                 `json:"testing"`
	UnderReview  int                 `json:"under_review"`
	Promoted     int                 `json:"promoted"`
	Eliminated   int                 `json:"eliminated"`
	Reports      []StrategyReport    `json:"reports"`
	Championship []ChampionshipEntry `json:"championship"`
	Partial      bool                `json:"partial"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// AuditEventType labels entries in the append-only audit logs.
type AuditEventType string

const (
	AuditPromotion   AuditEventType = "promotion"
	AuditElimination AuditEventType = "elimination"
	AuditOverride    AuditEventType = "override"
	AuditReset       AuditEventType = "reset"
)

// AuditEvent is appended on each promotion/elimination occurrence.
// Duplicates across cycles are expected; consumers deduplicate on
// (strategy, at).
type AuditEvent struct {
	Type     AuditEventType `json:"type"`
	Strategy string         `json:"strategy"`
	Verdict  Verdict        `json:"verdict,omitempty"`
	Reasons  []string       `json:"reasons,omitempty"`
	At       time.Time      `json:"at"`
}
