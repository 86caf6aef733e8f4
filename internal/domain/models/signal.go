package models

import (
	"fmt"
	"time"
)

// Direction is the market stance a signal takes.
type Direction string

const (
	Bullish    Direction = "BULLISH"
	Bearish    Direction = "BEARISH"
	RangeBound Direction = "RANGE_BOUND"
)

// IsValidDirection returns true for a known direction.
func IsValidDirection(d Direction) bool {
	switch d {
	case Bullish, Bearish, RangeBound:
		return true
	default:
		return false
	}
}

// SignalStatus is a closed set; a signal transitions ACTIVE -> terminal
// exactly once.
type SignalStatus string

const (
	StatusActive  SignalStatus = "ACTIVE"
	StatusWin     SignalStatus = "WIN"
	StatusLoss    SignalStatus = "LOSS"
	StatusExpired SignalStatus = "EXPIRED"
)

// IsTerminal reports whether the status is a final outcome.
func (s SignalStatus) IsTerminal() bool {
	return s == StatusWin || s == StatusLoss || s == StatusExpired
}

// Snapshot is a point-in-time view of an asset supplied by the market
// data gateway: current price plus named indicator values.
type Snapshot struct {
	Asset      string             `json:"asset"`
	Price      float64            `json:"price"`
	Indicators map[string]float64 `json:"indicators"`
	At         time.Time          `json:"at"`
}

// CloneIndicators returns an independent copy of the indicator map so a
// signal's audit snapshot cannot be mutated after creation.
func (s *Snapshot) CloneIndicators() map[string]float64 {
	out := make(map[string]float64, len(s.Indicators))
	for k, v := range s.Indicators {
		out[k] = v
	}
	return out
}

// Strategy is immutable configuration loaded at startup.
type Strategy struct {
	ID            string        `yaml:"id" json:"id"`
	Name          string        `yaml:"name" json:"name"`
	Category      string        `yaml:"category" json:"category"`
	Assets        []string      `yaml:"assets" json:"assets"` // empty means all
	Direction     Direction     `yaml:"direction" json:"direction"`
	EntryRule     string        `yaml:"entry_rule" json:"entry_rule"`
	TakeProfitPct float64       `yaml:"take_profit_pct" json:"take_profit_pct"`
	StopLossPct   float64       `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	Timeframe     string        `yaml:"timeframe" json:"timeframe"`
	MaxHold       time.Duration `yaml:"max_hold" json:"max_hold"`
}

// CoversAsset reports whether the strategy's asset scope includes asset.
func (s *Strategy) CoversAsset(asset string) bool {
	if len(s.Assets) == 0 {
		return true
	}
	for _, a := range s.Assets {
		if a == asset {
			return true
		}
	}
	return false
}

// Signal is a single speculative entry opportunity for one strategy on
// one asset. It is created ACTIVE and mutated exactly once, by the
// resolver, into a terminal status.
type Signal struct {
	ID            string             `json:"id"`
	StrategyID    string             `json:"strategy_id"`
	Asset         string             `json:"asset"`
	Direction     Direction          `json:"direction"`
	EntryPrice    float64            `json:"entry_price"`
	TargetPrice   float64            `json:"target_price"`
	StopPrice     float64            `json:"stop_price"`
	TakeProfitPct float64            `json:"take_profit_pct"`
	StopLossPct   float64            `json:"stop_loss_pct"`
	MaxHold       time.Duration      `json:"max_hold"`
	CreatedAt     time.Time          `json:"created_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
	Status        SignalStatus       `json:"status"`
	OutcomePrice  float64            `json:"outcome_price,omitempty"`
	PnlPct        float64            `json:"pnl_pct,omitempty"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
	Indicators    map[string]float64 `json:"indicators"`
}

// Resolve transitions the signal to a terminal status. It is the only
// mutation a signal ever receives and fails if the signal is already
// terminal, so a double resolution surfaces as an error instead of a
// silent overwrite.
func (s *Signal) Resolve(status SignalStatus, price, pnlPct float64, at time.Time) error {
	if s.Status != StatusActive {
		return fmt.Errorf("signal %s already resolved to %s", s.ID, s.Status)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("signal %s: %s is not a terminal status", s.ID, status)
	}
	s.Status = status
	s.OutcomePrice = price
	s.PnlPct = pnlPct
	s.ResolvedAt = &at
	return nil
}

// Outcome is one immutable record in the append-only outcome log.
type Outcome struct {
	SignalID      string       `json:"signal_id"`
	StrategyID    string       `json:"strategy_id"`
	Asset         string       `json:"asset"`
	Direction     Direction    `json:"direction"`
	Status        SignalStatus `json:"status"`
	EntryPrice    float64      `json:"entry_price"`
	ResolvedPrice float64      `json:"resolved_price"`
	PnlPct        float64      `json:"pnl_pct"`
	CreatedAt     time.Time    `json:"created_at"`
	ResolvedAt    time.Time    `json:"resolved_at"`
}

// Valid reports whether the record is well-formed; aggregation skips
// records that are not.
func (o *Outcome) Valid() bool {
	if o == nil || o.StrategyID == "" || o.SignalID == "" {
		return false
	}
	if !o.Status.IsTerminal() {
		return false
	}
	return true
}
