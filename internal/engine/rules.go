package engine

import "SigForge/internal/domain/models"

// RuleFunc is a compiled entry rule: a pure predicate over the snapshot
// price and indicator values. It must have no side effects.
type RuleFunc func(price float64, indicators map[string]float64) bool

// StrategySpec couples immutable strategy configuration with its
// compiled entry rule.
type StrategySpec struct {
	models.Strategy
	Entry RuleFunc
}
