package strategies

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"SigForge/internal/domain/models"
	"SigForge/internal/engine"
	applogger "SigForge/pkg/logger"
)

type catalogFile struct {
	Strategies []models.Strategy `yaml:"strategies"`
}

// Load reads the strategy catalog and compiles entry rules. A strategy
// with invalid configuration is skipped with a warning instead of
// failing the whole catalog; a catalog with no usable strategy is an
// error.
func Load(path string, log *applogger.Logger) ([]engine.StrategySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse strategies file: %w", err)
	}

	specs := make([]engine.StrategySpec, 0, len(file.Strategies))
	seen := make(map[string]bool, len(file.Strategies))
	for _, strat := range file.Strategies {
		if err := validate(&strat, seen); err != nil {
			log.Warn("skipping invalid strategy",
				applogger.String("strategy", strat.ID),
				applogger.Error(err),
			)
			continue
		}
		rule, err := CompileRule(strat.EntryRule)
		if err != nil {
			log.Warn("skipping strategy with bad entry rule",
				applogger.String("strategy", strat.ID),
				applogger.Error(err),
			)
			continue
		}
		seen[strat.ID] = true
		specs = append(specs, engine.StrategySpec{Strategy: strat, Entry: rule})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no usable strategies in %s", path)
	}
	log.Info("strategies loaded",
		applogger.Int("total", len(file.Strategies)),
		applogger.Int("usable", len(specs)),
	)
	return specs, nil
}

func validate(s *models.Strategy, seen map[string]bool) error {
	if s.ID == "" {
		return fmt.Errorf("missing id")
	}
	if seen[s.ID] {
		return fmt.Errorf("duplicate id %s", s.ID)
	}
	if !models.IsValidDirection(s.Direction) {
		return fmt.Errorf("unknown direction %q", s.Direction)
	}
	if s.TakeProfitPct <= 0 || s.StopLossPct <= 0 {
		return fmt.Errorf("take profit and stop loss must be positive")
	}
	if s.MaxHold <= 0 {
		return fmt.Errorf("max hold must be positive")
	}
	return nil
}
