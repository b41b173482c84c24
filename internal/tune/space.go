// Package tune proposes, scores and ranks candidate strategy
// configurations over a discretized parameter space.
package tune

import (
	"fmt"
	"sort"

	"github.com/quantforge/adaptive/internal/domain"
)

// ParamRange describes one searchable parameter: either an explicit
// candidate set or a [Min, Max] range discretized by Step.
type ParamRange struct {
	Min    float64   `yaml:"min" json:"min"`
	Max    float64   `yaml:"max" json:"max"`
	Step   float64   `yaml:"step" json:"step"`
	Values []float64 `yaml:"values,omitempty" json:"values,omitempty"`
}

// Candidates returns the finite value set for the range.
func (r ParamRange) Candidates() []float64 {
	if len(r.Values) > 0 {
		return r.Values
	}
	if r.Step <= 0 || r.Max < r.Min {
		return nil
	}
	out := make([]float64, 0, int((r.Max-r.Min)/r.Step)+1)
	for v := r.Min; v <= r.Max+r.Step/1e9; v += r.Step {
		out = append(out, v)
	}
	return out
}

// Space maps parameter names to their searchable ranges.
type Space map[string]ParamRange

// Names returns parameter names in deterministic order.
func (s Space) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Size is the cardinality of the full cartesian product.
func (s Space) Size() int {
	size := 1
	for _, r := range s {
		size *= len(r.Candidates())
	}
	return size
}

// DefaultSpace covers the evaluator thresholds and exit multipliers at a
// coarse grid suitable for walk-forward train windows.
func DefaultSpace() Space {
	return Space{
		"stop_loss_atr":   {Min: 1.0, Max: 2.5, Step: 0.5},
		"take_profit_atr": {Min: 2.0, Max: 4.0, Step: 1.0},
		"min_confidence":  {Min: 0.5, Max: 0.8, Step: 0.1},
	}
}

// applyParam sets one named tunable on the config.
func applyParam(cfg *domain.StrategyConfig, name string, v float64) error {
	switch name {
	case "rsi_oversold":
		cfg.RSIOversold = v
	case "rsi_overbought":
		cfg.RSIOverbought = v
	case "adx_min":
		cfg.ADXMin = v
	case "stop_loss_atr":
		cfg.StopLossATR = v
	case "take_profit_atr":
		cfg.TakeProfitATR = v
	case "min_confidence":
		cfg.MinConfidence = v
	case "risk_per_trade":
		cfg.RiskPerTrade = v
	default:
		return fmt.Errorf("unknown search parameter %q", name)
	}
	return nil
}

// paramValue reads one named tunable off the config.
func paramValue(cfg domain.StrategyConfig, name string) float64 {
	switch name {
	case "rsi_oversold":
		return cfg.RSIOversold
	case "rsi_overbought":
		return cfg.RSIOverbought
	case "adx_min":
		return cfg.ADXMin
	case "stop_loss_atr":
		return cfg.StopLossATR
	case "take_profit_atr":
		return cfg.TakeProfitATR
	case "min_confidence":
		return cfg.MinConfidence
	case "risk_per_trade":
		return cfg.RiskPerTrade
	}
	return 0
}

// Enumerate expands the full cartesian product into configs derived from
// base. Order is deterministic given the space contents.
func (s Space) Enumerate(base domain.StrategyConfig) ([]domain.StrategyConfig, error) {
	names := s.Names()
	grids := make([][]float64, len(names))
	for i, n := range names {
		grids[i] = s[n].Candidates()
		if len(grids[i]) == 0 {
			return nil, fmt.Errorf("parameter %q has an empty candidate set", n)
		}
	}

	var configs []domain.StrategyConfig
	assignment := make([]float64, len(names))
	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(names) {
			vals := make([]float64, len(assignment))
			copy(vals, assignment)
			cfg := base.Derive(func(c *domain.StrategyConfig) {
				for i, n := range names {
					_ = applyParam(c, n, vals[i])
				}
			})
			configs = append(configs, cfg)
			return nil
		}
		for _, v := range grids[depth] {
			assignment[depth] = v
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return configs, nil
}
