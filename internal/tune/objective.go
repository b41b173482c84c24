package tune

import (
	"math"

	"github.com/quantforge/adaptive/internal/domain"
)

// Objective selects the scalar used to rank candidates.
type Objective string

const (
	ObjectiveSharpe       Objective = "sharpe"
	ObjectiveProfitFactor Objective = "profit_factor"
	ObjectiveComposite    Objective = "composite"
)

// profitFactorCap bounds the profit factor inside composite scoring so a
// no-loss run cannot dominate every other term.
const profitFactorCap = 10.0

// CompositeWeights configure the weighted composite objective.
type CompositeWeights struct {
	Sharpe       float64 `yaml:"sharpe" json:"sharpe"`
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	Drawdown     float64 `yaml:"drawdown" json:"drawdown"` // penalty weight
}

// DefaultCompositeWeights balance risk-adjusted return against drawdown.
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{Sharpe: 1.0, ProfitFactor: 0.5, Drawdown: 2.0}
}

// Scorer reduces a metric set to one scalar.
type Scorer struct {
	Objective Objective        `yaml:"objective" json:"objective"`
	Weights   CompositeWeights `yaml:"weights" json:"weights"`
}

// NewScorer builds a scorer, defaulting missing composite weights.
func NewScorer(obj Objective, w CompositeWeights) Scorer {
	if w == (CompositeWeights{}) {
		w = DefaultCompositeWeights()
	}
	return Scorer{Objective: obj, Weights: w}
}

// Score computes the objective scalar. Higher is better.
func (s Scorer) Score(m domain.PerformanceMetrics) float64 {
	switch s.Objective {
	case ObjectiveProfitFactor:
		return m.ProfitFactor
	case ObjectiveComposite:
		pf := math.Min(m.ProfitFactor, profitFactorCap)
		return s.Weights.Sharpe*m.SharpeRatio + s.Weights.ProfitFactor*pf - s.Weights.Drawdown*m.MaxDrawdown
	default:
		return m.SharpeRatio
	}
}

// Better ranks candidate a against b: higher score wins, ties break to
// lower max drawdown, then to higher trade count (more statistical
// support).
func Better(aScore float64, a domain.PerformanceMetrics, bScore float64, b domain.PerformanceMetrics) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	if a.MaxDrawdown != b.MaxDrawdown {
		return a.MaxDrawdown < b.MaxDrawdown
	}
	return a.TotalTrades > b.TotalTrades
}
