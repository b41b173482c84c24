package tune

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantforge/adaptive/internal/domain"
)

func TestScorerObjectives(t *testing.T) {
	m := domain.PerformanceMetrics{SharpeRatio: 1.2, ProfitFactor: 2.5, MaxDrawdown: 0.1}

	assert.Equal(t, 1.2, NewScorer(ObjectiveSharpe, CompositeWeights{}).Score(m))
	assert.Equal(t, 2.5, NewScorer(ObjectiveProfitFactor, CompositeWeights{}).Score(m))

	composite := NewScorer(ObjectiveComposite, CompositeWeights{Sharpe: 1, ProfitFactor: 0.5, Drawdown: 2})
	assert.InDelta(t, 1.2+0.5*2.5-2*0.1, composite.Score(m), 1e-9)
}

func TestCompositeCapsProfitFactor(t *testing.T) {
	noLosses := domain.PerformanceMetrics{SharpeRatio: 0.5, ProfitFactor: math.Inf(1)}
	s := NewScorer(ObjectiveComposite, CompositeWeights{Sharpe: 1, ProfitFactor: 1, Drawdown: 0})
	assert.InDelta(t, 0.5+profitFactorCap, s.Score(noLosses), 1e-9)
}

func TestNewScorerDefaultsWeights(t *testing.T) {
	s := NewScorer(ObjectiveComposite, CompositeWeights{})
	assert.Equal(t, DefaultCompositeWeights(), s.Weights)
}

func TestBetterTieBreaks(t *testing.T) {
	a := domain.PerformanceMetrics{MaxDrawdown: 0.10, TotalTrades: 40}
	b := domain.PerformanceMetrics{MaxDrawdown: 0.20, TotalTrades: 60}

	// Higher score always wins.
	assert.True(t, Better(1.0, b, 0.5, a))
	assert.False(t, Better(0.5, a, 1.0, b))

	// Equal score: lower drawdown wins.
	assert.True(t, Better(1.0, a, 1.0, b))
	assert.False(t, Better(1.0, b, 1.0, a))

	// Equal score and drawdown: more trades win.
	c := domain.PerformanceMetrics{MaxDrawdown: 0.10, TotalTrades: 80}
	assert.True(t, Better(1.0, c, 1.0, a))
	assert.False(t, Better(1.0, a, 1.0, c))
}
