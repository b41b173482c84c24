package tune

import (
	"math"
	"sync"

	"github.com/quantforge/adaptive/internal/domain"
)

// surrogate parameters considered when measuring config distance.
var surrogateParams = []string{
	"rsi_oversold", "rsi_overbought", "adx_min",
	"stop_loss_atr", "take_profit_atr", "min_confidence", "risk_per_trade",
}

// KNNSurrogate predicts a candidate's score from the distance-weighted mean
// of its nearest previously evaluated neighbours. It is a cheap plug-in
// ranker only; actual scores always come from real evaluation.
type KNNSurrogate struct {
	mu      sync.RWMutex
	k       int
	scale   map[string]float64
	history []Sample
}

// NewKNNSurrogate builds a surrogate using the space's ranges to normalize
// parameter distances.
func NewKNNSurrogate(k int, space Space) *KNNSurrogate {
	if k <= 0 {
		k = 5
	}
	scale := make(map[string]float64, len(space))
	for name, r := range space {
		if span := r.Max - r.Min; span > 0 {
			scale[name] = span
		}
	}
	return &KNNSurrogate{k: k, scale: scale}
}

// Observe feeds an evaluated sample into the model.
func (s *KNNSurrogate) Observe(sample Sample) {
	if sample.ActualScore == nil || sample.Excluded {
		return
	}
	s.mu.Lock()
	s.history = append(s.history, sample)
	s.mu.Unlock()
}

// Predict estimates the score for cfg. ok is false until enough history
// exists.
func (s *KNNSurrogate) Predict(cfg domain.StrategyConfig) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) < s.k {
		return 0, false
	}

	type neighbour struct {
		dist  float64
		score float64
	}
	nearest := make([]neighbour, 0, len(s.history))
	for _, h := range s.history {
		nearest = append(nearest, neighbour{dist: s.distance(cfg, h.Config), score: *h.ActualScore})
	}
	// Partial selection of the k smallest distances.
	for i := 0; i < s.k; i++ {
		min := i
		for j := i + 1; j < len(nearest); j++ {
			if nearest[j].dist < nearest[min].dist {
				min = j
			}
		}
		nearest[i], nearest[min] = nearest[min], nearest[i]
	}

	var num, den float64
	for _, n := range nearest[:s.k] {
		w := 1 / (n.dist + 1e-9)
		num += w * n.score
		den += w
	}
	return num / den, true
}

// distance is the normalized euclidean distance across searchable
// parameters.
func (s *KNNSurrogate) distance(a, b domain.StrategyConfig) float64 {
	sum := 0.0
	for _, name := range surrogateParams {
		scale, ok := s.scale[name]
		if !ok || scale == 0 {
			continue
		}
		d := (paramValue(a, name) - paramValue(b, name)) / scale
		sum += d * d
	}
	return math.Sqrt(sum)
}
