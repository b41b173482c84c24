// Package walkforward validates configuration robustness across rolling
// train/test time windows: parameters are re-derived on each train window
// and judged only on the out-of-sample test window that follows it.
package walkforward

import (
	"fmt"
	"time"

	"github.com/quantforge/adaptive/internal/domain"
)

// WindowStatus tracks one window's lifecycle.
type WindowStatus string

const (
	WindowPending         WindowStatus = "PENDING"
	WindowOptimizingTrain WindowStatus = "OPTIMIZING_TRAIN"
	WindowTesting         WindowStatus = "TESTING"
	WindowCompleted       WindowStatus = "COMPLETED"
	WindowFailed          WindowStatus = "FAILED"
)

// Window is one (train, test) pair. Test ranges across a job tile the full
// range exactly, with no gaps or overlaps.
type Window struct {
	Index         int                       `json:"index"`
	Train         domain.TimeRange          `json:"train"`
	Test          domain.TimeRange          `json:"test"`
	Status        WindowStatus              `json:"status"`
	DerivedConfig *domain.StrategyConfig    `json:"derived_config,omitempty"`
	InSample      domain.PerformanceMetrics `json:"in_sample"`
	OutOfSample   domain.PerformanceMetrics `json:"out_of_sample"`
	OOSTrades     []domain.SimulatedTrade   `json:"-"`
	Degenerate    bool                      `json:"degenerate"` // excluded from aggregation
	Error         string                    `json:"error,omitempty"`
}

// SplitConfig controls window generation.
type SplitConfig struct {
	TrainSpan time.Duration `yaml:"train_span"`
	TestSpan  time.Duration `yaml:"test_span"`
	Anchored  bool          `yaml:"anchored"` // train start fixed at the earliest window
}

// Split tiles [tr.From, tr.To) with test windows of TestSpan (the last one
// truncated to end exactly at tr.To) and attaches each window's train
// range: the TrainSpan immediately preceding the test start when rolling,
// or everything from the earliest train start when anchored.
func Split(tr domain.TimeRange, cfg SplitConfig) ([]Window, error) {
	if cfg.TrainSpan <= 0 || cfg.TestSpan <= 0 {
		return nil, fmt.Errorf("train/test spans must be positive: train=%v test=%v", cfg.TrainSpan, cfg.TestSpan)
	}
	if !tr.To.After(tr.From) {
		return nil, fmt.Errorf("empty walk-forward range %s", tr)
	}

	anchor := tr.From.Add(-cfg.TrainSpan)
	var windows []Window
	for start := tr.From; start.Before(tr.To); start = start.Add(cfg.TestSpan) {
		end := start.Add(cfg.TestSpan)
		if end.After(tr.To) {
			end = tr.To
		}
		trainFrom := start.Add(-cfg.TrainSpan)
		if cfg.Anchored {
			trainFrom = anchor
		}
		windows = append(windows, Window{
			Index:  len(windows),
			Train:  domain.TimeRange{From: trainFrom, To: start},
			Test:   domain.TimeRange{From: start, To: end},
			Status: WindowPending,
		})
	}
	return windows, nil
}
