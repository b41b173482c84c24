// Package config loads the engine's YAML configuration and materializes
// per-component configs from it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/learner"
	"github.com/quantforge/adaptive/internal/montecarlo"
	"github.com/quantforge/adaptive/internal/tune"
	"github.com/quantforge/adaptive/internal/walkforward"
)

// Config is the top-level engine configuration. Durations are expressed in
// whole days/minutes so files stay readable.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Data struct {
		CSVPath  string `yaml:"csv_path"`
		RedisURL string `yaml:"redis_url"`
		Postgres string `yaml:"postgres_dsn"`
	} `yaml:"data"`

	Search struct {
		Mode        string     `yaml:"mode"` // grid or guided
		Concurrency int        `yaml:"concurrency"`
		MinTrades   int        `yaml:"min_trades"`
		MinHistory  int        `yaml:"min_history"`
		Space       tune.Space `yaml:"space"`
	} `yaml:"search"`

	Objective struct {
		Name    string                `yaml:"name"` // sharpe, profit_factor, composite
		Weights tune.CompositeWeights `yaml:"weights"`
	} `yaml:"objective"`

	WalkForward struct {
		TrainDays      int  `yaml:"train_days"`
		TestDays       int  `yaml:"test_days"`
		Anchored       bool `yaml:"anchored"`
		MinTrainTrades int  `yaml:"min_train_trades"`
		Concurrency    int  `yaml:"concurrency"`
	} `yaml:"walkforward"`

	MonteCarlo montecarlo.Config `yaml:"monte_carlo"`

	Learner struct {
		RetuneEveryNTrades  int     `yaml:"retune_every_n_trades"`
		EvalIntervalMinutes int     `yaml:"eval_interval_minutes"`
		HistoryDays         int     `yaml:"history_days"`
		Timeframe           string  `yaml:"timeframe"`
		MinTradeSupport     int     `yaml:"min_trade_support"`
		PromotionMargin     float64 `yaml:"promotion_margin"`
		RuinTolerance       float64 `yaml:"ruin_tolerance"`
		InitialCapital      float64 `yaml:"initial_capital"`
	} `yaml:"learner"`
}

// Load reads and defaults a config file. An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Search.Mode == "" {
		c.Search.Mode = string(tune.ModeGrid)
	}
	if c.Search.Concurrency <= 0 {
		c.Search.Concurrency = 4
	}
	if c.Search.MinTrades <= 0 {
		c.Search.MinTrades = 10
	}
	if c.Search.MinHistory <= 0 {
		c.Search.MinHistory = 20
	}
	if len(c.Search.Space) == 0 {
		c.Search.Space = tune.DefaultSpace()
	}
	if c.Objective.Name == "" {
		c.Objective.Name = string(tune.ObjectiveComposite)
	}
	if c.WalkForward.TrainDays <= 0 {
		c.WalkForward.TrainDays = 30
	}
	if c.WalkForward.TestDays <= 0 {
		c.WalkForward.TestDays = 7
	}
	if c.WalkForward.MinTrainTrades <= 0 {
		c.WalkForward.MinTrainTrades = 10
	}
	if c.WalkForward.Concurrency <= 0 {
		c.WalkForward.Concurrency = 4
	}
	if c.MonteCarlo.NRuns <= 0 {
		c.MonteCarlo = montecarlo.DefaultConfig()
	}
	if c.Learner.RetuneEveryNTrades <= 0 {
		c.Learner.RetuneEveryNTrades = 50
	}
	if c.Learner.EvalIntervalMinutes <= 0 {
		c.Learner.EvalIntervalMinutes = 24 * 60
	}
	if c.Learner.HistoryDays <= 0 {
		c.Learner.HistoryDays = 90
	}
	if c.Learner.Timeframe == "" {
		c.Learner.Timeframe = string(domain.TF5m)
	}
	if c.Learner.MinTradeSupport <= 0 {
		c.Learner.MinTradeSupport = 30
	}
	if c.Learner.PromotionMargin <= 0 {
		c.Learner.PromotionMargin = 0.1
	}
	if c.Learner.RuinTolerance <= 0 {
		c.Learner.RuinTolerance = 0.01
	}
	if c.Learner.InitialCapital <= 0 {
		c.Learner.InitialCapital = 10_000
	}
}

// Scorer builds the objective scorer.
func (c *Config) Scorer() tune.Scorer {
	return tune.NewScorer(tune.Objective(c.Objective.Name), c.Objective.Weights)
}

// SearchConfig builds the parameter-search configuration.
func (c *Config) SearchConfig() tune.Config {
	sc := tune.DefaultConfig()
	sc.Mode = tune.Mode(c.Search.Mode)
	sc.Concurrency = c.Search.Concurrency
	sc.MinTrades = c.Search.MinTrades
	sc.MinHistory = c.Search.MinHistory
	return sc
}

// WalkForwardConfig builds the walk-forward configuration.
func (c *Config) WalkForwardConfig() walkforward.Config {
	return walkforward.Config{
		Split: walkforward.SplitConfig{
			TrainSpan: time.Duration(c.WalkForward.TrainDays) * 24 * time.Hour,
			TestSpan:  time.Duration(c.WalkForward.TestDays) * 24 * time.Hour,
			Anchored:  c.WalkForward.Anchored,
		},
		MinTrainTrades: c.WalkForward.MinTrainTrades,
		Concurrency:    c.WalkForward.Concurrency,
		InitialCapital: c.Learner.InitialCapital,
	}
}

// LearnerConfig builds the controller configuration.
func (c *Config) LearnerConfig() learner.Config {
	return learner.Config{
		RetuneEveryNTrades: c.Learner.RetuneEveryNTrades,
		EvalInterval:       time.Duration(c.Learner.EvalIntervalMinutes) * time.Minute,
		HistorySpan:        time.Duration(c.Learner.HistoryDays) * 24 * time.Hour,
		Timeframe:          domain.Timeframe(c.Learner.Timeframe),
		MinTradeSupport:    c.Learner.MinTradeSupport,
		PromotionMargin:    c.Learner.PromotionMargin,
		RuinTolerance:      c.Learner.RuinTolerance,
		InitialCapital:     c.Learner.InitialCapital,
		MonteCarlo:         c.MonteCarlo,
	}
}
