package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "adaptive"
	version = "v0.3.0"
)

var (
	flagConfig string
	flagCSV    string
	flagSymbol string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Strategy optimization and adaptive learning engine",
		Version: version,
		Long: `adaptive replays price history against parameterized strategies,
validates robustness with walk-forward windows, stress-tests trade
sequences with Monte Carlo resampling, and evolves the active
configuration through audited promotion cycles.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "engine config YAML")
	rootCmd.PersistentFlags().StringVar(&flagCSV, "csv", "", "candle CSV file (open_time,open,high,low,close,volume)")
	rootCmd.PersistentFlags().StringVar(&flagSymbol, "symbol", "BTCUSD", "symbol the candle file covers")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newWalkForwardCmd())
	rootCmd.AddCommand(newMonteCarloCmd())
	rootCmd.AddCommand(newTuneCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
