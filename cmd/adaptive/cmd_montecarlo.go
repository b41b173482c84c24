package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/montecarlo"
)

func newMonteCarloCmd() *cobra.Command {
	var from, to, timeframe, method string
	var runs int
	var seed int64

	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "Backtest a range, then resample the trade sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			tr, err := parseRange(from, to)
			if err != nil {
				return err
			}

			run, err := rt.engine.Run(cmd.Context(), backtest.Request{
				Symbol:    flagSymbol,
				Timeframe: domain.Timeframe(timeframe),
				Range:     tr,
				Config:    domain.DefaultStrategyConfig(flagSymbol),
			})
			if err != nil {
				return err
			}

			mcCfg := rt.cfg.MonteCarlo
			mcCfg.Method = montecarlo.Method(method)
			mcCfg.NRuns = runs
			mcCfg.Seed = seed
			mcCfg.InitialCapital = rt.cfg.Learner.InitialCapital

			sim, err := montecarlo.Simulate(run.Trades, mcCfg)
			if err != nil {
				return err
			}

			fmt.Printf("simulation %s  method=%s  runs=%d  seed=%d\n", sim.ID, sim.Method, sim.NRuns, sim.Seed)
			eq := sim.TerminalEquity
			fmt.Printf("terminal equity: p5=%.2f p25=%.2f p50=%.2f p75=%.2f p95=%.2f\n",
				eq.P5, eq.P25, eq.P50, eq.P75, eq.P95)
			dd := sim.MaxDrawdown
			fmt.Printf("max drawdown:    p5=%.2f%% p25=%.2f%% p50=%.2f%% p75=%.2f%% p95=%.2f%%\n",
				dd.P5*100, dd.P25*100, dd.P50*100, dd.P75*100, dd.P95*100)
			fmt.Printf("ruin probability: %.4f\n", sim.RuinProbability)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "range end (RFC3339)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "5m", "bar timeframe")
	cmd.Flags().StringVar(&method, "method", string(montecarlo.Bootstrap), "BOOTSTRAP or SHUFFLE")
	cmd.Flags().IntVar(&runs, "runs", 5000, "number of resampling trials")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed")
	return cmd
}
