package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/tune"
)

func newTuneCmd() *cobra.Command {
	var from, to, timeframe string
	var top int

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Search the parameter space over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			tr, err := parseRange(from, to)
			if err != nil {
				return err
			}

			job, err := rt.searcher.Run(cmd.Context(),
				tune.Target{Symbol: flagSymbol, Timeframe: domain.Timeframe(timeframe), Range: tr},
				domain.DefaultStrategyConfig(flagSymbol), rt.cfg.Search.Space, nil)
			if err != nil {
				return err
			}

			samples := job.Samples()
			fmt.Printf("job %s  mode=%s  status=%s  samples=%d\n", job.ID, job.Mode, job.Status(), len(samples))

			best := job.Best()
			if best != nil {
				fmt.Printf("best config %s  score=%.4f  trades=%d  max_dd=%.2f%%\n",
					best.Config.ID, *best.ActualScore, best.Metrics.TotalTrades, best.Metrics.MaxDrawdown*100)
				fmt.Printf("  sl_atr=%.2f tp_atr=%.2f min_conf=%.2f\n",
					best.Config.StopLossATR, best.Config.TakeProfitATR, best.Config.MinConfidence)
			}

			shown := 0
			for _, s := range samples {
				if s.Excluded || s.ActualScore == nil || shown >= top {
					continue
				}
				fmt.Printf("  score=%.4f trades=%d sl=%.2f tp=%.2f conf=%.2f\n",
					*s.ActualScore, s.Metrics.TotalTrades,
					s.Config.StopLossATR, s.Config.TakeProfitATR, s.Config.MinConfidence)
				shown++
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "range end (RFC3339)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "5m", "bar timeframe")
	cmd.Flags().IntVar(&top, "top", 10, "samples to print")
	return cmd
}
