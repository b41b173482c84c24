package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/walkforward"
)

func newWalkForwardCmd() *cobra.Command {
	var from, to, timeframe string

	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Run walk-forward validation over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			tr, err := parseRange(from, to)
			if err != nil {
				return err
			}

			opt := walkforward.NewOptimizer(rt.engine, rt.searcher, rt.scorer,
				rt.cfg.Search.Space, rt.cfg.WalkForwardConfig())
			job, err := opt.Run(cmd.Context(), flagSymbol, domain.Timeframe(timeframe), tr,
				domain.DefaultStrategyConfig(flagSymbol))
			if err != nil {
				return err
			}

			fmt.Printf("job %s  status=%s  windows=%d  robustness=%.4f\n",
				job.ID, job.Status, len(job.Windows), job.RobustnessScore)
			for _, w := range job.Windows {
				tag := ""
				if w.Degenerate {
					tag = " (degenerate)"
				}
				fmt.Printf("  [%d] %s -> %s  status=%s  oos_trades=%d  oos_pnl=%.2f%s\n",
					w.Index, w.Test.From.Format("2006-01-02"), w.Test.To.Format("2006-01-02"),
					w.Status, w.OutOfSample.TotalTrades, w.OutOfSample.NetPnL, tag)
			}
			oos := job.OutOfSample
			fmt.Printf("pooled OOS: trades=%d win_rate=%.2f sharpe=%.2f max_dd=%.2f%%\n",
				oos.TotalTrades, oos.WinRate, oos.SharpeRatio, oos.MaxDrawdown*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "range end (RFC3339)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "5m", "bar timeframe")
	return cmd
}
