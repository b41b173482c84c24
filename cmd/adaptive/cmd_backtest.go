package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
)

func newBacktestCmd() *cobra.Command {
	var from, to, timeframe string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one backtest over a date range",
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

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(run)
			}
			m := run.Metrics
			fmt.Printf("run %s  status=%s\n", run.ID, run.Status)
			fmt.Printf("trades=%d  win_rate=%.2f  profit_factor=%.2f  sharpe=%.2f\n",
				m.TotalTrades, m.WinRate, m.ProfitFactor, m.SharpeRatio)
			fmt.Printf("max_drawdown=%.2f%%  net_pnl=%.2f  roi=%.2f%%\n",
				m.MaxDrawdown*100, m.NetPnL, m.ROI*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "range end (RFC3339)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "5m", "bar timeframe")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the full run as JSON")
	return cmd
}
