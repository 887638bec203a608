package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var metricsJSON bool

var metricsCmd = &cobra.Command{
	Use:   "metrics [SESSION_ID]",
	Short: "Show regression accuracy per method or for one session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStores()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			m, err := a.store.SessionMetrics(ctx, args[0])
			if err != nil {
				return err
			}
			if metricsJSON {
				return printJSON(m)
			}
			fmt.Printf("%s  %s  %s  n=%d\n", m.SessionID, m.Method, m.Status, m.TrainingDataSize)
			fmt.Printf("  mse=%.4f rmse=%.4f mae=%.4f r2=%.4f\n", m.MSE, m.RMSE, m.MAE, m.RSquared)
			return nil
		}

		summary, err := a.store.MetricsSummary(ctx)
		if err != nil {
			return err
		}
		if metricsJSON {
			return printJSON(summary)
		}
		if len(summary) == 0 {
			fmt.Println("No successful sessions yet.")
			return nil
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s\n", yellow(fmt.Sprintf("%-11s %8s %8s %8s %8s %8s %8s", "method", "sessions", "mse", "rmse", "mae", "r2", "final")))
		for _, s := range summary {
			fmt.Printf("%-11s %8d %8.4f %8.4f %8.4f %8.4f %8.4f\n", s.Method, s.Sessions, s.AvgMSE, s.AvgRMSE,
				s.AvgMAE, s.AvgRSquared, s.AvgFinalScore)
		}
		return nil
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(metricsCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
