package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// #region sessions-cmd
var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, show and delete stored refinement sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStores()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.store.ListSessions(cmd.Context(), sessionsLimit)
		if err != nil {
			return err
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		if len(list) == 0 {
			fmt.Printf("  %s\n", gray("No sessions"))
			return nil
		}
		for _, s := range list {
			mark := gray("○")
			if s.Converged {
				mark = green("●")
			}
			fmt.Printf("%s %s  %-10s %2d it  %.4f -> %.4f  %s\n", mark, s.SessionID, s.Method, s.Iterations,
				s.InitialScore, s.FinalScore, s.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("    %s\n", gray(truncate(s.OriginalPrompt, 72)))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show SESSION_ID",
	Short: "Show a session's iterations, decisions and metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStores()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		recs, err := a.store.SessionRecords(ctx, args[0])
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("session %s not found", args[0])
		}
		trail, err := a.decisions.List(ctx, args[0])
		if err != nil {
			return err
		}
		decisions := make(map[int]string, len(trail))
		for _, d := range trail {
			decisions[d.Iteration] = d.Decision
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== Session "+args[0]+" ==="))
		fmt.Printf("Original: %s\n\n", recs[0].OriginalPrompt)
		for _, r := range recs {
			fmt.Printf("  [%d] quality=%.4f predicted=%.4f tokens=%d %s\n", r.Iteration, r.QualityScore,
				r.PredictedScore, r.PromptTokens, gray(decisions[r.Iteration]))
			fmt.Printf("      %s\n", r.RefinedPrompt)
		}

		m, err := a.store.SessionMetrics(ctx, args[0])
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("\nMetrics (%s, n=%d): %s mse=%.4f rmse=%.4f mae=%.4f r2=%.4f\n",
			m.Method, m.TrainingDataSize, m.Status, m.MSE, m.RMSE, m.MAE, m.RSquared)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete SESSION_ID",
	Short: "Delete a session's records and metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStores()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.DeleteSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("session %s not found", args[0])
		}
		fmt.Printf("Deleted %d record(s) from session %s\n", n, args[0])
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "maximum sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
// #endregion sessions-cmd

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
