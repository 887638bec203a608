package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/replay"
)

var replayParallel int

var replayCmd = &cobra.Command{
	Use:   "replay FIXTURE.yaml",
	Short: "Replay fixture cases and check their outcomes",
	Long: `Run every case of a YAML fixture through the refinement loop with
scripted generator replies and an in-memory database, then compare each
result with the case's expectations. Exits non-zero when a case fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := replay.LoadFixture(args[0])
		if err != nil {
			return err
		}
		rc := replay.DefaultConfig()
		rc.Parallelism = replayParallel
		rc.LearningRate = cfg.LearningRate
		rc.Neural = cfg.Neural()
		rc.Logger = logging.NewLogger(cfg.LogLevel)

		results, err := replay.Replay(cmd.Context(), f, rc)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		if f.Description != "" {
			fmt.Println(f.Description)
		}
		for _, r := range results {
			if r.Passed {
				fmt.Printf("%s %s  %s after %d  %.4f -> %.4f\n", green("PASS"), r.ID, r.StopReason, r.Iterations,
					r.InitialScore, r.FinalScore)
				continue
			}
			fmt.Printf("%s %s\n", red("FAIL"), r.ID)
			for _, msg := range r.Failures {
				fmt.Printf("    %s\n", msg)
			}
		}

		s := replay.Summarize(results)
		fmt.Printf("\n%d cases: %d passed, %d failed (%d converged, %d exhausted, %d errors) mean final %.4f\n",
			s.Total, s.Passed, s.Failed, s.Converged, s.Exhausted, s.Errors, s.MeanFinalScore)
		if s.Failed > 0 {
			return fmt.Errorf("%d case(s) failed", s.Failed)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayParallel, "parallel", 1, "cases to run at once")
	rootCmd.AddCommand(replayCmd)
}
