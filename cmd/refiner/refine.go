package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/prompt-refiner/internal/metrics"
	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
	"github.com/danielpatrickdp/prompt-refiner/internal/transport"
)

// #region refine-cmd
var (
	refineMethod    string
	refineMaxIter   int
	refineThreshold float64
	refineGoals     []string
	refineJSON      bool
	refineRemote    string
)

var refineCmd = &cobra.Command{
	Use:   "refine [prompt]",
	Short: "Refine a prompt until its quality score converges",
	Long: `Run one refinement session and print the iteration trail.

The prompt is taken from the arguments, or from stdin when none are given.
--method auto picks the method with the lowest recent RMSE in the stored
session metrics, falling back to ENSEMBLE. --remote sends the request to a
running "refiner serve" instead of refining locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := promptFrom(args)
		if err != nil {
			return err
		}
		req := orchestrator.Request{
			Prompt:               prompt,
			MaxIterations:        refineMaxIter,
			ConvergenceThreshold: refineThreshold,
			OptimizationGoals:    refineGoals,
		}
		ctx := cmd.Context()

		var res *orchestrator.Result
		if refineRemote != "" {
			if req.RegressionMethod, err = parseMethodFlag(refineMethod); err != nil {
				return err
			}
			client, err := transport.NewClient(refineRemote)
			if err != nil {
				return err
			}
			defer client.Close()
			res, err = client.Refine(ctx, req)
			if err != nil {
				return err
			}
		} else {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if req.RegressionMethod, err = resolveMethod(ctx, a, refineMethod); err != nil {
				return err
			}
			res, err = a.Refine(ctx, req)
			if err != nil {
				return err
			}
		}

		if refineJSON {
			return printJSON(res)
		}
		printResult(res)
		return nil
	},
}

func init() {
	refineCmd.Flags().StringVar(&refineMethod, "method", "ENSEMBLE", "LINEAR, POLYNOMIAL, NEURAL, ENSEMBLE or auto")
	refineCmd.Flags().IntVar(&refineMaxIter, "max-iterations", orchestrator.DefaultMaxIterations, "iteration limit (1-50)")
	refineCmd.Flags().Float64Var(&refineThreshold, "threshold", orchestrator.DefaultConvergenceThreshold, "quality score that ends the session")
	refineCmd.Flags().StringSliceVar(&refineGoals, "goal", nil, "optimization goal: CLARITY, RELEVANCE, COMPLETENESS or SPECIFICITY (repeatable)")
	refineCmd.Flags().BoolVar(&refineJSON, "json", false, "print the result as JSON")
	refineCmd.Flags().StringVar(&refineRemote, "remote", envOr("REFINER_REMOTE", ""), "address of a refiner gRPC server")
	rootCmd.AddCommand(refineCmd)
}
// #endregion refine-cmd

// #region method-selection
func parseMethodFlag(name string) (regression.Method, error) {
	if strings.EqualFold(name, "auto") {
		return 0, fmt.Errorf("--method auto needs local history; pick a method for --remote")
	}
	return regression.ParseMethod(name)
}

// resolveMethod maps the --method flag to a Method, consulting the stored
// session metrics for "auto".
func resolveMethod(ctx context.Context, a *app, name string) (regression.Method, error) {
	if !strings.EqualFold(name, "auto") {
		return regression.ParseMethod(name)
	}
	rec, ok, err := orchestrator.NewMethodAdvisor(a.store.DB()).Best(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		a.logger.Info("[CLI] not enough history for auto, using default", "method", orchestrator.DefaultMethod.String())
		return orchestrator.DefaultMethod, nil
	}
	a.logger.Info("[CLI] auto-selected method", "method", rec.Method.String(), "rmse", rec.RMSE, "sessions", rec.Sessions)
	return rec.Method, nil
}
// #endregion method-selection

// #region output
func promptFrom(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printResult(res *orchestrator.Result) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Refinement "+res.SessionID+" ==="))
	for _, it := range res.Iterations {
		fmt.Printf("  [%d] quality=%.4f predicted=%.4f %s\n", it.Iteration, it.QualityScore, it.PredictedScore, gray(it.Decision))
		fmt.Printf("      %s\n", it.Prompt)
	}
	fmt.Println()

	stop := yellow(string(res.StopReason))
	if res.Converged {
		stop = green(string(res.StopReason))
	}
	fmt.Printf("Stop:        %s after %d iteration(s)\n", stop, res.TotalIterations)
	fmt.Printf("Method:      %s\n", res.RegressionMethod)
	fmt.Printf("Score:       %.4f -> %.4f", res.InitialScore, res.FinalScore)
	if res.ImprovementPercentage != nil {
		fmt.Printf(" (%+.1f%%)", *res.ImprovementPercentage)
	}
	fmt.Println()
	fmt.Printf("Regression:  %s", res.RegressionResult.Status)
	if res.RegressionResult.Status == metrics.StatusSuccess {
		fmt.Printf(" rmse=%.4f r2=%.4f n=%d", res.RegressionResult.RMSE, res.RegressionResult.RSquared, res.RegressionResult.TrainingDataSize)
	}
	fmt.Println()
	fmt.Printf("\n%s\n%s\n", cyan("Refined prompt:"), res.RefinedPrompt)
}
// #endregion output
