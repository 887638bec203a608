package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Refine prompts interactively",
	Long: `Start an interactive shell. Each line is refined as a prompt.

Commands:
  :method NAME      switch regression method (LINEAR, POLYNOMIAL, NEURAL, ENSEMBLE, auto)
  :iterations N     set the iteration limit
  :threshold X      set the convergence threshold
  quit | exit       leave the shell`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cyan := color.New(color.FgCyan).SprintFunc()
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            cyan("refiner> "),
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		sess := replSession{method: "ENSEMBLE", req: orchestrator.Request{
			MaxIterations:        orchestrator.DefaultMaxIterations,
			ConvergenceThreshold: orchestrator.DefaultConvergenceThreshold,
		}}
		red := color.New(color.FgRed).SprintFunc()
		fmt.Println("Prompt refiner ready. Type a prompt, or 'quit' to exit.")

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "quit" || line == "exit":
				return nil
			case strings.HasPrefix(line, ":"):
				if err := sess.command(line); err != nil {
					fmt.Printf("%s %v\n", red("Error:"), err)
				}
				continue
			}

			req := sess.req
			req.Prompt = line
			if req.RegressionMethod, err = resolveMethod(cmd.Context(), a, sess.method); err != nil {
				fmt.Printf("%s %v\n", red("Error:"), err)
				continue
			}
			res, err := a.Refine(cmd.Context(), req)
			if err != nil {
				fmt.Printf("%s %v\n", red("Error:"), err)
				continue
			}
			printResult(res)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// replSession holds the settings changed by ":" commands.
type replSession struct {
	method string
	req    orchestrator.Request
}

func (s *replSession) command(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return fmt.Errorf("usage: %s VALUE", fields[0])
	}
	switch fields[0] {
	case ":method":
		if !strings.EqualFold(fields[1], "auto") {
			if _, err := regression.ParseMethod(fields[1]); err != nil {
				return err
			}
		}
		s.method = fields[1]
	case ":iterations":
		var n int
		if _, err := fmt.Sscan(fields[1], &n); err != nil || n < 1 {
			return fmt.Errorf("invalid iteration limit %q", fields[1])
		}
		s.req.MaxIterations = n
	case ":threshold":
		var x float64
		if _, err := fmt.Sscan(fields[1], &x); err != nil || x < 0 || x > 1 {
			return fmt.Errorf("invalid threshold %q", fields[1])
		}
		s.req.ConvergenceThreshold = x
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
	return nil
}
