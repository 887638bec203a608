// Command refiner runs prompt refinement sessions locally, over gRPC, or
// interactively, and inspects the stored history.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/danielpatrickdp/prompt-refiner/internal/config"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
)

// #region root
var (
	cfg *config.Config

	flagDB       string
	flagProvider string
	flagModel    string
	flagLogLevel string
	flagEnvFile  string
)

const defaultEnvFile = ".env"

var rootCmd = &cobra.Command{
	Use:   "refiner",
	Short: "Iteratively refine prompts with learned feature weights",
	Long: `refiner scores a prompt on a fixed set of linguistic features, asks a
text generator for a rewrite, and repeats until the quality score converges
or the iteration limit is reached. Feature weights are learned across
sessions and every iteration is stored in SQLite.

Settings come from REFINER_* environment variables, optionally loaded from a
dotenv file; flags override them. Variables already set in the environment
win over the file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(flagEnvFile); err != nil && flagEnvFile != defaultEnvFile {
			return fmt.Errorf("load %s: %w", flagEnvFile, err)
		}
		var opts []config.Option
		if flagDB != "" {
			opts = append(opts, config.WithDBPath(flagDB))
		}
		opts = append(opts, config.WithProvider(flagProvider, flagModel))
		if flagLogLevel != "" {
			var level logging.LogLevel
			if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
				return err
			}
			opts = append(opts, config.WithLogLevel(level))
		}
		loaded, err := config.Load(opts...)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (REFINER_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "text generator: ollama, openai, anthropic or echo (REFINER_PROVIDER)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "generator model name (REFINER_MODEL)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", defaultEnvFile, "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (REFINER_LOG_LEVEL)")
}
// #endregion root

// #region main
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
