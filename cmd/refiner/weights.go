package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

var weightsTop int

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show learned feature weights",
	Long: `List the persisted feature weights with their update statistics.
--top limits the listing to the most frequently updated features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStores()
		if err != nil {
			return err
		}
		defer a.Close()

		var list []weights.Stat
		if weightsTop > 0 {
			list, err = a.weights.MostUpdated(cmd.Context(), weightsTop)
		} else {
			list, err = a.weights.List(cmd.Context())
		}
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No learned weights yet; sessions start from the default table.")
			return nil
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s\n", yellow(fmt.Sprintf("%-22s %8s %8s %8s %8s %8s", "feature", "weight", "updates", "min", "max", "avg")))
		for _, s := range list {
			fmt.Printf("%-22s %8.4f %8d %8.4f %8.4f %8.4f\n", s.FeatureName, s.Weight, s.UpdateCount,
				s.MinWeight, s.MaxWeight, s.AverageWeight)
		}
		return nil
	},
}

func init() {
	weightsCmd.Flags().IntVar(&weightsTop, "top", 0, "show only the N most updated features")
	rootCmd.AddCommand(weightsCmd)
}
