package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// usageCmd represents the usage command
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show billing usage for the current month",
	Long: `Show the amount used this month and the subscription limit, in dollars.
Both values are requested from the proxy concurrently.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		u, err := newUsageReporter(cfg).Report(cmd.Context())
		if err != nil {
			return fmt.Errorf("requesting usage: %w", err)
		}
		if u == nil {
			// the reason has already been shown
			return nil
		}

		fmt.Printf("Used: %s\n", formatDollars(u.Used))
		fmt.Printf("Subscription: %s\n", formatDollars(u.Subscription))
		return nil
	},
}

func formatDollars(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
