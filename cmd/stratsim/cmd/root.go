package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stratsim",
	Short: "A strategy signal and execution simulation engine",
	Long: `Stratsim routes market-data bars through pluggable trading strategies
and simulates order execution against the signals they emit.

It provides tools for:
  - Running the engine with an HTTP control surface for loading strategies
  - Replaying historical bar data from CSV files
  - Simulating fills with configurable slippage, commission and fill mode
  - Journaling fills to CSV or SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
