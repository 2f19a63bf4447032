// Command leafletworker collects weekly retailer leaflet prices for queued
// collector jobs.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "leafletworker",
	Short:         "Leaflet price collector",
	Long:          "Picks the newest queued collector job, extracts offers from retailer leaflets and records the run outcome.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
