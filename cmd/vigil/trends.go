package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show validation outcome trends",
	Long: `Summarize stored validation outcomes over the last 24 hours, the last
7 days, and overall: volume, success rate, average confidence, and the
per-source breakdown.`,
	RunE: runTrends,
}

func runTrends(cmd *cobra.Command, args []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	trends, ok := c.AnalyzeTrends()
	if !ok {
		fmt.Println("No trends available (learning disabled or not enough history).")
		return nil
	}
	return printJSON(trends)
}
