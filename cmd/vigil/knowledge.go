package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var knowledgeType string

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge [subject]",
	Short: "Inspect the accumulated knowledge base",
	Long: `Without arguments, print a summary of the knowledge base. With a
subject, list the entries recorded about it.

Subjects follow the "{event_type}:{source_system}" convention for
pattern facts, and "{source_system}" for system behavior facts.

Examples:
  vigil knowledge
  vigil knowledge schema_check:pipeline
  vigil knowledge pipeline --type system_behavior`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKnowledge,
}

func init() {
	knowledgeCmd.Flags().StringVar(&knowledgeType, "type", "", "Filter by knowledge type")
}

func runKnowledge(cmd *cobra.Command, args []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	if len(args) == 0 {
		summary, ok := c.KnowledgeSummary()
		if !ok {
			fmt.Println("Knowledge base unavailable (learning disabled or below standard mode).")
			return nil
		}
		fmt.Println(titleStyle.Render("Knowledge Base"))
		fmt.Printf("  entries:         %d\n", summary.TotalEntries)
		fmt.Printf("  avg confidence:  %.2f\n", summary.AverageConfidence)
		if !summary.LastUpdated.IsZero() {
			fmt.Printf("  last updated:    %s\n", summary.LastUpdated.Format("2006-01-02 15:04:05"))
		}
		for ktype, count := range summary.EntriesByType {
			fmt.Printf("  %-24s %d\n", ktype+":", count)
		}
		return nil
	}

	result, ok := c.QueryKnowledge(args[0], knowledgeType)
	if !ok {
		fmt.Println("Knowledge base unavailable (learning disabled or below standard mode).")
		return nil
	}
	if result.TotalEntries == 0 {
		fmt.Printf("No knowledge recorded about %q.\n", args[0])
		return nil
	}
	return printJSON(result)
}
