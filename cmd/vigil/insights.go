package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	insightContext []string
	insightJSON    bool
	insightPredict bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Query learned insights for a validation context",
	Long: `Query the learning core for insights relevant to a validation context.

The context is given as repeated key=value pairs. Values that parse as
numbers or booleans are typed accordingly; everything else is a string.

Examples:
  vigil insights -c validator=schema -c field=email
  vigil insights -c validator=range --predict`,
	RunE: runInsights,
}

func init() {
	insightsCmd.Flags().StringArrayVarP(&insightContext, "context", "c", nil, "Context entry as key=value (repeatable)")
	insightsCmd.Flags().BoolVar(&insightJSON, "json", false, "Emit raw JSON")
	insightsCmd.Flags().BoolVar(&insightPredict, "predict", false, "Predict the outcome instead of generating insights")
}

func runInsights(cmd *cobra.Command, args []string) error {
	ctx, err := parseContext(insightContext)
	if err != nil {
		return err
	}

	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	if insightPredict {
		pred, ok := c.PredictOutcome(ctx)
		if !ok {
			fmt.Println("No prediction available (learning disabled or not enough history).")
			return nil
		}
		return printJSON(pred)
	}

	insights, ok := c.QueryInsights(ctx)
	if !ok {
		fmt.Println("No insights available (learning disabled or not enough history).")
		return nil
	}
	if insightJSON {
		return printJSON(insights)
	}

	fmt.Println(titleStyle.Render("Insights"))
	fmt.Printf("  type:        %s\n", insights.InsightType)
	fmt.Printf("  confidence:  %.2f\n", insights.Confidence)
	for _, r := range insights.Recommendations {
		fmt.Printf("  [%s] %s %s\n", r.Risk, r.Message, dimStyle.Render(fmt.Sprintf("(score %.2f)", r.Score)))
	}
	for _, p := range insights.Predictions {
		fmt.Printf("  %s = %.2f %s\n", p.Metric, p.Value, dimStyle.Render(fmt.Sprintf("(n=%d)", p.SampleSize)))
	}
	if len(insights.PatternsMatched) > 0 {
		fmt.Printf("  patterns: %s\n", strings.Join(insights.PatternsMatched, ", "))
	}
	return nil
}

// parseContext converts key=value pairs into a typed context map.
func parseContext(pairs []string) (map[string]any, error) {
	ctx := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context entry %q, expected key=value", pair)
		}
		ctx[key] = typedValue(value)
	}
	return ctx, nil
}

func typedValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
