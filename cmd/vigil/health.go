package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vigil/internal/monitoring"
	"github.com/ShayCichocki/vigil/internal/safety"
)

var healthServe string

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	healthyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the learning core health status",
	Long: `Display the learning core operating mode, safety state, and counters.

With --serve, additionally exposes the counters as Prometheus metrics on
the given address until interrupted:

  vigil health --serve :9090`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthServe, "serve", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	status := c.HealthStatus()
	printHealth(status)

	if healthServe != "" {
		registry := prometheus.NewRegistry()
		if err := registry.Register(monitoring.NewCollector(c.Metrics())); err != nil {
			return fmt.Errorf("register metrics collector: %w", err)
		}

		// Pick up config edits while serving.
		if flagConfig != "" {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				if err := c.Config().Watch(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "config watch failed: %v\n", err)
				}
			}()
		}

		fmt.Printf("\nServing metrics on %s/metrics\n", healthServe)
		return http.ListenAndServe(healthServe, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return nil
}

func printHealth(status map[string]any) {
	fmt.Println(titleStyle.Render("Learning Core Health"))

	state := fmt.Sprintf("%v", status["status"])
	styled := healthyStyle.Render(state)
	if state != "healthy" {
		styled = degradedStyle.Render(state)
	}
	fmt.Printf("  status:         %s\n", styled)
	fmt.Printf("  mode:           %v\n", status["mode"])
	fmt.Printf("  enabled:        %v\n", status["enabled"])
	fmt.Printf("  safe_to_learn:  %v\n", status["safe_to_learn"])
	fmt.Println()

	counters := []string{
		"events_processed", "patterns_stored", "insights_generated",
		"predictions_made", "errors_encountered", "events_dropped",
	}
	for _, name := range counters {
		fmt.Printf("  %-20s %v\n", name+":", status[name])
	}
	fmt.Printf("  %-20s %.2f\n", "avg_processing_ms:", status["avg_processing_time_ms"])
	fmt.Printf("  %-20s %.1f\n", "memory_usage_mb:", status["memory_usage_mb"])
	fmt.Printf("  %-20s %.1f\n", "storage_usage_mb:", status["storage_usage_mb"])

	if cache, ok := status["pattern_cache"].(map[string]any); ok {
		fmt.Println()
		fmt.Println(titleStyle.Render("Pattern Cache"))
		keys := make([]string, 0, len(cache))
		for k := range cache {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-20s %v\n", k+":", cache[k])
		}
	}

	if breakers, ok := status["circuit_breakers"].([]safety.BreakerStatus); ok && len(breakers) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Circuit Breakers"))
		for _, b := range breakers {
			state := healthyStyle.Render("closed")
			if b.Open {
				state = degradedStyle.Render("open")
			}
			fmt.Printf("  %-24s %s %s\n", b.Operation, state,
				dimStyle.Render(fmt.Sprintf("(%d failures)", b.ErrorCount)))
		}
	}
}
