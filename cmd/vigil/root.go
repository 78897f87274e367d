package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vigil/internal/config"
	"github.com/ShayCichocki/vigil/internal/core"
)

var (
	flagConfig  string
	flagStorage string
	flagMode    string
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Validation learning core",
	Long: `Vigil observes validation outcomes, learns statistical patterns from
them, and serves insights back to the host system.

The learning core is safety-first: it runs isolated from the validation
path, degrades to a no-op when disabled or resource constrained, and
never lets a learning failure reach the caller.

Inspect its state with:
  vigil health                # mode, safety state, counters
  vigil insights -c key=val   # query insights for a context
  vigil trends                # outcome trends over time windows
  vigil knowledge [subject]   # accumulated knowledge
  vigil replay <file>         # feed recorded events through the core`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagStorage, "storage", "", "Override the learning storage directory")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "Override the learning mode (disabled|conservative|standard|advanced)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// openCore builds a Core from the configured path, honoring the --storage
// and --mode overrides via the environment bindings.
func openCore() (*core.Core, error) {
	if flagStorage != "" {
		os.Setenv("VIGIL_STORAGE_PATH", flagStorage)
	}
	if flagMode != "" {
		os.Setenv("VIGIL_LEARNING_MODE", flagMode)
	}

	ctrl, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	c, err := core.New(ctrl)
	if err != nil {
		return nil, fmt.Errorf("initialize learning core: %w", err)
	}
	return c, nil
}
