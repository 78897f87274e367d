package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/vigil/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show the effective configuration",
	Long: `Print the effective learning core configuration after defaults, the
config file, and VIGIL_* environment overrides have been applied.

Without arguments, prints every setting as YAML. With a key, prints the
single value.

Configuration is read from --config, or from config.yaml in the XDG
config directory otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	if flagStorage != "" {
		os.Setenv("VIGIL_STORAGE_PATH", flagStorage)
	}
	if flagMode != "" {
		os.Setenv("VIGIL_LEARNING_MODE", flagMode)
	}

	ctrl, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if len(args) == 1 {
		value := ctrl.Get(args[0])
		if value == nil {
			return fmt.Errorf("unknown configuration key %q", args[0])
		}
		fmt.Printf("%v\n", value)
		return nil
	}

	out, err := yaml.Marshal(ctrl.Settings())
	if err != nil {
		return fmt.Errorf("render configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
