package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promptforge/internal/config"
	"promptforge/internal/logging"
)

var (
	// Global flags
	configPath  string
	templateDir string
	debug       bool

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "promptforge",
	Short: "promptforge - adaptive instruction construction pipeline",
	Long: `promptforge builds structured system prompts from template fragments.

A task description is classified, reconciled with caller context, matched
against a template library, composed into a single instruction document,
then optimized and quality-scored before rendering.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if templateDir != "" {
			cfg.TemplateDir = templateDir
		}
		if debug {
			cfg.Debug = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := logging.Initialize(cfg.Debug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "promptforge.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&templateDir, "templates", "t", "", "Template directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(constructCmd)
	rootCmd.AddCommand(templatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
