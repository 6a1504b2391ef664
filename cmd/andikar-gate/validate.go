package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkkmi/andikar-gate/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration file without starting the server.

Examples:
  andikar-gate validate
  andikar-gate validate --config /etc/andikar/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid")
	fmt.Printf("  Humanizer:  %s%s\n", cfg.Humanizer.URL, cfg.Humanizer.Path)
	fmt.Printf("  Storage:    %s\n", cfg.Database.Driver)
	fmt.Printf("  Rate limit: %s store, %ds window\n", cfg.RateLimit.Store, cfg.RateLimit.WindowSecs)
	fmt.Printf("  Tiers:      %d\n", len(cfg.Tiers))

	fmt.Println()
	fmt.Println("Hot-reloadable fields:")
	for _, f := range config.ReloadableFields() {
		fmt.Printf("  %s\n", f)
	}
	fmt.Println("Restart-required fields:")
	for _, f := range config.NonReloadableFields() {
		fmt.Printf("  %s\n", f)
	}
	return nil
}
