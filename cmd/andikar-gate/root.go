package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "andikar-gate",
	Short: "Subscription gateway for the Andikar humanizer service",
	Long: `Andikar Gate sits in front of a text humanizer service and adds
subscription tiers, word quotas, and per-user rate limiting.

Quick start:
  andikar-gate serve     # Start the gateway server

Management:
  andikar-gate users     # Manage users
  andikar-gate plans     # Show configured tiers
  andikar-gate usage     # View usage for a user
  andikar-gate validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "andikar.yaml", "config file path")
}
