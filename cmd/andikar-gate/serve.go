package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkkmi/andikar-gate/bootstrap"
	"github.com/pkkmi/andikar-gate/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the Andikar Gate server.

The server will:
  - Load configuration from andikar.yaml (or --config)
  - Or load configuration from ANDIKAR_* environment variables
  - Open the configured storage backend
  - Gate humanize requests with quotas and rate limits
  - Degrade to a local transform when the upstream is down

Environment variables (for Docker deployments):
  ANDIKAR_HUMANIZER_URL     - Upstream humanizer URL (required)
  ANDIKAR_DATABASE_DRIVER   - Storage driver: memory or sqlite
  ANDIKAR_DATABASE_DSN      - Database path (default: andikar.db)
  ANDIKAR_SERVER_PORT       - Server port (default: 8080)
  ANDIKAR_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  andikar-gate serve
  andikar-gate serve --config /etc/andikar/config.yaml

  # Docker (env vars only):
  ANDIKAR_HUMANIZER_URL=https://web-production-3db6c.up.railway.app andikar-gate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set ANDIKAR_HUMANIZER_URL environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  ANDIKAR_HUMANIZER_URL=https://humanizer.example.com andikar-gate serve")
		return nil
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if !hasConfigFile {
		fmt.Println("Running with environment variables (no config file)")
	}

	return app.Run()
}
