// Cash Card Core - multi-tenant cash card service
//
// This is the main entry point. The default command serves the HTTP API;
// subcommands manage the schema and user accounts against the same
// configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/cashcard-core/migrations"

	"github.com/nerrad567/cashcard-core/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM so every command shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// cli carries state shared between the root command and its subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
}

// newRootCmd builds the command tree. Running it without a subcommand
// serves the API.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:     "cashcard",
		Short:   "Cash card service",
		Long:    "Serves the cash card REST API and manages its database and user accounts.",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), c.cfg)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", getConfigPath(),
		"path to the YAML config file (env CASHCARD_CONFIG)")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.userCmd(),
	)
	return root
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), c.cfg)
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses CASHCARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CASHCARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
