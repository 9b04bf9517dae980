// Package commands implements the ledgerctl command tree.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"ledgerscan/internal/app"
	"ledgerscan/internal/config"
	"ledgerscan/internal/logging"
	"ledgerscan/internal/port"
)

// Deps are the seams the commands build on. Zero fields fall back to the
// environment configuration and the registered provider backends.
type Deps struct {
	LoadConfig  func() (*config.Config, error)
	NewProvider func(*config.ProvidersConfig) (port.ExtractionProvider, error)
}

func (d Deps) withDefaults() Deps {
	if d.LoadConfig == nil {
		d.LoadConfig = config.Load
	}
	if d.NewProvider == nil {
		d.NewProvider = app.NewProvider
	}
	return d
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(deps Deps) *cobra.Command {
	deps = deps.withDefaults()

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Ingest, process and export financial documents",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newIngestCommand(deps),
		newProcessCommand(deps),
		newReprocessCommand(deps),
		newExportCommand(deps),
		newRunCommand(deps),
		newTokenCommand(deps),
	)

	return rootCmd
}

// loadConfig reads configuration and installs the logger on stderr so that
// command output on stdout stays machine readable.
func (d Deps) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr()))
	return cfg, nil
}
