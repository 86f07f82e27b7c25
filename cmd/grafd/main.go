// Command grafd serves the graph API and runs one-off graph operations.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"graf/internal/cfg"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	dbURL      string
	logLevel   string
}

// load reads the configuration and applies flag overrides.
func (f *rootFlags) load() (*cfg.Config, error) {
	config, err := cfg.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.dbURL != "" {
		config.DBURL = f.dbURL
	}
	if f.logLevel != "" {
		config.LogLevel = f.logLevel
	}
	if err := cfg.Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "grafd",
		Short:         "Labeled undirected graph store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("GRAF_CONFIG"), "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.dbURL, "db", "", "Database URL (SQLite path or postgres:// URL)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(flags), newOpCmd(flags))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var se *statusError
		if !errors.As(err, &se) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
