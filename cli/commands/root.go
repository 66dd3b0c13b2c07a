// Package commands implements the quarry CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/quarry/cli/internal/ui"
	"github.com/satishbabariya/quarry/cli/internal/version"
	"github.com/satishbabariya/quarry/internal/debug"
)

var (
	configPath string
	verbose    bool
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:     "quarry",
		Short:   "Query compilation and execution engine",
		Long:    "Quarry compiles structured query documents to SQL and runs them against configured databases.",
		Version: version.Get().String(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug.Init(verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: .quarry.yaml on the search path)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCommand())
	root.AddCommand(newNativeCommand())
	root.AddCommand(newDriversCommand())
	root.AddCommand(newDescribeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}
