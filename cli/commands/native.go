package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/quarry/cli/internal/ui"
)

func newNativeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "native <database> <sql>",
		Short: "Run a native SQL query",
		Long:  "Run a raw SQL string against a configured database, by name or id.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			id, err := resolveDatabaseArg(eng, args[0])
			if err != nil {
				return err
			}

			raw := map[string]any{
				"database": id,
				"type":     "native",
				"native":   map[string]any{"query": args[1]},
			}
			res := eng.processor.Process(cmd.Context(), 0, raw)
			ui.PrintResult(res)
			return nil
		},
	}
	return cmd
}
