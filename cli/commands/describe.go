package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/quarry/cli/internal/ui"
	"github.com/satishbabariya/quarry/introspect"
)

func newDescribeCommand() *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "describe <database>",
		Short: "Introspect and print a database schema",
		Args:  cobra.ExactArgs(1),
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
			db, _ := eng.cfg.Database(id)
			if schema == "" {
				schema = db.Schema
			}

			spinner, _ := ui.Spinner("introspecting schema")
			conn, err := eng.pools.Acquire(cmd.Context(), db.Spec())
			if err != nil {
				spinner.Fail(err.Error())
				return err
			}
			catalog := introspect.NewCatalog(conn, db.Engine)
			tables, err := catalog.Tables(cmd.Context(), schema)
			if err != nil {
				spinner.Fail(err.Error())
				return err
			}
			spinner.Success(fmt.Sprintf("%d table(s)", len(tables)))

			var md strings.Builder
			fmt.Fprintf(&md, "# %s\n\n", db.Name)
			for _, t := range tables {
				fmt.Fprintf(&md, "## %s\n\n", t.Name)
				fields, err := catalog.Columns(cmd.Context(), t.Schema, t.Name)
				if err != nil {
					return err
				}
				md.WriteString("| column | type |\n|--------|------|\n")
				for _, f := range fields {
					fmt.Fprintf(&md, "| %s | %s |\n", f.Name, f.BaseType)
				}
				md.WriteString("\n")
			}
			return ui.PrintMarkdown(md.String())
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", "schema to introspect (default: the engine's default schema)")
	return cmd
}
