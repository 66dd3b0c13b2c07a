package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/quarry/cli/internal/ui"
	"github.com/satishbabariya/quarry/cli/internal/watch"
	"github.com/satishbabariya/quarry/query/compile"
	"github.com/satishbabariya/quarry/query/normalize"
	"github.com/satishbabariya/quarry/query/resolve"
)

func newRunCommand() *cobra.Command {
	var (
		database string
		sqlOnly  bool
		watching bool
	)

	cmd := &cobra.Command{
		Use:   "run <query.json>",
		Short: "Run a structured query document",
		Long:  "Run a structured query document from a JSON file (or stdin with \"-\") against its database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			runOnce := func() error {
				return runQueryFile(cmd.Context(), eng, args[0], database, sqlOnly)
			}

			if !watching {
				return runOnce()
			}
			if args[0] == "-" {
				return fmt.Errorf("--watch needs a file, not stdin")
			}

			w, err := watch.New(args[0], func() error {
				if err := runQueryFile(cmd.Context(), eng, args[0], database, sqlOnly); err != nil {
					ui.PrintError("%v", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			ui.PrintInfo("watching %s, press ctrl-c to stop", args[0])
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "database", "", "database name or id overriding the document's database")
	cmd.Flags().BoolVar(&sqlOnly, "sql-only", false, "compile and print SQL without executing")
	cmd.Flags().BoolVar(&watching, "watch", false, "re-run whenever the file changes")

	return cmd
}

func runQueryFile(ctx context.Context, eng *engine, path, database string, sqlOnly bool) error {
	raw, err := readQueryDocument(path)
	if err != nil {
		return err
	}
	if database != "" {
		id, err := resolveDatabaseArg(eng, database)
		if err != nil {
			return err
		}
		raw["database"] = id
	}

	if sqlOnly {
		return printCompiled(ctx, eng, raw)
	}

	res := eng.processor.Process(ctx, 0, raw)
	ui.PrintResult(res)
	return nil
}

func readQueryDocument(path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read query document: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse query document: %w", err)
	}
	return raw, nil
}

// resolveDatabaseArg accepts a configured database's name or numeric
// id.
func resolveDatabaseArg(eng *engine, arg string) (int64, error) {
	if db, ok := eng.cfg.DatabaseByName(arg); ok {
		return db.ID, nil
	}
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err == nil {
		if _, ok := eng.cfg.Database(id); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("database %q is not configured", arg)
}

// printCompiled runs the front half of the pipeline and prints the SQL
// instead of executing it.
func printCompiled(ctx context.Context, eng *engine, raw map[string]any) error {
	q, err := normalize.Query(raw)
	if err != nil {
		return err
	}
	db, ok := eng.cfg.Database(q.Database)
	if !ok {
		return fmt.Errorf("database %d is not configured", q.Database)
	}
	provider, err := eng.resolver.MetadataProvider(ctx, q.Database)
	if err != nil {
		return err
	}
	resolved, err := resolve.Query(ctx, provider, q)
	if err != nil {
		return err
	}
	native, err := compile.Compile(ctx, compile.Env{Metadata: provider}, db.Engine, resolved)
	if err != nil {
		return err
	}
	ui.PrintSQL(native.SQL, native.Args)
	return nil
}
