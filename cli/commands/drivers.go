package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/quarry/cli/internal/ui"
	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/drivers"
)

func newDriversCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List available drivers and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := drivers.LoadAll(); err != nil {
				return err
			}

			names := driver.Default.Registered()
			sort.Strings(names)

			var rows [][]string
			for _, name := range names {
				if driver.Default.IsAbstract(name) || !driver.Default.IsConcrete(name) {
					continue
				}
				maxIdent, err := driver.MaxIdentifierBytes.For(name)
				if err != nil {
					return err
				}
				offset, err := driver.SupportsOffset.For(name)
				if err != nil {
					return err
				}
				ilike, err := driver.SupportsILike.For(name)
				if err != nil {
					return err
				}
				fullJoin, err := driver.SupportsFullJoin.For(name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					name,
					strings.Join(driver.Default.Parents(name), ", "),
					fmt.Sprintf("%d", maxIdent),
					yesNo(offset),
					yesNo(ilike),
					yesNo(fullJoin),
				})
			}

			ui.PrintTable(
				[]string{"driver", "parents", "max ident", "offset", "ilike", "full join"},
				rows,
			)
			return nil
		},
	}
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
