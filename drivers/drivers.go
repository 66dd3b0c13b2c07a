// Package drivers pulls every bundled driver package into the build so
// their loaders are registered. Binaries that only need a subset can
// import the individual packages instead.
package drivers

import (
	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/drivers/mysql"
	"github.com/satishbabariya/quarry/drivers/postgres"
	"github.com/satishbabariya/quarry/drivers/sqlite"
)

// All lists the bundled driver names.
var All = []string{postgres.Name, mysql.Name, sqlite.Name}

// LoadAll eagerly loads every bundled driver. Lazy loading through the
// registry makes this optional; the CLI uses it so `drivers` can list
// capabilities without a query.
func LoadAll() error {
	for _, name := range All {
		if err := driver.Default.LoadIfNeeded(name); err != nil {
			return err
		}
	}
	return nil
}
