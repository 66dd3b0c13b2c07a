package compile

import (
	"fmt"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/query/sqlgen"
)

// DialectFor resolves the rendering capability bundle for one driver.
// Every capability resolves through the hierarchy, so a driver only
// overriding quoting still gets the sql-level defaults for the rest.
func DialectFor(name string) (*sqlgen.Dialect, error) {
	if err := driver.Default.LoadIfNeeded(name); err != nil {
		return nil, err
	}
	if !driver.Default.IsConcrete(name) {
		return nil, fmt.Errorf("driver %s is abstract and cannot compile queries", name)
	}

	d := &sqlgen.Dialect{Driver: name}
	var err error
	if d.Quote, err = driver.QuoteIdentifier.For(name); err != nil {
		return nil, err
	}
	if d.Placeholder, err = driver.Placeholder.For(name); err != nil {
		return nil, err
	}
	if d.BooleanLiteral, err = driver.BooleanLiteral.For(name); err != nil {
		return nil, err
	}
	if d.DateBucket, err = driver.DateBucket.For(name); err != nil {
		return nil, err
	}
	if d.MaxIdentifierBytes, err = driver.MaxIdentifierBytes.For(name); err != nil {
		return nil, err
	}
	if d.SupportsOffset, err = driver.SupportsOffset.For(name); err != nil {
		return nil, err
	}
	if d.SupportsILike, err = driver.SupportsILike.For(name); err != nil {
		return nil, err
	}
	return d, nil
}
