package runlog

import (
	"context"

	"github.com/rotisserie/eris"
)

// Open returns the Log for driver ("sqlite", "postgres" or "none") and
// migrates it.
func Open(ctx context.Context, driver, dsn string) (Log, error) {
	var (
		l   Log
		err error
	)
	switch driver {
	case "sqlite":
		l, err = OpenSQLite(dsn)
	case "postgres":
		l, err = OpenPostgres(ctx, dsn)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("runlog: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}
