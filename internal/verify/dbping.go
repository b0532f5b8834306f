package verify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Drivers for the engines the database config supports.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/systmms/provops/internal/errors"
)

// driverNames maps the configured database engine to its sql driver.
var driverNames = map[string]string{
	"postgres": "postgres",
	"mysql":    "mysql",
}

const pingTimeout = 10 * time.Second

// OpenDatabase opens a connection pool for the given engine and DSN. The
// caller owns the returned handle and must Close it.
func OpenDatabase(engine, dsn string) (*sql.DB, error) {
	driver, ok := driverNames[engine]
	if !ok {
		return nil, &errors.ConfigError{
			Field:      "database.engine",
			Value:      engine,
			Message:    "unsupported database engine",
			Suggestion: "Use one of: postgres, mysql",
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", engine, err)
	}
	return db, nil
}

// DSNProbe returns a ConnectivityProbe that opens a fresh connection for
// the given engine and DSN, runs the health query, and closes it again.
func DSNProbe(engine, dsn string) ConnectivityProbe {
	return func(ctx context.Context) error {
		db, err := OpenDatabase(engine, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		return PingDatabase(ctx, db)
	}
}

// PingDatabase verifies the database answers a trivial query end to end.
// A plain Ping can succeed against a proxy while the backend is down, so
// this runs SELECT 1 through the full path.
func PingDatabase(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health query failed: %w", err)
	}
	return nil
}
