package store

import (
	"fmt"
	"strings"
)

// OpenEventStore opens an event store from a "driver:dsn" string.
// Supported drivers are sqlite, mysql and postgres, for example
// "sqlite:bifrost.db" or "mysql:user:pass@tcp(localhost:3306)/bifrost".
// An empty string returns a nil store.
func OpenEventStore(spec string) (EventStore, error) {
	if spec == "" {
		return nil, nil
	}

	driver, dsn, ok := strings.Cut(spec, ":")
	if !ok || dsn == "" {
		return nil, fmt.Errorf("store: malformed event store %q, want driver:dsn", spec)
	}

	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "mysql":
		return NewMySQLFromDSN(dsn)
	case "postgres", "postgresql":
		return NewPostgresFromDSN(dsn)
	default:
		return nil, fmt.Errorf("store: unknown event store driver %q", driver)
	}
}
