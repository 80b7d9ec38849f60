package storage

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open constructs the Database selected by backend. For file backends the
// location is a path, for postgres it is a DSN.
func Open(backend, location string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory, "":
		return NewMemDB(), nil
	case BackendLevelDB:
		return NewLevelDB(location)
	case BackendBolt:
		return NewBoltDB(location)
	case BackendSQLite, BackendPostgres:
		return NewSQLDB(backend, location)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
