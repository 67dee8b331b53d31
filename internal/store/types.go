package store

import "strings"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
}

// ParseDSN picks the backend from the DSN scheme; anything that is not a
// postgres URL is treated as a SQLite file path.
func ParseDSN(dsn string) DBConfig {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DBConfig{DSN: dsn, Type: DBTypePostgres}
	}
	return DBConfig{DSN: dsn, Type: DBTypeSQLite}
}
