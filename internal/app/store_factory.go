package app

import (
	"fmt"

	"github.com/shrimpsizemoose/studentbulle/internal/store"
	"github.com/shrimpsizemoose/studentbulle/internal/store/postgres"
	"github.com/shrimpsizemoose/studentbulle/internal/store/sqlite"
)

func NewStore(dsn string) (store.Store, error) {
	config := store.ParseDSN(dsn)

	switch config.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(config.DSN)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(config.DSN)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
