package store

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFiles embed.FS

// NewMigrator binds the embedded migrations for dialect to an open database driver.
func NewMigrator(dialect DatabaseType, databaseName string, driver database.Driver) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, fmt.Sprintf("migrations/%s", dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s migrations: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to init migrator: %w", err)
	}
	return m, nil
}
