package platform

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies migrations from migrationsDir to the public schema.
// Schema migrations are out of scope for this repo (spec.md §1); when
// migrationsDir is empty this is a no-op so the process still starts cleanly
// against an operator-managed schema.
func RunMigrations(databaseURL, migrationsDir string) error {
	if migrationsDir == "" {
		return nil
	}

	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsDir),
		databaseURL,
	)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}
