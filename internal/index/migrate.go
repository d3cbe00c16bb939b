package index

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/matheus3301/wppdesk/internal/index/migrations"
)

// Migration reports the schema version before and after Migrate.
type Migration struct {
	From uint
	To   uint
}

// Stale reports whether the schema moved, meaning rows must be rebuilt from the store.
func (m Migration) Stale() bool { return m.From != m.To }

// Migrate brings the schema to the latest version. A dirty schema left by an interrupted
// run is dropped and recreated, since every row can be rebuilt from the JSON store.
func (db *DB) Migrate() (Migration, error) {
	m, err := db.migrator()
	if err != nil {
		return Migration{}, err
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return Migration{}, fmt.Errorf("index schema version: %w", err)
	case dirty:
		if err := m.Drop(); err != nil {
			return Migration{}, fmt.Errorf("drop dirty index schema: %w", err)
		}
		// Drop removes the driver's version table too, so start over with a fresh instance.
		if m, err = db.migrator(); err != nil {
			return Migration{}, err
		}
		from = 0
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Migration{}, fmt.Errorf("migrate index: %w", err)
	}
	to, _, err := m.Version()
	if err != nil {
		return Migration{}, fmt.Errorf("index schema version: %w", err)
	}
	return Migration{From: from, To: to}, nil
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("index migrations: %w", err)
	}
	drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("index migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite3", drv)
}
