package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus describes the schema version of a database
type MigrationStatus struct {
	Version uint
	Latest  uint
	Dirty   bool
	Applied bool
}

// Pending reports whether embedded migrations are newer than the database
func (s MigrationStatus) Pending() bool {
	return s.Version < s.Latest
}

// Migrator applies the embedded weather schema migrations
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a migrator against databaseURL
func NewMigrator(databaseURL string) (*Migrator, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config.ConnConfig)

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{m: m}, nil
}

// Close releases the source and database handles
func (mg *Migrator) Close() {
	if srcErr, dbErr := mg.m.Close(); srcErr != nil || dbErr != nil {
		log.WithFields(log.Fields{
			"source_error":   srcErr,
			"database_error": dbErr,
		}).Warn("Failed to close migrator cleanly")
	}
}

// Up applies every pending migration. It returns false when the schema was
// already current.
func (mg *Migrator) Up() (bool, error) {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to run migrations: %w", err)
	}
	return true, nil
}

// Down rolls back steps migrations
func (mg *Migrator) Down(steps int) (bool, error) {
	if steps <= 0 {
		return false, fmt.Errorf("steps must be positive, got %d", steps)
	}
	err := mg.m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return true, nil
}

// Status reports the applied version against the newest embedded migration
func (mg *Migrator) Status() (MigrationStatus, error) {
	latest, err := LatestMigrationVersion()
	if err != nil {
		return MigrationStatus{}, err
	}

	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{Latest: latest}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}

	return MigrationStatus{Version: version, Latest: latest, Dirty: dirty, Applied: true}, nil
}

// LatestMigrationVersion returns the highest version among the embedded files
func LatestMigrationVersion() (uint, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	versions := make([]uint, 0, len(entries))
	for _, entry := range entries {
		prefix, _, found := strings.Cut(entry.Name(), "_")
		if !found {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		versions = append(versions, uint(v))
	}
	if len(versions) == 0 {
		return 0, nil
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions[len(versions)-1], nil
}

// RunMigrationsWithURL applies all pending migrations against databaseURL,
// used at startup and by the container-backed tests
func RunMigrationsWithURL(databaseURL string) error {
	mg, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer mg.Close()

	changed, err := mg.Up()
	if err != nil {
		return err
	}
	if changed {
		status, err := mg.Status()
		if err == nil {
			log.Infof("Weather schema migrated to version %d", status.Version)
		}
	}
	return nil
}

// RunCommand executes one `weatherbot migrate` subcommand
func RunCommand(databaseURL string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: weatherbot migrate [up|down|status] [args...]")
	}

	mg, err := NewMigrator(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer mg.Close()

	switch args[0] {
	case "up":
		changed, err := mg.Up()
		if err != nil {
			return err
		}
		if !changed {
			log.Info("No new migrations to apply")
			return nil
		}
		status, err := mg.Status()
		if err != nil {
			return err
		}
		log.Infof("Successfully migrated to version %d", status.Version)
		return nil

	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid steps value: %w", err)
			}
		}
		changed, err := mg.Down(steps)
		if err != nil {
			return err
		}
		if !changed {
			log.Info("No migrations to rollback")
			return nil
		}
		status, err := mg.Status()
		if err != nil {
			return err
		}
		log.Infof("Successfully rolled back to version %d", status.Version)
		return nil

	case "status":
		status, err := mg.Status()
		if err != nil {
			return err
		}
		if !status.Applied {
			log.WithField("latest", status.Latest).Info("No migrations have been applied yet")
			return nil
		}
		state := "clean"
		if status.Dirty {
			state = "dirty"
		}
		log.WithFields(log.Fields{
			"version": status.Version,
			"latest":  status.Latest,
			"pending": status.Pending(),
			"status":  state,
		}).Info("Current migration version")
		return nil
	}

	return fmt.Errorf("unknown migration command: %s", args[0])
}
