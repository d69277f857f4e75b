package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"

	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/logging"

	// needed for magic migration
	_ "github.com/golang-migrate/migrate/v4/source/file"
	// postgres driver registration for sqlx.Open
	_ "github.com/lib/pq"
)

const defaultMigrationsURL = "file://migrations"

var (
	// CurrentMigrationVersion holds the default migration version
	CurrentMigrationVersion = uint(2)
)

// Datastore holds generic methods
type Datastore interface {
	RawDB() *sqlx.DB
	NewMigrate() (*migrate.Migrate, error)
	Migrate(...uint) error
	RollbackTxAndHandle(tx *sqlx.Tx) error
	RollbackTx(tx *sqlx.Tx)
	BeginTx() (*sqlx.Tx, error)
}

// Postgres is a Datastore wrapper around a postgres database
type Postgres struct {
	*sqlx.DB
}

// RawDB - get the raw db
func (pg *Postgres) RawDB() *sqlx.DB {
	return pg.DB
}

// NewMigrate creates a Migrate instance given a Postgres instance with an active database connection
func (pg *Postgres) NewMigrate() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(pg.RawDB().DB, &postgres.Config{})
	if err != nil {
		return nil, err
	}

	dbMigrationsURL := os.Getenv("DATABASE_MIGRATIONS_URL")
	if dbMigrationsURL == "" {
		dbMigrationsURL = defaultMigrationsURL
	}

	return migrate.NewWithDatabaseInstance(dbMigrationsURL, "postgres", driver)
}

// Migrate the Postgres instance
func (pg *Postgres) Migrate(currentMigrationVersions ...uint) error {
	ctx := context.WithValue(context.Background(), appctx.EnvironmentCTXKey, os.Getenv("ENV"))
	_, logger := logging.SetupLogger(ctx)

	logger.Info().Msg("attempting database migration")

	m, err := pg.NewMigrate()
	if err != nil {
		logger.Error().Err(err).Msg("failed to create a new migration")
		return err
	}

	activeMigrationVersion, dirty, err := m.Version()

	currentMigrationVersion := CurrentMigrationVersion
	if len(currentMigrationVersions) > 0 {
		currentMigrationVersion = currentMigrationVersions[0]
	}

	subLogger := logger.With().
		Bool("dirty", dirty).
		Int("db_version", int(activeMigrationVersion)).
		Uint("code_version", currentMigrationVersion).
		Logger()

	subLogger.Info().Msg("database status")

	if !errors.Is(err, migrate.ErrNilVersion) && err != nil {
		subLogger.Error().Err(err).Msg("failed to get migration version")
		sentry.CaptureMessage(err.Error())
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	// never migrate down and never touch a dirty schema
	if currentMigrationVersion < activeMigrationVersion || dirty {
		subLogger.Error().Msg("migration not attempted")
		sentry.CaptureMessage(
			fmt.Sprintf("migration not attempted, dirty: %t; code version: %d; db version: %d",
				dirty, currentMigrationVersion, activeMigrationVersion))
		return nil
	}

	err = m.Migrate(currentMigrationVersion)
	if !errors.Is(err, migrate.ErrNoChange) && err != nil {
		subLogger.Error().Err(err).Msg("migration failed")
		return err
	}

	return nil
}

// NewPostgres creates a new Postgres Datastore
func NewPostgres(databaseURL string, performMigration bool) (*Postgres, error) {
	if len(databaseURL) == 0 {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	// if we have a connection longer than 5 minutes, kill it
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(40)
	db.SetMaxIdleConns(20)

	pg := &Postgres{db}

	if performMigration {
		if err := pg.Migrate(); err != nil {
			return nil, err
		}
	}

	return pg, nil
}

// RollbackTxAndHandle rolls back a transaction
func (pg *Postgres) RollbackTxAndHandle(tx *sqlx.Tx) error {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		sentry.CaptureMessage(err.Error())
	}
	return err
}

// RollbackTx rolls back a transaction (useful with defer)
func (pg *Postgres) RollbackTx(tx *sqlx.Tx) {
	_ = pg.RollbackTxAndHandle(tx)
}

// BeginTx starts a transaction
func (pg *Postgres) BeginTx() (*sqlx.Tx, error) {
	return pg.RawDB().Beginx()
}
