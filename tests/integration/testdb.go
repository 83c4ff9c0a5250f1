// Package integration holds end-to-end tests that run against a real
// PostgreSQL instance provisioned with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// shared holds the package-wide container reused by tests that opt
// into NewSharedTestDB. Torn down from TestMain.
var shared struct {
	sync.Mutex
	container testcontainers.Container
	dsn       string
}

// TestDB bundles the GORM handle, raw connection, and owning container
// for one test's database.
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a dedicated PostgreSQL container, migrates it, and
// tears everything down when the test finishes. Use it for tests that
// mutate global state.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	container, dsn := startPostgres(t, "salonsuite_test")
	db, sqlDB := openGorm(t, dsn)
	migrateUp(t, sqlDB)

	tdb := &TestDB{DB: db, SqlDB: sqlDB, Container: container, DSN: dsn, t: t}
	t.Cleanup(tdb.Close)
	return tdb
}

// NewSharedTestDB hands out a connection to a container shared across
// the package. Cheaper than NewTestDB, but callers are responsible for
// cleaning up the rows they create (or calling CleanTables).
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	shared.Lock()
	defer shared.Unlock()

	if shared.container == nil {
		container, dsn := startPostgres(t, "salonsuite_shared_test")
		shared.container = container
		shared.dsn = dsn

		_, sqlDB := openGorm(t, dsn)
		migrateUp(t, sqlDB)
		sqlDB.Close()
	}

	db, sqlDB := openGorm(t, shared.dsn)

	// The container outlives the test. Only the connection is cleaned up.
	t.Cleanup(func() { sqlDB.Close() })

	return &TestDB{DB: db, SqlDB: sqlDB, Container: shared.container, DSN: shared.dsn, t: t}
}

func startPostgres(t *testing.T, dbName string) (testcontainers.Container, string) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to build connection string")

	return container, dsn
}

// Close releases the connection and, for dedicated containers,
// terminates the container.
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		tdb.SqlDB.Close()
	}
	if tdb.Container != nil && tdb.Container != shared.container {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("failed to terminate container: %v", err)
		}
	}
}

// CleanTables truncates every application table, leaving the migration
// bookkeeping intact.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "failed to list tables")

	if len(tables) == 0 {
		return
	}
	err = tdb.DB.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE").Error
	require.NoError(tdb.t, err, "failed to truncate tables")
}

// WithTransaction runs fn inside a transaction that is always rolled
// back, so the function can probe writes without leaving rows behind.
func (tdb *TestDB) WithTransaction(fn func(tx *gorm.DB)) {
	tdb.t.Helper()

	tx := tdb.DB.Begin()
	require.NoError(tdb.t, tx.Error, "failed to begin transaction")
	defer tx.Rollback()

	fn(tx)
}

func openGorm(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	cfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), cfg)
	require.NoError(t, err, "failed to open database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")

	// Concurrency tests fan out goroutines, keep a few connections open.
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func migrateUp(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	path := migrationsDir()
	require.NotEmpty(t, path, "migrations directory not found")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "failed to create migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	require.NoError(t, err, "failed to create migrate instance")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "failed to apply migrations")
	}
}

// migrationsDir walks up from this file until it finds the repository's
// migrations directory.
func migrationsDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	dir := filepath.Dir(filename)
	for range 5 {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

// CleanupSharedContainer terminates the package-wide container. Called
// from TestMain after the test run.
func CleanupSharedContainer() {
	shared.Lock()
	defer shared.Unlock()

	if shared.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	shared.container.Terminate(ctx)
	shared.container = nil
	shared.dsn = ""
}
