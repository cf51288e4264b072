package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/logging"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-backed storage for synced activities and
// kudos with WAL mode. It is safe for concurrent use; writes are
// serialized through the store's lock so kudos workers cannot
// interleave partial transactions.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore opens (creating if needed) the database and applies
// pending migrations.
func NewSQLiteStore(dbPath string, logger *logging.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS activities (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					start_date_local TEXT NOT NULL,
					type TEXT,
					distance REAL NOT NULL DEFAULT 0 CHECK (distance >= 0),
					moving_time REAL NOT NULL DEFAULT 0,
					elapsed_time REAL NOT NULL DEFAULT 0,
					total_elevation_gain REAL NOT NULL DEFAULT 0,
					end_latlng TEXT,
					kudos_count INTEGER NOT NULL DEFAULT 0,
					external_id TEXT,
					synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS kudos (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					activity_id INTEGER NOT NULL,
					first_name TEXT,
					last_name TEXT,
					resource_state TEXT,
					FOREIGN KEY (activity_id) REFERENCES activities(id)
				);

				CREATE INDEX IF NOT EXISTS idx_activities_start_date ON activities(start_date_local);
				CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type);
				CREATE INDEX IF NOT EXISTS idx_kudos_activity_id ON kudos(activity_id);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_kudos_identity
					ON kudos(activity_id, first_name, last_name, resource_state);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// Reset drops and recreates all data tables. All synced data is lost.
func (s *SQLiteStore) Reset() error {
	stmts := []string{
		"DROP TABLE IF EXISTS kudos",
		"DROP TABLE IF EXISTS activities",
		"DELETE FROM schema_migrations",
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return &errors.ErrDatabaseQuery{Operation: "reset schema", Err: err}
		}
	}
	return runMigrations(s.db)
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
