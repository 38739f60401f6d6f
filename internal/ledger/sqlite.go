package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// ErrNoTable indicates the backing table is missing: a fatal
// misconfiguration, distinct from an id simply not being found.
var ErrNoTable = errors.New("ledger table does not exist")

// seenTable is the single table the ledger owns. Presence of an id is the
// only semantic; recorded_at exists for operators poking at the database.
const seenTable = "seen_announcements"

// SQLite is a Ledger backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// Compile-time interface check.
var _ Ledger = (*SQLite)(nil)

// Open opens (or creates) the ledger database at the given path, applies any
// pending migrations, and verifies the backing table exists.
func Open(path string) (*SQLite, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger database: %w", err)
	}

	l := &SQLite{db: db}
	if err := l.verifyTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *SQLite) Close() error {
	return l.db.Close()
}

// Seen reports whether the id has been recorded. A missing backing table
// surfaces as ErrNoTable rather than a legitimate miss.
func (l *SQLite) Seen(ctx context.Context, id string) (bool, error) {
	var found string
	err := l.db.QueryRowContext(ctx,
		`SELECT announcement_id FROM seen_announcements WHERE announcement_id = ?`, id,
	).Scan(&found)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case isMissingTable(err):
		return false, fmt.Errorf("checking id %q: %w", id, ErrNoTable)
	default:
		return false, fmt.Errorf("checking id %q: %w", id, err)
	}
}

// Record marks the id as delivered. The insert is idempotent: conflicts on
// an existing id are ignored.
func (l *SQLite) Record(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO seen_announcements (announcement_id, recorded_at)
		 VALUES (?, ?)
		 ON CONFLICT(announcement_id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isMissingTable(err) {
			return fmt.Errorf("recording id %q: %w", id, ErrNoTable)
		}
		return fmt.Errorf("recording id %q: %w", id, err)
	}
	return nil
}

// Count returns the number of recorded ids. Useful for tests and operators.
func (l *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_announcements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ledger entries: %w", err)
	}
	return n, nil
}

// verifyTable checks that the backing table exists, so a misconfigured
// database fails loudly at startup instead of masquerading as "nothing seen".
func (l *SQLite) verifyTable(ctx context.Context) error {
	var name string
	err := l.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, seenTable,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoTable
	}
	if err != nil {
		return fmt.Errorf("verifying ledger table: %w", err)
	}
	return nil
}

// isMissingTable matches the driver's "no such table" error text, which is
// the only way SQLite signals the condition.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// openDatabase opens (or creates) a SQLite database at the given path.
// It configures the connection for WAL journal mode, a 5-second busy timeout,
// and foreign key enforcement. Parent directories are created if missing.
//
// The returned *sql.DB is limited to a single connection because SQLite
// supports only one concurrent writer.
func openDatabase(path string) (*sql.DB, error) {
	// For in-memory databases, skip directory creation.
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %q: %w", dir, err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Verify the connection is usable.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database %q: %w", path, err)
	}

	slog.Debug("opened ledger database", "path", path)
	return db, nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies any unapplied schema migrations to the database.
// Migration SQL files are read from the embedded migrations/ directory.
// Each file must be named NNN_description.sql where NNN is the version number.
// Each migration runs inside its own transaction for atomicity.
func runMigrations(db *sql.DB) error {
	// Ensure the tracking table exists.
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := db.Exec(createTracker); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Parse and sort migration files by version number.
	type migrationFile struct {
		version  int
		filename string
	}
	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version := parseVersion(entry.Name())
		if version <= 0 {
			continue
		}
		files = append(files, migrationFile{version: version, filename: entry.Name()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].version < files[j].version
	})

	for _, mf := range files {
		if applied[mf.version] {
			continue
		}

		sqlBytes, err := migrationsFS.ReadFile("migrations/" + mf.filename)
		if err != nil {
			return fmt.Errorf("reading migration file %q: %w", mf.filename, err)
		}

		if err := applyMigration(db, mf.version, string(sqlBytes)); err != nil {
			return fmt.Errorf("applying migration %s: %w", mf.filename, err)
		}

		slog.Debug("applied migration", "version", mf.version, "file", mf.filename)
	}

	return nil
}

// parseVersion extracts the version number from a migration filename like
// "001_create_seen.sql" → 1.
func parseVersion(filename string) int {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) == 0 {
		return 0
	}
	v, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return v
}

// appliedVersions returns a set of migration versions that have already been
// applied to the database.
func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		versions[v] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migration versions: %w", err)
	}

	return versions, nil
}

// applyMigration executes a single migration's SQL and records its version,
// all within a single transaction.
func applyMigration(db *sql.DB, version int, sql string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version) VALUES (?)", version,
	); err != nil {
		return fmt.Errorf("recording migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	return nil
}
