package bugtracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	_ "modernc.org/sqlite"
)

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// SQLite works best with a single connection
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 30 * time.Minute
)

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 2

const bugColumns = `id, title, description, release_version, status, priority, severity,
	category, assigned_to, reproducibility, platform, tags, created_at, last_updated`

// Store persists bugs in SQLite.
type Store struct {
	db  *sql.DB
	log *logging.SecureLogger
	now func() time.Time
}

// NewStore opens (creating if needed) the database at dbPath and migrates it.
func NewStore(dbPath string, log *logging.SecureLogger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}

	// 0700: owner only
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, log: log.Component("bugstore"), now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	if err := s.migrateSchema(s.getSchemaVersion()); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Store) getSchemaVersion() int {
	var version int
	if err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0
	}
	return version
}

func (s *Store) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

func (s *Store) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	s.log.Info().
		Int("from", currentVersion).
		Int("to", currentSchemaVersion).
		Msg("Migrating bug database schema")

	// 0 -> 1: base bugs table
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	// 1 -> 2: reproducibility, platform and tags
	if currentVersion < 2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS bugs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		release_version TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		priority TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		assigned_to TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		last_updated TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bugs_status ON bugs(status);
	CREATE INDEX IF NOT EXISTS idx_bugs_created_at ON bugs(created_at);
	`)
	return err
}

func (s *Store) migrateV2() error {
	existing, err := s.columns("bugs")
	if err != nil {
		return err
	}

	added := []struct{ name, ddl string }{
		{"reproducibility", `ALTER TABLE bugs ADD COLUMN reproducibility TEXT NOT NULL DEFAULT ''`},
		{"platform", `ALTER TABLE bugs ADD COLUMN platform TEXT NOT NULL DEFAULT ''`},
		{"tags", `ALTER TABLE bugs ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`},
	}
	for _, col := range added {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.Exec(col.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", col.name, err)
		}
	}
	return nil
}

// columns returns the column names of table via PRAGMA table_info.
func (s *Store) columns(table string) (map[string]bool, error) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("failed to get table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// newID returns a fresh bug id.
func newID() string {
	return "BUG-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// List returns bugs newest first. An empty status returns every bug.
func (s *Store) List(ctx context.Context, status Status) ([]*Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bugs := []*Bug{}
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

// Get returns the bug with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Bug, error) {
	return getBug(ctx, s.db, id)
}

// Create assigns an id and creation time to b, validates it and stores it.
func (s *Store) Create(ctx context.Context, b *Bug) (*Bug, error) {
	b.ID = newID()
	b.CreatedAt = s.now().UTC()
	b.LastUpdated = nil
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := insertBug(ctx, s.db, b); err != nil {
		return nil, err
	}
	s.log.Info().Str("id", b.ID).Str("priority", b.Priority).Msg("Bug created")
	return b, nil
}

// BulkCreate stores bugs in a single transaction.
// Caller-supplied ids and creation times are kept; missing ones are generated.
func (s *Store) BulkCreate(ctx context.Context, bugs []*Bug) (int, error) {
	if len(bugs) == 0 {
		return 0, nil
	}
	now := s.now().UTC()
	for i, b := range bugs {
		if b == nil {
			return 0, fmt.Errorf("%w: entry %d is empty", ErrInvalid, i)
		}
		if strings.TrimSpace(b.ID) == "" {
			b.ID = newID()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.Normalize()
		if err := b.Validate(); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, b := range bugs {
		if err := insertBug(ctx, tx, b); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bugs: %w", err)
	}

	s.log.Info().Int("count", len(bugs)).Msg("Bugs created in bulk")
	return len(bugs), nil
}

// Update merges patch into the stored bug, enforcing the status workflow.
func (s *Store) Update(ctx context.Context, id string, patch *Patch) (*Bug, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := getBug(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	previous := b.Status
	if err := patch.Apply(b); err != nil {
		return nil, err
	}
	updated := s.now().UTC()
	b.LastUpdated = &updated

	tags, err := json.Marshal(b.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE bugs SET title = ?, description = ?, release_version = ?, status = ?,
			priority = ?, severity = ?, category = ?, assigned_to = ?,
			reproducibility = ?, platform = ?, tags = ?, last_updated = ?
		WHERE id = ?`,
		b.Title, b.Description, b.ReleaseVersion, string(b.Status),
		b.Priority, b.Severity, b.Category, b.AssignedTo,
		b.Reproducibility, b.Platform, string(tags), formatTime(updated),
		b.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update bug: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	if previous != b.Status {
		s.log.Info().
			Str("id", b.ID).
			Str("from", string(previous)).
			Str("to", string(b.Status)).
			Msg("Bug status changed")
	}
	return b, nil
}

// Delete removes the bug with id or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bugs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bug: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Stats counts bugs per status and priority. Every status is present in ByStatus.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[Status]int, len(Statuses)),
		ByPriority: make(map[string]int),
	}
	for _, st := range Statuses {
		stats.ByStatus[st] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, priority, COUNT(*) FROM bugs GROUP BY status, priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status, priority string
		var count int
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[Status(status)] += count
		if priority != "" {
			stats.ByPriority[priority] += count
		}
	}
	return stats, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getBug(ctx context.Context, q queryer, id string) (*Bug, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id)
	b, err := scanBug(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, err
}

func insertBug(ctx context.Context, q queryer, b *Bug) error {
	tags, err := json.Marshal(b.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	var lastUpdated interface{}
	if b.LastUpdated != nil {
		lastUpdated = formatTime(*b.LastUpdated)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO bugs (`+bugColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Description, b.ReleaseVersion, string(b.Status),
		b.Priority, b.Severity, b.Category, b.AssignedTo,
		b.Reproducibility, b.Platform, string(tags),
		formatTime(b.CreatedAt), lastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bug %s: %w", b.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBug(row rowScanner) (*Bug, error) {
	var (
		b           Bug
		status      string
		tagsJSON    string
		createdAt   string
		lastUpdated sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &b.ReleaseVersion, &status, &b.Priority, &b.Severity,
		&b.Category, &b.AssignedTo, &b.Reproducibility, &b.Platform, &tagsJSON, &createdAt, &lastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	b.Status = Status(status)

	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if lastUpdated.Valid && lastUpdated.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, lastUpdated.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_updated: %w", err)
		}
		b.LastUpdated = &ts
	}
	if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return &b, nil
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
