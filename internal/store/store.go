// Package store persists conversion profiles and per-file conversion
// metadata in SQLite.
//
// The store is the only durable state of tern. Profiles are written by the
// front end; metadata rows are upserted by the conversion engine, one row per
// successfully converted source file, keyed by (profile_id, source_file).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/tern/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// fetchableColumns is the allow-list for FetchColumn; column names cannot be
// bound as query parameters.
var fetchableColumns = map[string]bool{
	"engine":                true,
	"source_root":           true,
	"output_root":           true,
	"source_file_extension": true,
	"output_file_extension": true,
}

// Store manages the SQLite database holding profiles and metadata
type Store struct {
	db      *sql.DB
	dbPath  string
	created bool
}

// Open opens the store at dbPath, creating the parent directory and the
// database file when they do not exist yet. Created reports whether this
// call brought the store into existence.
func Open(dbPath string) (*Store, error) {
	if dbPath == MemoryPath {
		return openAndInitStore(dbPath, true)
	}

	created := false
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		created = true
	} else if err != nil {
		return nil, models.NewFault(models.PersistenceFault, "stat store", dbPath, err)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, models.NewFault(models.PersistenceFault, "create store directory", dir, err)
	}

	return openAndInitStore(dbPath, created)
}

// openAndInitStore opens the database connection and initializes schema
func openAndInitStore(dbPath string, created bool) (*Store, error) {
	// Connection-scoped settings go in the DSN so every pooled connection
	// gets them.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, models.NewFault(models.PersistenceFault, "open store", dbPath, err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, models.NewFault(models.PersistenceFault, "set "+pragma, dbPath, err)
		}
	}

	store := &Store{
		db:      db,
		dbPath:  dbPath,
		created: created,
	}

	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, models.NewFault(models.PersistenceFault, "init schema", dbPath, err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, sql string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(sql)
		if err == nil {
			return nil
		}

		// Only retry on "database is locked" errors
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Created reports whether Open created the database.
func (s *Store) Created() bool {
	return s.created
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FetchProfiles returns every profile ordered by id, each with its metadata
// map rebuilt from the metadata table.
func (s *Store) FetchProfiles(ctx context.Context) ([]models.Profile, error) {
	query := `SELECT id, engine, source_root, source_file_extension, output_root, output_file_extension, options, ignore_patterns
		FROM profiles ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, models.NewFault(models.PersistenceFault, "query profiles", "", err)
	}

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		var options, ignorePatterns string
		if err := rows.Scan(&p.ID, &p.Engine, &p.SourceRoot, &p.SourceFileExtension,
			&p.OutputRoot, &p.OutputFileExtension, &options, &ignorePatterns); err != nil {
			rows.Close()
			return nil, models.NewFault(models.PersistenceFault, "scan profile", "", err)
		}
		p.Options = splitLines(options)
		p.IgnorePatterns = splitLines(ignorePatterns)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, models.NewFault(models.PersistenceFault, "iterate profiles", "", err)
	}
	rows.Close()

	// Metadata is loaded after the profile cursor is closed so a single
	// connection is never asked to serve two open result sets.
	for i := range profiles {
		metadata, err := s.fetchMetadata(ctx, profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].Metadata = metadata
	}

	return profiles, nil
}

// fetchMetadata returns the metadata map of one profile, nil when empty.
func (s *Store) fetchMetadata(ctx context.Context, profileID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_file, mtime FROM metadata WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, models.NewFault(models.PersistenceFault, "query metadata", "", err)
	}
	defer rows.Close()

	var metadata map[string]int64
	for rows.Next() {
		var file string
		var mtime int64
		if err := rows.Scan(&file, &mtime); err != nil {
			return nil, models.NewFault(models.PersistenceFault, "scan metadata", "", err)
		}
		if metadata == nil {
			metadata = make(map[string]int64)
		}
		metadata[file] = mtime
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewFault(models.PersistenceFault, "iterate metadata", "", err)
	}

	return metadata, nil
}

// FetchColumn returns the distinct values of one profile column, sorted.
// Only the columns in fetchableColumns may be requested.
func (s *Store) FetchColumn(ctx context.Context, column string) ([]string, error) {
	if !fetchableColumns[column] {
		return nil, models.NewFault(models.PersistenceFault, "fetch column", "",
			fmt.Errorf("column %q is not fetchable", column))
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM profiles ORDER BY %s ASC`, column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, models.NewFault(models.PersistenceFault, "query column "+column, "", err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, models.NewFault(models.PersistenceFault, "scan column "+column, "", err)
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewFault(models.PersistenceFault, "iterate column "+column, "", err)
	}

	return values, nil
}

// StoreProfile validates and inserts a new profile, returning its id.
// The profile's ID and Metadata fields are ignored.
func (s *Store) StoreProfile(ctx context.Context, profile models.Profile) (int64, error) {
	if err := ValidateProfile(profile); err != nil {
		return 0, models.NewFault(models.PersistenceFault, "store profile", "", err)
	}

	query := `INSERT INTO profiles
		(engine, source_root, source_file_extension, output_root, output_file_extension, options, ignore_patterns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		profile.Engine,
		profile.SourceRoot,
		profile.SourceFileExtension,
		profile.OutputRoot,
		profile.OutputFileExtension,
		strings.Join(profile.Options, "\n"),
		strings.Join(profile.IgnorePatterns, "\n"),
	)
	if err != nil {
		return 0, models.NewFault(models.PersistenceFault, "insert profile", "", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, models.NewFault(models.PersistenceFault, "get profile id", "", err)
	}

	return id, nil
}

// UpsertMetadata inserts the (profileID, sourceFile) row or updates its mtime.
func (s *Store) UpsertMetadata(ctx context.Context, profileID int64, sourceFile string, mtime int64) error {
	query := `INSERT INTO metadata (profile_id, source_file, mtime)
		VALUES (?, ?, ?)
		ON CONFLICT(profile_id, source_file) DO UPDATE SET
			mtime = excluded.mtime`

	if _, err := s.db.ExecContext(ctx, query, profileID, sourceFile, mtime); err != nil {
		return models.NewFault(models.PersistenceFault, "upsert metadata", sourceFile, err)
	}

	return nil
}

// RecordRun stores the summary of one conversion run.
func (s *Store) RecordRun(ctx context.Context, run models.RunRecord) error {
	query := `INSERT INTO runs
		(run_id, started_at, finished_at, converted, up_to_date, failed, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.RunID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Converted,
		run.UpToDate,
		run.Failed,
		run.Cancelled,
	)
	if err != nil {
		return models.NewFault(models.PersistenceFault, "record run", "", err)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	query := `SELECT run_id, started_at, finished_at, converted, up_to_date, failed, cancelled
		FROM runs ORDER BY started_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, models.NewFault(models.PersistenceFault, "query runs", "", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Converted, &r.UpToDate, &r.Failed, &r.Cancelled); err != nil {
			return nil, models.NewFault(models.PersistenceFault, "scan run", "", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewFault(models.PersistenceFault, "iterate runs", "", err)
	}

	return runs, nil
}

// ValidateProfile checks the fields a profile row cannot do without.
func ValidateProfile(p models.Profile) error {
	required := []struct {
		name  string
		value string
	}{
		{"engine", p.Engine},
		{"source_root", p.SourceRoot},
		{"output_root", p.OutputRoot},
		{"source_file_extension", p.SourceFileExtension},
		{"output_file_extension", p.OutputFileExtension},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	for _, ext := range []string{p.SourceFileExtension, p.OutputFileExtension} {
		if strings.ContainsAny(ext, `./\`) {
			return fmt.Errorf("extension %q must not contain '.', '/' or '\\'", ext)
		}
	}

	for _, line := range append(append([]string{}, p.Options...), p.IgnorePatterns...) {
		if strings.Contains(line, "\n") {
			return fmt.Errorf("option or ignore pattern %q must not contain a newline", line)
		}
	}

	return nil
}

// splitLines undoes the newline join used to persist string sequences.
// An empty column reads back as nil.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
