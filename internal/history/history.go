// Package history keeps a local ledger of builds in a SQLite database
// under the project's work directory. The ledger records the input
// digests alongside the produced image so repeated builds of identical
// inputs can be compared: with a floating dependency manifest, equal
// inputs do not guarantee equal images.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Build statuses recorded in the ledger.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// FileName is the database file name inside the work directory.
const FileName = "history.db"

// Record is one build in the ledger.
type Record struct {
	BuildID        string
	ImageRef       string
	ImageID        string
	RecipeDigest   string
	ManifestDigest string
	Status         string
	Duration       time.Duration
	CreatedAt      time.Time
}

// Ledger wraps the history database.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	image_ref TEXT NOT NULL,
	image_id TEXT NOT NULL DEFAULT '',
	recipe_digest TEXT NOT NULL,
	manifest_digest TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_builds_inputs ON builds (recipe_digest, manifest_digest);
`

// Open opens (creating if needed) the ledger under workDir.
func Open(workDir string) (*Ledger, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(workDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// NewLedger wraps an existing database handle. The caller owns schema
// setup and the handle's lifetime.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Insert appends a build record.
func (l *Ledger) Insert(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO builds (build_id, image_ref, image_id, recipe_digest, manifest_digest, status, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BuildID, rec.ImageRef, rec.ImageID, rec.RecipeDigest, rec.ManifestDigest,
		rec.Status, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording build: %w", err)
	}
	return nil
}

// List returns the most recent builds, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT build_id, image_ref, image_id, recipe_digest, manifest_digest, status, duration_ms, created_at
		FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.BuildID, &rec.ImageRef, &rec.ImageID, &rec.RecipeDigest,
			&rec.ManifestDigest, &rec.Status, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning build record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastWithInputs returns the most recent successful build with the same
// recipe and manifest digests, or nil when none exists. A prior build
// with equal inputs but a different image ID means the dependency
// manifest resolved differently between builds.
func (l *Ledger) LastWithInputs(ctx context.Context, recipeDigest, manifestDigest string) (*Record, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT build_id, image_ref, image_id, recipe_digest, manifest_digest, status, duration_ms, created_at
		FROM builds
		WHERE recipe_digest = ? AND manifest_digest = ? AND status = ?
		ORDER BY id DESC LIMIT 1`,
		recipeDigest, manifestDigest, StatusSucceeded)

	var rec Record
	var durationMS int64
	err := row.Scan(&rec.BuildID, &rec.ImageRef, &rec.ImageID, &rec.RecipeDigest,
		&rec.ManifestDigest, &rec.Status, &durationMS, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying prior build: %w", err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}
