// Package index is the feature registry: a SQLite-backed mapping from feature
// identifier to the committed artifact locations. Entries are written only
// after a successful store commit, so the index never points at artifacts
// that failed validation.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/logx"
	"ssotgen/pkg/store"
)

// ErrNotFound is returned by Lookup for unregistered features.
var ErrNotFound = errors.New("feature not found in index")

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS features (
	feature_id       TEXT PRIMARY KEY,
	api_path         TEXT NOT NULL,
	db_schema_path   TEXT NOT NULL,
	validation_path  TEXT NOT NULL,
	rules_path       TEXT NOT NULL,
	testcases_path   TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
`

// Entry is one registered feature.
type Entry struct {
	FeatureID string
	Locations store.Locations
	UpdatedAt time.Time
}

// Index is the feature registry handle.
type Index struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (or creates) the registry database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, logger: logx.NewLogger("index")}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	if _, err := idx.db.Exec(schema); err != nil {
		return fmt.Errorf("creating index schema: %w", err)
	}

	var version int
	err := idx.db.QueryRow(`SELECT version FROM schema_info`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := idx.db.Exec(`INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("index schema version %d, expected %d", version, schemaVersion)
	}
	return nil
}

// Close closes the registry database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Update registers (or replaces) the artifact locations for a feature.
func (idx *Index) Update(ctx context.Context, featureID string, locations store.Locations) error {
	for _, kind := range artifact.Kinds() {
		if locations[kind] == "" {
			return fmt.Errorf("updating index for %s: no location for %s", featureID, kind)
		}
	}

	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO features (feature_id, api_path, db_schema_path, validation_path, rules_path, testcases_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feature_id) DO UPDATE SET
			api_path = excluded.api_path,
			db_schema_path = excluded.db_schema_path,
			validation_path = excluded.validation_path,
			rules_path = excluded.rules_path,
			testcases_path = excluded.testcases_path,
			updated_at = excluded.updated_at`,
		featureID,
		locations[artifact.KindAPI],
		locations[artifact.KindDBSchema],
		locations[artifact.KindValidation],
		locations[artifact.KindRules],
		locations[artifact.KindTestCases],
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("updating index for %s: %w", featureID, err)
	}
	idx.logger.Debug("indexed %s", featureID)
	return nil
}

// Lookup returns the registered entry for a feature.
func (idx *Index) Lookup(ctx context.Context, featureID string) (*Entry, error) {
	row := idx.db.QueryRowContext(ctx, `
		SELECT feature_id, api_path, db_schema_path, validation_path, rules_path, testcases_path, updated_at
		FROM features WHERE feature_id = ?`, featureID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, featureID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", featureID, err)
	}
	return entry, nil
}

// KnownFeatures returns the set of registered feature identifiers, used to
// resolve reference fields during validation.
func (idx *Index) KnownFeatures(ctx context.Context) (map[string]bool, error) {
	rows, err := idx.db.QueryContext(ctx, `SELECT feature_id FROM features`)
	if err != nil {
		return nil, fmt.Errorf("listing known features: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listing known features: %w", err)
		}
		known[id] = true
	}
	return known, rows.Err()
}

// List returns every registered entry, ordered by feature identifier.
func (idx *Index) List(ctx context.Context) ([]Entry, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT feature_id, api_path, db_schema_path, validation_path, rules_path, testcases_path, updated_at
		FROM features ORDER BY feature_id`)
	if err != nil {
		return nil, fmt.Errorf("listing index entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("listing index entries: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry     Entry
		paths     [5]string
		updatedAt string
	)
	if err := row.Scan(&entry.FeatureID, &paths[0], &paths[1], &paths[2], &paths[3], &paths[4], &updatedAt); err != nil {
		return nil, err
	}
	entry.Locations = store.Locations{
		artifact.KindAPI:        paths[0],
		artifact.KindDBSchema:   paths[1],
		artifact.KindValidation: paths[2],
		artifact.KindRules:      paths[3],
		artifact.KindTestCases:  paths[4],
	}
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	entry.UpdatedAt = ts
	return &entry, nil
}
