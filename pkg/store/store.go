// Package store persists per-feature artifact sets on the filesystem. A
// commit is atomic per feature: either all five slots advance together or the
// previously stored set survives untouched.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/logx"
)

// WriteError reports a failed commit. The prior artifact set, if any, has
// been restored when this error is returned.
type WriteError struct {
	FeatureID string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storing artifacts for %s: %v", e.FeatureID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Locations maps artifact kind to the committed file path.
type Locations map[artifact.Kind]string

// Store writes artifact sets under <root>/<feature_id>/.
type Store struct {
	root   string
	logger *logx.Logger
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root %s: %w", dir, err)
	}
	return &Store{root: dir, logger: logx.NewLogger("store")}, nil
}

// Root returns the artifact root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the slot directory for a feature.
func (s *Store) Dir(featureID string) string {
	return filepath.Join(s.root, featureID)
}

// Commit writes a complete artifact set for one feature. The set is staged
// into a temp directory and swapped in with a rename; any failure restores
// the previous set and returns a WriteError.
func (s *Store) Commit(featureID string, set artifact.Set) (Locations, error) {
	if err := set.Complete(); err != nil {
		return nil, &WriteError{FeatureID: featureID, Err: err}
	}

	// Encode everything before touching the filesystem.
	encoded := make(map[artifact.Kind][]byte, len(set))
	for _, kind := range artifact.Kinds() {
		raw, err := set[kind].Encode()
		if err != nil {
			return nil, &WriteError{FeatureID: featureID, Err: err}
		}
		encoded[kind] = raw
	}

	staging, err := os.MkdirTemp(s.root, "."+featureID+".staging-")
	if err != nil {
		return nil, &WriteError{FeatureID: featureID, Err: err}
	}
	defer os.RemoveAll(staging)

	for _, kind := range artifact.Kinds() {
		if err := writeFileSync(filepath.Join(staging, kind.Filename()), encoded[kind]); err != nil {
			return nil, &WriteError{FeatureID: featureID, Err: err}
		}
	}

	if err := s.swap(featureID, staging); err != nil {
		return nil, &WriteError{FeatureID: featureID, Err: err}
	}

	locations := make(Locations, len(set))
	for _, kind := range artifact.Kinds() {
		locations[kind] = filepath.Join(s.Dir(featureID), kind.Filename())
	}
	s.logger.Info("committed %d artifacts for %s", len(locations), featureID)
	return locations, nil
}

// swap moves the staged directory into place. An existing slot directory is
// parked under a backup name first and restored if the swap fails.
func (s *Store) swap(featureID, staging string) error {
	dir := s.Dir(featureID)
	backup := filepath.Join(s.root, "."+featureID+".backup")

	hadPrior := false
	if _, err := os.Stat(dir); err == nil {
		hadPrior = true
		os.RemoveAll(backup)
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("parking prior artifact set: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(staging, dir); err != nil {
		if hadPrior {
			if restoreErr := os.Rename(backup, dir); restoreErr != nil {
				return fmt.Errorf("swap failed (%w) and restore failed: %v", err, restoreErr)
			}
		}
		return fmt.Errorf("swapping artifact set into place: %w", err)
	}

	if hadPrior {
		os.RemoveAll(backup)
	}
	return syncDir(s.root)
}

// Read loads the stored artifact set for a feature.
func (s *Store) Read(featureID string) (artifact.Set, error) {
	set := make(artifact.Set, len(artifact.Kinds()))
	for _, kind := range artifact.Kinds() {
		path := filepath.Join(s.Dir(featureID), kind.Filename())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading stored %s for %s: %w", kind, featureID, err)
		}
		a, err := artifact.Decode(kind, featureID, raw)
		if err != nil {
			return nil, fmt.Errorf("decoding stored %s for %s: %w", kind, featureID, err)
		}
		set[kind] = a
	}
	return set, nil
}

// MissingSlots reports which artifact files are absent for a feature.
func (s *Store) MissingSlots(featureID string) []string {
	var missing []string
	for _, kind := range artifact.Kinds() {
		path := filepath.Join(s.Dir(featureID), kind.Filename())
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, kind.Filename())
		}
	}
	return missing
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
