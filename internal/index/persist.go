package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/models"
)

// SchemaVersion identifies the on-disk snapshot layout. A mismatch on load
// is surfaced as ErrSchemaMismatch rather than silently misread.
const SchemaVersion = 1

var (
	// ErrSchemaMismatch is returned when a persisted snapshot was written
	// with a different schema version.
	ErrSchemaMismatch = errors.New("snapshot schema version mismatch")
	// ErrCorruptSnapshot is returned when a persisted snapshot fails its
	// integrity check (a posting referencing a record absent from the store).
	ErrCorruptSnapshot = errors.New("snapshot failed integrity check")
)

type snapshotFile struct {
	SchemaVersion int                             `json:"schema_version"`
	Records       []*models.MediaRecord           `json:"records"`
	Postings      map[string]map[string][]Posting `json:"postings"`
}

// Save writes the current snapshot to path atomically (temp file + rename).
func (idx *Index) Save(path string) error {
	snap := idx.snap.Load()

	file := snapshotFile{
		SchemaVersion: SchemaVersion,
		Postings:      make(map[string]map[string][]Posting, len(snap.fields)),
	}
	for _, id := range snap.IDs() {
		file.Records = append(file.Records, snap.records[id])
	}
	for name, seg := range snap.fields {
		tokens := make(map[string][]Posting, len(seg))
		for tok, posts := range seg {
			tokens[tok] = posts
		}
		file.Postings[name] = tokens
	}

	data, err := json.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Restore loads a persisted snapshot from path and installs it. A missing
// file is a fresh start, not a failure. On any other failure the index falls
// back to an empty snapshot flagged degraded and the error is returned, so
// callers keep serving rather than crashing.
func (idx *Index) Restore(path string) error {
	snap, err := loadSnapshot(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		idx.snap.Store(emptySnapshot(true))
		idx.logger.Error("snapshot restore failed, starting degraded",
			zap.String("path", path), zap.Error(err))
		return err
	}
	idx.snap.Store(snap)
	idx.logger.Info("snapshot restored",
		zap.String("path", path), zap.Int("records", snap.Len()))
	return nil
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if file.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, file.SchemaVersion, SchemaVersion)
	}

	snap := emptySnapshot(false)
	for _, rec := range file.Records {
		if rec == nil || rec.ID == "" {
			return nil, fmt.Errorf("%w: record without id", ErrCorruptSnapshot)
		}
		snap.records[rec.ID] = rec
	}
	for name, tokens := range file.Postings {
		seg, ok := snap.fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field segment %q", ErrCorruptSnapshot, name)
		}
		for tok, posts := range tokens {
			for _, p := range posts {
				if _, exists := snap.records[p.ID]; !exists {
					return nil, fmt.Errorf("%w: posting %q/%q references missing record %q",
						ErrCorruptSnapshot, name, tok, p.ID)
				}
			}
			seg[tok] = posts
		}
	}
	return snap, nil
}
