package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ArchiveEntry records one workbook produced by a run
type ArchiveEntry struct {
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Rows      int       `json:"rows"`
	Degraded  int       `json:"degraded"`
}

// Archive manages a persistent index of generated workbooks so old files can be pruned
type Archive struct {
	filePath  string
	entries   map[string]ArchiveEntry
	mu        sync.RWMutex
	retention time.Duration
	now       func() time.Time
}

// NewArchive opens the index stored at dataDir/indexName, creating the directory if needed
func NewArchive(dataDir, indexName string, retention time.Duration) (*Archive, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	archive := &Archive{
		filePath:  filepath.Join(dataDir, indexName),
		entries:   make(map[string]ArchiveEntry),
		retention: retention,
		now:       time.Now,
	}

	if err := archive.load(); err != nil {
		return nil, fmt.Errorf("failed to load archive index: %w", err)
	}

	return archive, nil
}

// Record adds a workbook to the index
func (a *Archive) Record(entry ArchiveEntry) error {
	if entry.RunID == "" {
		return errors.New("archive entry requires a run id")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[entry.RunID] = entry
	return a.save()
}

// Entries returns the indexed workbooks, newest first
func (a *Archive) Entries() []ArchiveEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]ArchiveEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cleanup deletes workbooks older than the retention window and drops them
// from the index. A file shared with an entry inside the window is kept. A zero
// retention keeps everything. It returns the removed entries.
func (a *Archive) Cleanup() ([]ArchiveEntry, error) {
	if a.retention <= 0 {
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-a.retention)

	// Runs on the same day write the same file name; a path still held by a
	// live entry stays on disk.
	live := make(map[string]struct{})
	for _, e := range a.entries {
		if !e.CreatedAt.Before(cutoff) {
			live[e.Path] = struct{}{}
		}
	}

	var removed []ArchiveEntry
	var errs []error
	for id, e := range a.entries {
		if !e.CreatedAt.Before(cutoff) {
			continue
		}
		if _, ok := live[e.Path]; ok {
			delete(a.entries, id)
			removed = append(removed, e)
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", e.Path, err))
			continue
		}
		delete(a.entries, id)
		removed = append(removed, e)
	}

	if len(removed) > 0 {
		if err := a.save(); err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// load reads the index from the JSON file
func (a *Archive) load() error {
	file, err := os.Open(a.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No index yet, start empty
			return nil
		}
		return fmt.Errorf("failed to open archive index: %w", err)
	}
	defer file.Close()

	var entries []ArchiveEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode archive index: %w", err)
	}

	for _, e := range entries {
		a.entries[e.RunID] = e
	}
	return nil
}

// save writes the index to the JSON file. Callers hold the write lock.
func (a *Archive) save() error {
	entries := make([]ArchiveEntry, 0, len(a.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	file, err := os.Create(a.filePath)
	if err != nil {
		return fmt.Errorf("failed to create archive index: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
