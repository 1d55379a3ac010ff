package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumeno-study/lumeno/internal/models"
)

// LocalStore keeps every collection in memory and mirrors it to a JSON
// file after each write.
type LocalStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger

	mu          sync.RWMutex
	collections map[string][]models.DocumentMetadataRecord
}

// OpenLocal loads path if it exists. An empty path keeps records in
// memory only.
func OpenLocal(path string, logger *slog.Logger) (*LocalStore, error) {
	l := &LocalStore{
		path:        path,
		now:         time.Now,
		logger:      logger.With("component", "local-documents"),
		collections: make(map[string][]models.DocumentMetadataRecord),
	}
	if path == "" {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &l.collections); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}

	total := 0
	for _, records := range l.collections {
		total += len(records)
	}
	l.logger.Info("loaded metadata", "records", total, "path", path)
	return l, nil
}

func (l *LocalStore) Insert(ctx context.Context, collection string, record models.DocumentMetadataRecord) (models.DocumentMetadataRecord, error) {
	if collection == "" {
		return models.DocumentMetadataRecord{}, errEmptyCollection
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.UploadedAt = l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.collections[collection]
	l.collections[collection] = append(prev[:len(prev):len(prev)], record)
	if err := l.saveToFile(); err != nil {
		// Keep memory and disk consistent.
		l.collections[collection] = prev
		return models.DocumentMetadataRecord{}, fmt.Errorf("failed to persist metadata: %w", err)
	}
	return record, nil
}

func (l *LocalStore) ListByOwner(ctx context.Context, collection, uid string) ([]models.DocumentMetadataRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := []models.DocumentMetadataRecord{}
	for _, r := range l.collections[collection] {
		if r.UID == uid {
			records = append(records, r)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
	return records, nil
}

func (l *LocalStore) Close() error { return nil }

// saveToFile writes the collections to disk. Callers hold mu.
func (l *LocalStore) saveToFile() error {
	if l.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(l.collections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata dir: %w", err)
	}

	tempFile := l.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tempFile, l.path); err != nil {
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}
	return nil
}
