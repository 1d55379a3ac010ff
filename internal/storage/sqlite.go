package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/storage/migrations"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// SQLiteStore is the single-file store used when no server database is
// configured.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, err
	}
	if err := configureDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, migrations.SQLite, "sqlite", logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger.With("component", "sqlite")}, nil
}

func configureDB(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, record models.DocumentMetadataRecord) (models.DocumentMetadataRecord, error) {
	if collection == "" {
		return models.DocumentMetadataRecord{}, errEmptyCollection
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	var uploadedAt string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO pdf_metadata (id, collection, uid, name, url) VALUES (?, ?, ?, ?, ?) RETURNING uploaded_at`,
		record.ID, collection, record.UID, record.Name, record.URL,
	).Scan(&uploadedAt)
	if err != nil {
		s.logger.Error("insert failed", "collection", collection, "uid", record.UID, "error", err)
		return models.DocumentMetadataRecord{}, fmt.Errorf("failed to insert record: %w", err)
	}

	record.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return models.DocumentMetadataRecord{}, fmt.Errorf("failed to parse uploaded_at %q: %w", uploadedAt, err)
	}
	return record, nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, collection, uid string) ([]models.DocumentMetadataRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, uid, name, url, uploaded_at FROM pdf_metadata
		 WHERE collection = ? AND uid = ? ORDER BY uploaded_at DESC, id`,
		collection, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.DocumentMetadataRecord{}
	for rows.Next() {
		var r models.DocumentMetadataRecord
		var uploadedAt string
		if err := rows.Scan(&r.ID, &r.UID, &r.Name, &r.URL, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if r.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to parse uploaded_at %q: %w", uploadedAt, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) CheckConnection(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
