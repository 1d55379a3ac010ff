package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/storage/migrations"
)

// PostgresStore keeps records in the pdf_metadata table, one column per
// field plus the collection name.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With("component", "postgres")}
}

// ConnectPostgres opens the database, checks it answers and applies
// pending migrations.
func ConnectPostgres(ctx context.Context, connectionString string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrate(ctx, db, goose.DialectPostgres, migrations.Postgres, "postgres", logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("connected to PostgreSQL")
	return NewPostgresStore(db, logger), nil
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, dir string, logger *slog.Logger) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	for _, r := range results {
		logger.Info("applied migration", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

func (p *PostgresStore) Insert(ctx context.Context, collection string, record models.DocumentMetadataRecord) (models.DocumentMetadataRecord, error) {
	if collection == "" {
		return models.DocumentMetadataRecord{}, errEmptyCollection
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	query := `
    INSERT INTO pdf_metadata (id, collection, uid, name, url)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING uploaded_at
    `
	err := p.db.QueryRowContext(ctx, query,
		record.ID,
		collection,
		record.UID,
		record.Name,
		record.URL,
	).Scan(&record.UploadedAt)
	if err != nil {
		p.logger.Error("insert failed", "collection", collection, "uid", record.UID, "error", err)
		return models.DocumentMetadataRecord{}, fmt.Errorf("failed to insert record: %w", err)
	}
	return record, nil
}

func (p *PostgresStore) ListByOwner(ctx context.Context, collection, uid string) ([]models.DocumentMetadataRecord, error) {
	query := `
    SELECT id, uid, name, url, uploaded_at
    FROM pdf_metadata WHERE collection = $1 AND uid = $2
    ORDER BY uploaded_at DESC
    `
	rows, err := p.db.QueryContext(ctx, query, collection, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.DocumentMetadataRecord{}
	for rows.Next() {
		var r models.DocumentMetadataRecord
		if err := rows.Scan(&r.ID, &r.UID, &r.Name, &r.URL, &r.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PostgresStore) CheckConnection(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
