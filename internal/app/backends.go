package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumeno-study/lumeno/internal/configuration"
	"github.com/lumeno-study/lumeno/internal/services"
	"github.com/lumeno-study/lumeno/internal/storage"
)

// NewObjectStorage opens the configured object backend. The returned
// close function is never nil.
func NewObjectStorage(ctx context.Context, cfg *configuration.Config, logger *slog.Logger) (services.ObjectStorage, func() error, error) {
	noop := func() error { return nil }
	expiry := cfg.Objects.URLExpiry

	switch cfg.Objects.Backend {
	case configuration.ObjectsMinIO:
		s, err := services.NewMinioStorage(ctx, cfg.Objects.MinIO, expiry, logger)
		return s, noop, err
	case configuration.ObjectsGCS:
		s, err := services.NewGCSStorage(ctx, cfg.Objects.GCS, expiry, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case configuration.ObjectsS3:
		s, err := services.NewS3Storage(ctx, cfg.Objects.S3, expiry, logger)
		return s, noop, err
	case configuration.ObjectsLocal:
		s, err := services.NewLocalStorage(cfg.Objects.LocalDir, logger)
		return s, noop, err
	default:
		return nil, noop, fmt.Errorf("unknown objects backend %q", cfg.Objects.Backend)
	}
}

// NewDocumentStore opens the configured metadata store.
func NewDocumentStore(ctx context.Context, cfg *configuration.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Documents.Backend {
	case configuration.DocumentsPostgres:
		return storage.ConnectPostgres(ctx, cfg.Documents.Database.ConnectionString(), logger)
	case configuration.DocumentsFirestore:
		return storage.NewFirestoreStore(ctx, cfg.Documents.Firestore.ProjectID, cfg.Documents.Firestore.CredentialsFile, logger)
	case configuration.DocumentsSQLite:
		return storage.OpenSQLite(ctx, cfg.Documents.SQLitePath, logger)
	case configuration.DocumentsLocal:
		return storage.OpenLocal(cfg.Documents.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown documents backend %q", cfg.Documents.Backend)
	}
}
