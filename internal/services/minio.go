package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lumeno-study/lumeno/internal/configuration"
)

// MinioStorage stores uploads in a MinIO bucket and serves them through
// presigned GET URLs.
type MinioStorage struct {
	Client     *minio.Client
	BucketName string
	urlExpiry  time.Duration
	logger     *slog.Logger
}

// NewMinioStorage connects to MinIO and creates the bucket when missing.
func NewMinioStorage(ctx context.Context, cfg configuration.MinIOConfig, urlExpiry time.Duration, logger *slog.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", "bucket", cfg.BucketName)
	}

	logger.Info("connected to MinIO", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)
	return &MinioStorage{
		Client:     client,
		BucketName: cfg.BucketName,
		urlExpiry:  urlExpiry,
		logger:     logger.With("component", "minio"),
	}, nil
}

func (m *MinioStorage) CheckConnection(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("minio service not initialized")
	}
	_, err := m.Client.BucketExists(ctx, m.BucketName)
	return err
}

func (m *MinioStorage) BeginResumableUpload(ctx context.Context, key string, body io.Reader, size int64, contentType string) <-chan TransferEvent {
	return runTransfer(ctx, size, func(ctx context.Context, report func(int64)) error {
		info, err := m.Client.PutObject(ctx, m.BucketName, key,
			&progressReader{r: body, report: report},
			size,
			minio.PutObjectOptions{ContentType: contentType},
		)
		if err != nil {
			m.logger.Error("put object failed", "key", key, "error", err)
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		m.logger.Info("object stored", "key", key, "size", info.Size, "etag", info.ETag)
		return nil
	})
}

func (m *MinioStorage) AccessURL(ctx context.Context, key string) (string, error) {
	u, err := m.Client.PresignedGetObject(ctx, m.BucketName, key, m.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}
