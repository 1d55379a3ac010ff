package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lumeno-study/lumeno/internal/configuration"
)

// firebaseTokenKey is the object metadata key Firebase Storage reads
// download tokens from.
const firebaseTokenKey = "firebaseStorageDownloadTokens"

// GCSStorage stores uploads in a Cloud Storage bucket.
type GCSStorage struct {
	client       *storage.Client
	bucket       *storage.BucketHandle
	bucketName   string
	firebaseURLs bool
	urlExpiry    time.Duration
	logger       *slog.Logger
}

func NewGCSStorage(ctx context.Context, cfg configuration.GCSConfig, urlExpiry time.Duration, logger *slog.Logger) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	logger.Info("connected to Cloud Storage", "bucket", cfg.Bucket)
	return &GCSStorage{
		client:       client,
		bucket:       client.Bucket(cfg.Bucket),
		bucketName:   cfg.Bucket,
		firebaseURLs: cfg.FirebaseURLs,
		urlExpiry:    urlExpiry,
		logger:       logger.With("component", "gcs"),
	}, nil
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}

func (g *GCSStorage) CheckConnection(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	return err
}

// BeginResumableUpload streams body through a resumable Cloud Storage
// writer. The writer's progress callback feeds the event stream.
func (g *GCSStorage) BeginResumableUpload(ctx context.Context, key string, body io.Reader, size int64, contentType string) <-chan TransferEvent {
	return runTransfer(ctx, size, func(ctx context.Context, report func(int64)) error {
		// Cancelling the writer's context abandons the upload; Close would
		// commit whatever was written so far.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		w := g.bucket.Object(key).NewWriter(ctx)
		w.ContentType = contentType
		w.ProgressFunc = report
		if g.firebaseURLs {
			w.Metadata = map[string]string{firebaseTokenKey: uuid.NewString()}
		}

		if _, err := io.Copy(w, body); err != nil {
			cancel()
			g.logger.Error("failed to copy content to GCS object", "key", key, "error", err)
			return fmt.Errorf("failed to write to GCS: %w", err)
		}
		if err := w.Close(); err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				g.logger.Error("GCS rejected object", "key", key, "code", gerr.Code, "error", gerr.Message)
			}
			return fmt.Errorf("failed to finalize GCS write: %w", err)
		}
		report(w.Attrs().Size)
		return nil
	})
}

// AccessURL returns a Firebase token URL when the object carries a
// download token, otherwise a V4 signed URL.
func (g *GCSStorage) AccessURL(ctx context.Context, key string) (string, error) {
	if g.firebaseURLs {
		attrs, err := g.bucket.Object(key).Attrs(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read attributes of %s: %w", key, err)
		}
		if token := attrs.Metadata[firebaseTokenKey]; token != "" {
			return firebaseDownloadURL(g.bucketName, key, token), nil
		}
	}

	signed, err := g.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(g.urlExpiry),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", key, err)
	}
	return signed, nil
}

func firebaseDownloadURL(bucket, key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(key), url.QueryEscape(token))
}
