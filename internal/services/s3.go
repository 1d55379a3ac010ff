package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lumeno-study/lumeno/internal/configuration"
)

const s3PutExpiry = 15 * time.Minute

// S3Storage uploads through presigned PUT requests so the byte count can
// be observed on the request body, and hands out presigned GET URLs.
type S3Storage struct {
	presign    *s3.PresignClient
	client     *s3.Client
	httpClient *http.Client
	bucket     string
	urlExpiry  time.Duration
	logger     *slog.Logger
}

func NewS3Storage(ctx context.Context, cfg configuration.S3Config, urlExpiry time.Duration, logger *slog.Logger) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		presign:    s3.NewPresignClient(client),
		client:     client,
		httpClient: http.DefaultClient,
		bucket:     cfg.Bucket,
		urlExpiry:  urlExpiry,
		logger:     logger.With("component", "s3"),
	}, nil
}

func (s *S3Storage) CheckConnection(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Storage) BeginResumableUpload(ctx context.Context, key string, body io.Reader, size int64, contentType string) <-chan TransferEvent {
	return runTransfer(ctx, size, func(ctx context.Context, report func(int64)) error {
		signed, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			ContentType: aws.String(contentType),
		}, s3.WithPresignExpires(s3PutExpiry))
		if err != nil {
			return fmt.Errorf("failed to presign upload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, signed.Method, signed.URL, &progressReader{r: body, report: report})
		if err != nil {
			return fmt.Errorf("failed to build upload request: %w", err)
		}
		req.ContentLength = size
		for name, values := range signed.SignedHeader {
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("upload request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			s.logger.Error("upload rejected", "key", key, "status", resp.StatusCode, "body", string(msg))
			return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
		}
		s.logger.Info("object stored", "key", key, "size", size)
		return nil
	})
}

func (s *S3Storage) AccessURL(ctx context.Context, key string) (string, error) {
	signed, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return signed.URL, nil
}
