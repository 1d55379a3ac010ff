package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps uploads under a directory on disk. It serves the
// offline setup and tests.
type LocalStorage struct {
	root   string
	logger *slog.Logger
}

func NewLocalStorage(root string, logger *slog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalStorage{root: abs, logger: logger.With("component", "local-objects")}, nil
}

func (l *LocalStorage) CheckConnection(ctx context.Context) error {
	_, err := os.Stat(l.root)
	return err
}

// Path resolves key inside the root and rejects keys that escape it.
func (l *LocalStorage) Path(key string) (string, error) {
	p := filepath.Join(l.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

func (l *LocalStorage) BeginResumableUpload(ctx context.Context, key string, body io.Reader, size int64, contentType string) <-chan TransferEvent {
	return runTransfer(ctx, size, func(ctx context.Context, report func(int64)) error {
		dst, err := l.Path(key)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("failed to create object dir: %w", err)
		}

		// Write to a temp file first; the rename publishes the object.
		tmp := dst + ".part"
		f, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("failed to create object: %w", err)
		}
		_, err = io.Copy(f, &progressReader{r: &ctxReader{ctx: ctx, r: body}, report: report})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write object: %w", err)
		}
		if err := os.Rename(tmp, dst); err != nil {
			return fmt.Errorf("failed to publish object: %w", err)
		}
		l.logger.Info("object stored", "key", key, "path", dst)
		return nil
	})
}

func (l *LocalStorage) AccessURL(ctx context.Context, key string) (string, error) {
	p, err := l.Path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("object %s: %w", key, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
