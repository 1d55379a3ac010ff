package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	clamd "github.com/dutchcoders/go-clamd"
)

// ClamAVScanner streams files to clamd for a virus check.
type ClamAVScanner struct {
	client *clamd.Clamd
	logger *slog.Logger
}

func NewClamAVScanner(clamAvUrl string, logger *slog.Logger) *ClamAVScanner {
	return &ClamAVScanner{
		client: clamd.NewClamd(clamAvUrl),
		logger: logger.With("component", "clamav"),
	}
}

func (s *ClamAVScanner) CheckConnection(ctx context.Context) error {
	return s.client.Ping()
}

// Scan reports whether r carries a known signature. The scan is aborted
// when ctx ends.
func (s *ClamAVScanner) Scan(ctx context.Context, r io.Reader) (infected bool, signature string, err error) {
	abort := make(chan bool, 1)
	stop := context.AfterFunc(ctx, func() { abort <- true })
	defer stop()

	response, err := s.client.ScanStream(r, abort)
	if err != nil {
		return false, "", fmt.Errorf("scan failed: %w", err)
	}

	for res := range response {
		switch res.Status {
		case clamd.RES_FOUND:
			s.logger.Warn("virus detected", "signature", res.Description)
			infected, signature = true, res.Description
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			err = fmt.Errorf("scan failed: %s", res.Description)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return infected, signature, err
}
