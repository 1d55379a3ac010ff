package services

import (
	"context"
	"io"
	"sync"
)

type TransferKind int

const (
	TransferProgress TransferKind = iota
	TransferCompleted
	TransferFailed
)

func (k TransferKind) String() string {
	switch k {
	case TransferProgress:
		return "progress"
	case TransferCompleted:
		return "completed"
	case TransferFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferEvent is one report on a running upload. A stream carries any
// number of progress events followed by exactly one completed or failed
// event, then closes.
type TransferEvent struct {
	Kind             TransferKind
	BytesTransferred int64
	BytesTotal       int64
	Err              error
}

// ObjectStorage stores uploaded files under a key and hands out a URL to
// fetch them.
type ObjectStorage interface {
	BeginResumableUpload(ctx context.Context, key string, body io.Reader, size int64, contentType string) <-chan TransferEvent
	AccessURL(ctx context.Context, key string) (string, error)
}

// HealthChecker is implemented by backends that can probe their remote end.
type HealthChecker interface {
	CheckConnection(ctx context.Context) error
}

// runTransfer runs upload in its own goroutine and turns its progress
// reports into a TransferEvent stream. Progress events are dropped rather
// than blocking the upload when the reader lags; the terminal event is
// always delivered.
func runTransfer(ctx context.Context, size int64, upload func(ctx context.Context, report func(written int64)) error) <-chan TransferEvent {
	events := make(chan TransferEvent, 16)

	go func() {
		defer close(events)

		var mu sync.Mutex
		var last int64
		report := func(written int64) {
			mu.Lock()
			defer mu.Unlock()
			if written < last {
				return
			}
			last = written
			select {
			case events <- TransferEvent{Kind: TransferProgress, BytesTransferred: written, BytesTotal: size}:
			default:
			}
		}

		err := upload(ctx, report)

		mu.Lock()
		written := last
		mu.Unlock()
		if err != nil {
			events <- TransferEvent{Kind: TransferFailed, BytesTransferred: written, BytesTotal: size, Err: err}
			return
		}
		events <- TransferEvent{Kind: TransferCompleted, BytesTransferred: size, BytesTotal: size}
	}()

	return events
}

// progressReader reports the running byte count after every Read.
type progressReader struct {
	r      io.Reader
	n      int64
	report func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.n += int64(n)
		p.report(p.n)
	}
	return n, err
}
