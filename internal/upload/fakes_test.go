package upload

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/services"
)

type fakeIdentities struct {
	mu       sync.Mutex
	identity models.Identity
	ok       bool
}

func signedIn(uid string) *fakeIdentities {
	return &fakeIdentities{identity: models.Identity{UID: uid, Email: uid + "@example.com"}, ok: true}
}

func (f *fakeIdentities) Get() (models.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity, f.ok
}

func (f *fakeIdentities) set(identity models.Identity, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity, f.ok = identity, ok
}

// fakeObjects records every call. When events is nil it reads the body and
// reports progress in 512 KiB steps before completing.
type fakeObjects struct {
	mu        sync.Mutex
	uploads   int
	urlCalls  int
	keys      []string
	types     []string
	received  []byte
	events    []services.TransferEvent
	urlErr    error
	release   chan struct{}
	onUpload  func()
	urlPrefix string
}

func (f *fakeObjects) BeginResumableUpload(ctx context.Context, key string, body io.Reader, size int64, contentType string) <-chan services.TransferEvent {
	f.mu.Lock()
	f.uploads++
	f.keys = append(f.keys, key)
	f.types = append(f.types, contentType)
	scripted := f.events
	release := f.release
	onUpload := f.onUpload
	f.mu.Unlock()

	out := make(chan services.TransferEvent)
	go func() {
		defer close(out)
		if onUpload != nil {
			onUpload()
		}
		if release != nil {
			<-release
		}
		if scripted != nil {
			for _, ev := range scripted {
				out <- ev
			}
			return
		}

		data, err := io.ReadAll(body)
		if err != nil {
			out <- services.TransferEvent{Kind: services.TransferFailed, Err: err}
			return
		}
		f.mu.Lock()
		f.received = data
		f.mu.Unlock()

		const step = 512 * 1024
		for sent := int64(0); sent < size; {
			sent += step
			if sent > size {
				sent = size
			}
			out <- services.TransferEvent{Kind: services.TransferProgress, BytesTransferred: sent, BytesTotal: size}
		}
		out <- services.TransferEvent{Kind: services.TransferCompleted, BytesTransferred: size, BytesTotal: size}
	}()
	return out
}

func (f *fakeObjects) AccessURL(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urlCalls++
	if f.urlErr != nil {
		return "", f.urlErr
	}
	prefix := f.urlPrefix
	if prefix == "" {
		prefix = "https://storage.example/"
	}
	return prefix + key, nil
}

func (f *fakeObjects) calls() (uploads, urls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.urlCalls
}

var serverTime = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeDocs struct {
	mu      sync.Mutex
	records []models.DocumentMetadataRecord
	colls   []string
	err     error
}

func (f *fakeDocs) Insert(ctx context.Context, collection string, record models.DocumentMetadataRecord) (models.DocumentMetadataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.DocumentMetadataRecord{}, f.err
	}
	record.UploadedAt = serverTime
	f.records = append(f.records, record)
	f.colls = append(f.colls, collection)
	return record, nil
}

func (f *fakeDocs) ListByOwner(ctx context.Context, collection, uid string) ([]models.DocumentMetadataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DocumentMetadataRecord
	for _, r := range f.records {
		if r.UID == uid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDocs) Close() error { return nil }

func (f *fakeDocs) inserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeScanner struct {
	infected bool
	err      error
	scanned  []byte
}

func (f *fakeScanner) Scan(ctx context.Context, r io.Reader) (bool, string, error) {
	f.scanned, _ = io.ReadAll(r)
	return f.infected, "Eicar-Test-Signature", f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []models.DocumentMetadataRecord
	err    error
}

func (f *fakePublisher) PublishUploaded(ctx context.Context, record models.DocumentMetadataRecord, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.events = append(f.events, record)
	return f.err
}

func memoryFile(name, contentType string, data []byte) *SourceFile {
	return &SourceFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func pdfBytes(n int) []byte {
	data := bytes.Repeat([]byte{'x'}, n)
	copy(data, "%PDF-1.7\n")
	return data
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
