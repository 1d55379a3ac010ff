package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/services"
	"github.com/lumeno-study/lumeno/internal/shared"
	"github.com/lumeno-study/lumeno/internal/storage"
)

func fixedID(id string) Option {
	return WithIDGenerator(func() string { return id })
}

func TestSelectRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
	file, err := FromPath(path)
	require.NoError(t, err)
	require.Equal(t, "text/plain", file.ContentType)

	objects, docs := &fakeObjects{}, &fakeDocs{}
	flow := NewFlow(signedIn("u1"), objects, docs, nil)

	err = flow.Select(context.Background(), file)
	require.ErrorIs(t, err, ErrInvalidType)
	assert.ErrorIs(t, err, shared.ErrValidation)

	st := flow.Snapshot()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, "Please select a valid PDF file.", st.Message)
	assert.Empty(t, st.FileName)

	_, err = flow.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoFile, "the rejected file is not kept")

	uploads, urls := objects.calls()
	assert.Zero(t, uploads)
	assert.Zero(t, urls)
	assert.Zero(t, docs.inserts())
}

func TestSelectRequiresExactPDFType(t *testing.T) {
	for _, contentType := range []string{
		"",
		"application/x-pdf",
		"APPLICATION/PDF",
		"application/pdf; charset=binary",
		"application/octet-stream",
	} {
		t.Run(contentType, func(t *testing.T) {
			flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil)
			err := flow.Select(context.Background(), memoryFile("a.pdf", contentType, pdfBytes(10)))
			assert.ErrorIs(t, err, ErrInvalidType)
			assert.Equal(t, PhaseIdle, flow.Snapshot().Phase)
		})
	}
}

func TestSelectWithoutFile(t *testing.T) {
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil)

	err := flow.Select(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, "Please choose a file before uploading.", flow.Snapshot().Message)
}

func TestSelectRejectsOversizedFile(t *testing.T) {
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil, WithMaxBytes(100))

	err := flow.Select(context.Background(), memoryFile("big.pdf", PDFContentType, pdfBytes(101)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, PhaseIdle, flow.Snapshot().Phase)
}

func TestStartWithoutIdentityMakesNoStorageCalls(t *testing.T) {
	objects, docs := &fakeObjects{}, &fakeDocs{}
	flow := NewFlow(&fakeIdentities{}, objects, docs, nil)

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(1024))))
	assert.Equal(t, PhaseValidating, flow.Snapshot().Phase, "identity is checked at start, not selection")

	_, err := flow.Start(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.ErrorIs(t, err, shared.ErrAuthRequired)

	st := flow.Snapshot()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "You must be logged in to upload PDFs.", st.Message)

	uploads, urls := objects.calls()
	assert.Zero(t, uploads)
	assert.Zero(t, urls)
	assert.Zero(t, docs.inserts())
}

func TestProgressPercentSequence(t *testing.T) {
	objects := &fakeObjects{events: []services.TransferEvent{
		{Kind: services.TransferProgress, BytesTransferred: 0, BytesTotal: 4096},
		{Kind: services.TransferProgress, BytesTransferred: 1024, BytesTotal: 4096},
		{Kind: services.TransferProgress, BytesTransferred: 4096, BytesTotal: 4096},
		{Kind: services.TransferCompleted, BytesTransferred: 4096, BytesTotal: 4096},
	}}
	flow := NewFlow(signedIn("u1"), objects, &fakeDocs{}, nil)

	var mu sync.Mutex
	var percents []float64
	flow.Subscribe(func(st JobState) {
		if st.Phase == PhaseTransferring {
			mu.Lock()
			percents = append(percents, st.Percent)
			mu.Unlock()
		}
	})

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(4096))))
	_, err := flow.Start(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{0, 25, 100}, percents)
}

func TestProgressIgnoresRegressionAndClampsOvershoot(t *testing.T) {
	objects := &fakeObjects{events: []services.TransferEvent{
		{Kind: services.TransferProgress, BytesTransferred: 2048, BytesTotal: 4096},
		{Kind: services.TransferProgress, BytesTransferred: 1024, BytesTotal: 4096},
		{Kind: services.TransferProgress, BytesTransferred: 5000, BytesTotal: 4096},
		{Kind: services.TransferCompleted, BytesTransferred: 5000, BytesTotal: 4096},
	}}
	flow := NewFlow(signedIn("u1"), objects, &fakeDocs{}, nil)

	var percents []float64
	flow.Subscribe(func(st JobState) {
		if st.Phase == PhaseTransferring {
			percents = append(percents, st.Percent)
		}
	})

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(4096))))
	_, err := flow.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 50, 100}, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		transferred, total int64
		want               float64
	}{
		{0, 4096, 0},
		{1024, 4096, 25},
		{4096, 4096, 100},
		{8192, 4096, 100},
		{10, 0, 0},
		{-5, 100, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.transferred, tt.total), "%d/%d", tt.transferred, tt.total)
	}
}

func TestUploadEndToEnd(t *testing.T) {
	objects, docs, publisher := &fakeObjects{}, &fakeDocs{}, &fakePublisher{}
	flow := NewFlow(signedIn("u1"), objects, docs, nil, fixedID("job-1"), WithPublisher(publisher))

	data := pdfBytes(2 * 1024 * 1024)
	require.NoError(t, flow.Select(context.Background(), memoryFile("lecture 1.pdf", PDFContentType, data)))

	record, err := flow.Start(context.Background())
	require.NoError(t, err)

	want := models.DocumentMetadataRecord{
		ID:         "job-1",
		UID:        "u1",
		Name:       "lecture 1.pdf",
		URL:        "https://storage.example/pdfs/u1/job-1-lecture 1.pdf",
		UploadedAt: serverTime,
	}
	assert.Equal(t, want, record)
	assert.Equal(t, []models.DocumentMetadataRecord{want}, docs.records)
	assert.Equal(t, []string{storage.CollectionPDFs}, docs.colls)
	assert.Equal(t, []string{"pdfs/u1/job-1-lecture 1.pdf"}, objects.keys)
	assert.Equal(t, []string{PDFContentType}, objects.types)
	assert.Equal(t, data, objects.received)

	st := flow.Snapshot()
	assert.Equal(t, PhaseSucceeded, st.Phase)
	assert.Zero(t, st.BytesTransferred, "progress resets once the job succeeds")
	assert.Zero(t, st.Percent)
	assert.Equal(t, MessageSuccess, st.Message)
	require.NotNil(t, st.Record)
	assert.Equal(t, want, *st.Record)

	assert.Equal(t, []string{"pdfs/u1/job-1-lecture 1.pdf"}, publisher.keys)

	require.NoError(t, flow.Acknowledge())
	st = flow.Snapshot()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, st.BytesTransferred)
	assert.Zero(t, st.Percent)
	assert.Nil(t, st.Record)
}

func TestUploadEndToEndWithRealBackends(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()
	objects, err := services.NewLocalStorage(filepath.Join(t.TempDir(), "objects"), logger)
	require.NoError(t, err)
	docs, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "lumeno.db"), logger)
	require.NoError(t, err)
	defer docs.Close()

	flow := NewFlow(signedIn("u1"), objects, docs, logger)
	require.NoError(t, flow.Select(ctx, memoryFile("paper.pdf", PDFContentType, pdfBytes(300*1024))))
	record, err := flow.Start(ctx)
	require.NoError(t, err)

	assert.Equal(t, "u1", record.UID)
	assert.Equal(t, "paper.pdf", record.Name)
	assert.Contains(t, record.URL, "/pdfs/u1/"+record.ID+"-paper.pdf")
	assert.False(t, record.UploadedAt.IsZero())

	listed, err := docs.ListByOwner(ctx, storage.CollectionPDFs, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.DocumentMetadataRecord{record}, listed)
}

func TestTransportFailureLeavesNoRecord(t *testing.T) {
	boom := errors.New("connection reset by peer")
	objects := &fakeObjects{events: []services.TransferEvent{
		{Kind: services.TransferProgress, BytesTransferred: 100, BytesTotal: 1000},
		{Kind: services.TransferFailed, BytesTransferred: 100, BytesTotal: 1000, Err: boom},
	}}
	docs := &fakeDocs{}
	flow := NewFlow(signedIn("u1"), objects, docs, nil)

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(1000))))
	_, err := flow.Start(context.Background())

	require.ErrorIs(t, err, shared.ErrTransport)
	assert.ErrorIs(t, err, boom)
	st := flow.Snapshot()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "Upload failed. Please try again.", st.Message)

	_, urls := objects.calls()
	assert.Zero(t, urls, "no finalization after a failed transfer")
	assert.Zero(t, docs.inserts())
}

func TestStreamClosedWithoutCompletionFails(t *testing.T) {
	objects := &fakeObjects{events: []services.TransferEvent{
		{Kind: services.TransferProgress, BytesTransferred: 10, BytesTotal: 100},
	}}
	flow := NewFlow(signedIn("u1"), objects, &fakeDocs{}, nil)

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(100))))
	_, err := flow.Start(context.Background())
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.Equal(t, PhaseFailed, flow.Snapshot().Phase)
}

func TestAccessURLFailure(t *testing.T) {
	objects := &fakeObjects{urlErr: errors.New("403")}
	docs := &fakeDocs{}
	flow := NewFlow(signedIn("u1"), objects, docs, nil)

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	_, err := flow.Start(context.Background())
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.Zero(t, docs.inserts())
}

func TestPersistenceFailureKeepsObject(t *testing.T) {
	objects := &fakeObjects{}
	docs := &fakeDocs{err: errors.New("deadline exceeded")}
	publisher := &fakePublisher{}
	flow := NewFlow(signedIn("u1"), objects, docs, nil, WithPublisher(publisher))

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	_, err := flow.Start(context.Background())

	require.ErrorIs(t, err, shared.ErrPersistence)
	assert.Equal(t, PhaseFailed, flow.Snapshot().Phase)
	uploads, _ := objects.calls()
	assert.Equal(t, 1, uploads)
	assert.Empty(t, publisher.keys)
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("nats: no responders")}
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil, WithPublisher(publisher))

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	_, err := flow.Start(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, flow.Snapshot().Phase)
}

func TestOwnerFixedAtStart(t *testing.T) {
	identities := signedIn("u1")
	objects := &fakeObjects{}
	objects.onUpload = func() { identities.set(models.Identity{UID: "u2"}, true) }
	flow := NewFlow(identities, objects, &fakeDocs{}, nil)

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	record, err := flow.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", record.UID)
}

func TestSecondJobWhileInFlight(t *testing.T) {
	objects := &fakeObjects{release: make(chan struct{})}
	flow := NewFlow(signedIn("u1"), objects, &fakeDocs{}, nil)

	transferring := make(chan struct{})
	var once sync.Once
	flow.Subscribe(func(st JobState) {
		if st.Phase == PhaseTransferring {
			once.Do(func() { close(transferring) })
		}
	})

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	done := make(chan error, 1)
	go func() {
		_, err := flow.Start(context.Background())
		done <- err
	}()

	select {
	case <-transferring:
	case <-time.After(time.Second):
		t.Fatal("job never started transferring")
	}

	assert.ErrorIs(t, flow.Select(context.Background(), memoryFile("b.pdf", PDFContentType, pdfBytes(10))), ErrJobInFlight)
	_, err := flow.Start(context.Background())
	assert.ErrorIs(t, err, ErrJobInFlight)
	assert.ErrorIs(t, flow.Acknowledge(), ErrJobInFlight)
	assert.Equal(t, "a.pdf", flow.Snapshot().FileName)

	close(objects.release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseSucceeded, flow.Snapshot().Phase)
}

func TestUploadHoldsFileUntilStarted(t *testing.T) {
	ctx := context.Background()
	objects := &fakeObjects{release: make(chan struct{})}
	flow := NewFlow(signedIn("u1"), objects, &fakeDocs{}, nil, fixedID("job-1"))

	validated := make(chan struct{})
	var once sync.Once
	flow.Subscribe(func(st JobState) {
		if st.Phase == PhaseValidating {
			once.Do(func() { close(validated) })
		}
	})

	first := pdfBytes(10)
	done := make(chan error, 1)
	go func() {
		_, err := flow.Upload(ctx, memoryFile("a.pdf", PDFContentType, first))
		done <- err
	}()

	select {
	case <-validated:
	case <-time.After(time.Second):
		t.Fatal("first file never validated")
	}

	second := memoryFile("b.pdf", PDFContentType, pdfBytes(20))
	_, err := flow.Upload(ctx, second)
	assert.ErrorIs(t, err, ErrJobInFlight)
	assert.ErrorIs(t, flow.Select(ctx, second), ErrJobInFlight)
	_, err = flow.Start(ctx)
	assert.ErrorIs(t, err, ErrJobInFlight)

	close(objects.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"pdfs/u1/job-1-a.pdf"}, objects.keys)
	assert.Equal(t, first, objects.received)
	assert.Equal(t, "a.pdf", flow.Snapshot().FileName)
}

func TestUploadReleasesJobOnRejection(t *testing.T) {
	ctx := context.Background()
	identities := &fakeIdentities{}
	flow := NewFlow(identities, &fakeObjects{}, &fakeDocs{}, nil, WithScanner(&fakeScanner{}))

	_, err := flow.Upload(ctx, memoryFile("notes.txt", "text/plain", []byte("plain")))
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = flow.Upload(ctx, memoryFile("a.pdf", PDFContentType, pdfBytes(10)))
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, PhaseFailed, flow.Snapshot().Phase)

	identities.set(models.Identity{UID: "u1"}, true)
	record, err := flow.Upload(ctx, memoryFile("b.pdf", PDFContentType, pdfBytes(10)))
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", record.Name)
	assert.NoError(t, flow.Acknowledge())
}

func TestSelectAfterTerminalStartsFresh(t *testing.T) {
	flow := NewFlow(&fakeIdentities{}, &fakeObjects{}, &fakeDocs{}, nil)

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	_, err := flow.Start(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)

	require.NoError(t, flow.Select(context.Background(), memoryFile("b.pdf", PDFContentType, pdfBytes(20))))
	st := flow.Snapshot()
	assert.Equal(t, PhaseValidating, st.Phase)
	assert.Equal(t, "b.pdf", st.FileName)
	assert.Empty(t, st.Message)
}

func TestScannerRejectsInfectedFile(t *testing.T) {
	scanner := &fakeScanner{infected: true}
	objects := &fakeObjects{}
	flow := NewFlow(signedIn("u1"), objects, &fakeDocs{}, nil, WithScanner(scanner))

	data := pdfBytes(64)
	err := flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, data))
	require.ErrorIs(t, err, ErrInfected)
	assert.Equal(t, data, scanner.scanned)
	assert.Equal(t, PhaseIdle, flow.Snapshot().Phase)

	_, err = flow.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoFile)
	uploads, _ := objects.calls()
	assert.Zero(t, uploads)
}

func TestScannerOutage(t *testing.T) {
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil,
		WithScanner(&fakeScanner{err: errors.New("dial tcp: connection refused")}))

	err := flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(64)))
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.Equal(t, PhaseIdle, flow.Snapshot().Phase)
}

func TestCleanScanKeepsSelection(t *testing.T) {
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil, WithScanner(&fakeScanner{}))

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(64))))
	_, err := flow.Start(context.Background())
	assert.NoError(t, err)
}

func TestCustomCollection(t *testing.T) {
	docs := &fakeDocs{}
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, docs, nil, WithCollection("study-pdfs"))

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	_, err := flow.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"study-pdfs"}, docs.colls)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	flow := NewFlow(signedIn("u1"), &fakeObjects{}, &fakeDocs{}, nil)
	calls := 0
	unsubscribe := flow.Subscribe(func(JobState) { calls++ })

	require.NoError(t, flow.Select(context.Background(), memoryFile("a.pdf", PDFContentType, pdfBytes(10))))
	require.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe()
	require.NoError(t, flow.Acknowledge())
	assert.Equal(t, 1, calls)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNoFile, "Please choose a file before uploading."},
		{ErrInvalidType, "Please select a valid PDF file."},
		{ErrInfected, "Please select a valid PDF file."},
		{ErrAuthRequired, "You must be logged in to upload PDFs."},
		{shared.Transport("upload failed", errors.New("x")), "Upload failed. Please try again."},
		{shared.Persistence("metadata write failed", errors.New("x")), "Upload failed. Please try again."},
		{ErrJobInFlight, "An upload is already in progress."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}
