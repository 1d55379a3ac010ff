// Package upload runs the single-file PDF upload job: validate, transfer to
// object storage, record metadata.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/services"
	"github.com/lumeno-study/lumeno/internal/shared"
	"github.com/lumeno-study/lumeno/internal/storage"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseValidating   Phase = "validating"
	PhaseTransferring Phase = "transferring"
	PhaseFinalizing   Phase = "finalizing"
	PhaseSucceeded    Phase = "succeeded"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether the job waits for Acknowledge.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// JobState is a snapshot of the upload job.
type JobState struct {
	Phase            Phase                          `json:"phase"`
	FileName         string                         `json:"fileName,omitempty"`
	OwnerUID         string                         `json:"ownerUid,omitempty"`
	Key              string                         `json:"key,omitempty"`
	BytesTransferred int64                          `json:"bytesTransferred"`
	BytesTotal       int64                          `json:"bytesTotal"`
	Percent          float64                        `json:"percent"`
	Record           *models.DocumentMetadataRecord `json:"record,omitempty"`
	Message          string                         `json:"message,omitempty"`
	Err              error                          `json:"-"`
}

func (s JobState) equal(o JobState) bool {
	s.Err, o.Err = nil, nil
	return s == o
}

// IdentitySource yields the signed-in identity, if any.
type IdentitySource interface {
	Get() (models.Identity, bool)
}

// Scanner checks file contents during validation.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (infected bool, signature string, err error)
}

// Publisher announces finished uploads.
type Publisher interface {
	PublishUploaded(ctx context.Context, record models.DocumentMetadataRecord, key string) error
}

type Option func(*Flow)

func WithScanner(s Scanner) Option { return func(f *Flow) { f.scanner = s } }

func WithPublisher(p Publisher) Option { return func(f *Flow) { f.publisher = p } }

func WithIDGenerator(gen func() string) Option { return func(f *Flow) { f.newID = gen } }

func WithCollection(name string) Option { return func(f *Flow) { f.collection = name } }

// WithMaxBytes rejects larger files during validation. Zero means no limit.
func WithMaxBytes(n int64) Option { return func(f *Flow) { f.maxBytes = n } }

// Flow owns the one upload job of the process.
//
// Observers run synchronously after every state change and must not call
// Select, Start, Upload or Acknowledge.
type Flow struct {
	identities IdentitySource
	objects    services.ObjectStorage
	docs       storage.Store
	scanner    Scanner
	publisher  Publisher
	newID      func() string
	collection string
	maxBytes   int64
	logger     *slog.Logger

	notifyMu sync.Mutex

	mu        sync.Mutex
	state     JobState
	source    *SourceFile
	busy      bool
	observers []*observer
}

type observer struct {
	fn func(JobState)
}

func NewFlow(identities IdentitySource, objects services.ObjectStorage, docs storage.Store, logger *slog.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Flow{
		identities: identities,
		objects:    objects,
		docs:       docs,
		newID:      uuid.NewString,
		collection: storage.CollectionPDFs,
		logger:     logger.With("component", "upload"),
		state:      JobState{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) Snapshot() JobState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn for every state change.
func (f *Flow) Subscribe(fn func(JobState)) (unsubscribe func()) {
	o := &observer{fn: fn}
	f.mu.Lock()
	f.observers = append(f.observers, o)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, cur := range f.observers {
				if cur == o {
					f.observers = append(f.observers[:i:i], f.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Select validates file and holds it for Start. A terminal job is
// acknowledged implicitly. On rejection the job is idle with no file.
func (f *Flow) Select(ctx context.Context, file *SourceFile) error {
	return f.selectFile(ctx, file, false)
}

// Upload selects file and starts it as one job. Once the file is
// accepted no other caller can select or start until the job ends.
func (f *Flow) Upload(ctx context.Context, file *SourceFile) (models.DocumentMetadataRecord, error) {
	if err := f.selectFile(ctx, file, true); err != nil {
		return models.DocumentMetadataRecord{}, err
	}
	return f.begin(ctx, true)
}

// selectFile validates file. With hold the job stays busy after a
// successful validation and only begin(ctx, true) may take it over.
func (f *Flow) selectFile(ctx context.Context, file *SourceFile, hold bool) error {
	err := f.transition(func(st *JobState) error {
		if f.busy {
			return ErrJobInFlight
		}
		f.source = nil
		*st = JobState{Phase: PhaseIdle}

		if file == nil || file.Open == nil {
			return f.reject(st, ErrNoFile)
		}
		if file.ContentType != PDFContentType {
			return f.reject(st, ErrInvalidType)
		}
		if f.maxBytes > 0 && file.Size > f.maxBytes {
			return f.reject(st, ErrFileTooLarge)
		}

		*st = JobState{Phase: PhaseValidating, FileName: file.Name, BytesTotal: file.Size}
		f.busy = hold || f.scanner != nil
		if f.scanner == nil {
			f.source = file
		}
		return nil
	})
	if err != nil || f.scanner == nil {
		if err != nil {
			f.logger.Info("file rejected", "error", err)
		}
		return err
	}

	scanErr := f.scan(ctx, file)
	return f.transition(func(st *JobState) error {
		if scanErr != nil {
			f.busy = false
			*st = JobState{Phase: PhaseIdle}
			return f.reject(st, scanErr)
		}
		f.busy = hold
		f.source = file
		return nil
	})
}

func (f *Flow) scan(ctx context.Context, file *SourceFile) error {
	span, ctx := tracer.StartSpanFromContext(ctx, "upload.scan")
	rc, err := file.Open()
	if err != nil {
		span.Finish(tracer.WithError(err))
		return shared.Transport("could not read file", err)
	}
	defer rc.Close()

	infected, signature, err := f.scanner.Scan(ctx, rc)
	span.Finish(tracer.WithError(err))
	switch {
	case err != nil:
		return shared.Transport("virus scan failed", err)
	case infected:
		f.logger.Warn("infected file rejected", "file", file.Name, "signature", signature)
		return ErrInfected
	}
	return nil
}

func (f *Flow) reject(st *JobState, err error) error {
	st.Message = UserMessage(err)
	st.Err = err
	return err
}

// Start uploads the selected file as the current identity and records its
// metadata. It blocks until the job reaches succeeded or failed.
func (f *Flow) Start(ctx context.Context) (models.DocumentMetadataRecord, error) {
	return f.begin(ctx, false)
}

// begin starts the selected file. held means the caller owns the busy
// reservation taken by selectFile.
func (f *Flow) begin(ctx context.Context, held bool) (models.DocumentMetadataRecord, error) {
	var (
		file     *SourceFile
		identity models.Identity
		key      string
		id       string
	)
	err := f.transition(func(st *JobState) error {
		if held {
			f.busy = false
		}
		if f.busy {
			return ErrJobInFlight
		}
		if f.source == nil || st.Phase != PhaseValidating {
			return ErrNoFile
		}

		var ok bool
		identity, ok = f.identities.Get()
		if !ok {
			f.source = nil
			*st = JobState{Phase: PhaseFailed, FileName: st.FileName}
			return f.reject(st, ErrAuthRequired)
		}

		file = f.source
		id = f.newID()
		key = ObjectKey(identity.UID, id, file.Name)
		f.busy = true
		*st = JobState{
			Phase:      PhaseTransferring,
			FileName:   file.Name,
			OwnerUID:   identity.UID,
			Key:        key,
			BytesTotal: file.Size,
		}
		return nil
	})
	if err != nil {
		return models.DocumentMetadataRecord{}, err
	}

	span, ctx := tracer.StartSpanFromContext(ctx, "upload.job",
		tracer.ResourceName(f.collection),
		tracer.Tag("uid", identity.UID),
		tracer.Tag("size", file.Size),
	)
	record, err := f.run(ctx, file, identity.UID, id, key)
	span.Finish(tracer.WithError(err))
	return record, err
}

func (f *Flow) run(ctx context.Context, file *SourceFile, uid, id, key string) (models.DocumentMetadataRecord, error) {
	log := f.logger.With("uid", uid, "key", key)
	log.Info("upload started", "size", file.Size)

	if err := f.transfer(ctx, file, key); err != nil {
		log.Error("transfer failed", "error", err)
		return models.DocumentMetadataRecord{}, f.fail(shared.Transport("upload failed", err))
	}

	f.setPhase(PhaseFinalizing)

	url, err := f.objects.AccessURL(ctx, key)
	if err != nil {
		log.Error("access url unavailable", "error", err)
		return models.DocumentMetadataRecord{}, f.fail(shared.Transport("upload failed", err))
	}

	record, err := f.docs.Insert(ctx, f.collection, models.DocumentMetadataRecord{
		ID:   id,
		UID:  uid,
		Name: file.Name,
		URL:  url,
	})
	if err != nil {
		// The stored object is left in place.
		log.Error("metadata write failed", "error", err)
		return models.DocumentMetadataRecord{}, f.fail(shared.Persistence("metadata write failed", err))
	}

	_ = f.transition(func(st *JobState) error {
		f.busy = false
		f.source = nil
		st.Phase = PhaseSucceeded
		st.BytesTransferred = 0
		st.Percent = 0
		st.Record = &record
		st.Message = MessageSuccess
		return nil
	})
	log.Info("upload succeeded", "id", record.ID)

	if f.publisher != nil {
		if err := f.publisher.PublishUploaded(ctx, record, key); err != nil {
			log.Warn("upload event not published", "error", err)
		}
	}
	return record, nil
}

// transfer consumes the storage event stream until it closes.
func (f *Flow) transfer(ctx context.Context, file *SourceFile, key string) error {
	span, ctx := tracer.StartSpanFromContext(ctx, "upload.transfer")
	body, err := file.Open()
	if err != nil {
		span.Finish(tracer.WithError(err))
		return err
	}
	defer body.Close()

	var (
		completed bool
		failure   error
	)
	for ev := range f.objects.BeginResumableUpload(ctx, key, body, file.Size, file.ContentType) {
		switch ev.Kind {
		case services.TransferProgress:
			f.progress(ev.BytesTransferred, ev.BytesTotal)
		case services.TransferCompleted:
			f.progress(ev.BytesTransferred, ev.BytesTotal)
			completed = true
		case services.TransferFailed:
			failure = ev.Err
			if failure == nil {
				failure = errors.New("transfer failed")
			}
		}
	}
	if failure == nil && !completed {
		failure = errors.New("transfer ended without completing")
	}
	span.Finish(tracer.WithError(failure))
	return failure
}

// progress records one report. Reports that would move the count or the
// percentage backwards are ignored.
func (f *Flow) progress(transferred, total int64) {
	_ = f.transition(func(st *JobState) error {
		if st.Phase != PhaseTransferring || transferred < st.BytesTransferred {
			return nil
		}
		if total > 0 {
			st.BytesTotal = total
		}
		st.BytesTransferred = transferred
		if p := Percent(transferred, st.BytesTotal); p > st.Percent {
			st.Percent = p
		}
		return nil
	})
}

func (f *Flow) setPhase(p Phase) {
	_ = f.transition(func(st *JobState) error {
		st.Phase = p
		return nil
	})
}

func (f *Flow) fail(err error) error {
	_ = f.transition(func(st *JobState) error {
		f.busy = false
		f.source = nil
		st.Phase = PhaseFailed
		f.reject(st, err)
		return nil
	})
	return err
}

// Acknowledge resets the job to idle with zero progress.
func (f *Flow) Acknowledge() error {
	return f.transition(func(st *JobState) error {
		if f.busy {
			return ErrJobInFlight
		}
		f.source = nil
		*st = JobState{Phase: PhaseIdle}
		return nil
	})
}

// transition applies mutate under the lock and notifies observers if the
// state changed, whatever mutate returned.
func (f *Flow) transition(mutate func(*JobState) error) error {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	before := f.state
	err := mutate(&f.state)
	after := f.state
	observers := make([]*observer, len(f.observers))
	copy(observers, f.observers)
	f.mu.Unlock()

	if !after.equal(before) {
		for _, o := range observers {
			o.fn(after)
		}
	}
	return err
}

// Percent is transferred/total as a percentage in [0, 100]. A zero total
// gives 0.
func Percent(transferred, total int64) float64 {
	if total <= 0 || transferred <= 0 {
		return 0
	}
	p := float64(transferred) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}
