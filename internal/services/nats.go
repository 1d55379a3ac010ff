package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lumeno-study/lumeno/internal/models"
)

const (
	EventStream     = "pdf-events"
	SubjectUploaded = "pdfs.uploaded"
)

// UploadedEvent is published once a PDF's metadata record is written.
type UploadedEvent struct {
	ID         string    `json:"id"`
	UID        string    `json:"uid"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Key        string    `json:"key"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// EventBus publishes upload events to a JetStream stream.
type EventBus struct {
	Conn   *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// ConnectNATS connects to NATS and makes sure the event stream exists.
func ConnectNATS(url string, logger *slog.Logger) (*EventBus, error) {
	logger = logger.With("component", "nats")
	opts := []nats.Option{
		nats.Name("lumeno"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to init JetStream: %w", err)
	}

	bus := &EventBus{Conn: nc, js: js, logger: logger}
	if err := bus.ensureStreams(); err != nil {
		logger.Warn("failed to ensure streams", "error", err)
	}

	logger.Info("connected and JetStream initialized", "url", url)
	return bus, nil
}

func (b *EventBus) ensureStreams() error {
	if _, err := b.js.StreamInfo(EventStream); err == nil {
		return nil
	}
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:     EventStream,
		Subjects: []string{"pdfs.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

func (b *EventBus) CheckConnection(ctx context.Context) error {
	if b == nil || b.Conn == nil || !b.Conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return nil
}

// PublishEvent publishes payload as JSON. msgID deduplicates redeliveries.
func (b *EventBus) PublishEvent(ctx context.Context, subject, msgID string, payload any) error {
	if b == nil || b.js == nil {
		return errors.New("jetstream not initialized")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := b.js.Publish(subject, data, nats.MsgId(msgID), nats.Context(ctx)); err != nil {
		b.logger.Error("publish failed", "subject", subject, "error", err)
		return err
	}
	return nil
}

// PublishUploaded announces a stored PDF.
func (b *EventBus) PublishUploaded(ctx context.Context, record models.DocumentMetadataRecord, key string) error {
	return b.PublishEvent(ctx, SubjectUploaded, key, NewUploadedEvent(record, key))
}

func NewUploadedEvent(record models.DocumentMetadataRecord, key string) UploadedEvent {
	return UploadedEvent{
		ID:         record.ID,
		UID:        record.UID,
		Name:       record.Name,
		URL:        record.URL,
		Key:        key,
		UploadedAt: record.UploadedAt,
	}
}

func (b *EventBus) Close() {
	if b != nil && b.Conn != nil {
		b.Conn.Close()
	}
}
