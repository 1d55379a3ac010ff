package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/lumeno-study/lumeno/internal/services"
)

// HandlePDFUploaded writes an activity log line for every stored PDF.
func HandlePDFUploaded(logger *slog.Logger) nats.MsgHandler {
	logger = logger.With("component", "activity")
	return func(msg *nats.Msg) {
		var payload services.UploadedEvent
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("invalid payload", "subject", msg.Subject, "error", err)
			return
		}
		logger.Info("pdf uploaded",
			"id", payload.ID,
			"uid", payload.UID,
			"name", payload.Name,
			"key", payload.Key,
			"uploadedAt", payload.UploadedAt,
		)
	}
}
