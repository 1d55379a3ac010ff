package nats

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/lumeno-study/lumeno/internal/api/handlers"
	"github.com/lumeno-study/lumeno/internal/services"
)

func Routes(logger *slog.Logger) map[string]nats.MsgHandler {
	return map[string]nats.MsgHandler{
		services.SubjectUploaded: handlers.HandlePDFUploaded(logger),
	}
}
