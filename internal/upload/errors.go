package upload

import (
	"errors"

	"github.com/lumeno-study/lumeno/internal/shared"
)

// ErrJobInFlight is returned when a job is already transferring or
// finalizing. The flow runs one job at a time and does not queue.
var ErrJobInFlight = errors.New("an upload is already in progress")

var (
	ErrNoFile       = shared.Validation("no file selected")
	ErrInvalidType  = shared.Validation("invalid file type")
	ErrFileTooLarge = shared.Validation("file too large")
	ErrInfected     = shared.Validation("file rejected by virus scan")
	ErrAuthRequired = shared.AuthRequired("authentication required")
)

const (
	MessageSuccess     = "PDF uploaded successfully!"
	messageInvalidFile = "Please select a valid PDF file."
	messageNoFile      = "Please choose a file before uploading."
	messageLoggedOut   = "You must be logged in to upload PDFs."
	messageFailed      = "Upload failed. Please try again."
	messageBusy        = "An upload is already in progress."
)

// UserMessage turns a flow error into the text shown on the upload page.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrJobInFlight):
		return messageBusy
	case errors.Is(err, ErrNoFile):
		return messageNoFile
	case errors.Is(err, shared.ErrValidation):
		return messageInvalidFile
	case errors.Is(err, shared.ErrAuthRequired):
		return messageLoggedOut
	default:
		return messageFailed
	}
}
