package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/cmd/middleware"
	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/routing"
	"github.com/lumeno-study/lumeno/internal/shared"
	"github.com/lumeno-study/lumeno/internal/upload"
)

// multipartOverhead is allowed on top of the file size limit for the
// form boundaries and part headers.
const multipartOverhead = 1 << 20

// UploadPDF uploads the multipart "file" field as one job. It blocks until
// the job is succeeded or failed. Browsers posting the upload form are
// redirected back to the upload page, which renders the job's message.
func (h *Handler) UploadPDF(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	var file *upload.SourceFile
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.replyUploadError(c, upload.ErrFileTooLarge)
			return
		}
	} else {
		file = upload.FromFileHeader(fh)
	}

	record, err := h.uploads.Upload(c.Request.Context(), file)
	if err != nil {
		h.replyUploadError(c, err)
		return
	}

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, string(routing.RouteUpload))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": upload.MessageSuccess,
		"pdf":     record,
		"job":     h.uploads.Snapshot(),
	})
}

func (h *Handler) replyUploadError(c *gin.Context, err error) {
	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, string(routing.RouteUpload))
		return
	}
	c.JSON(uploadStatus(err), gin.H{
		"error": upload.UserMessage(err),
		"job":   h.uploads.Snapshot(),
	})
}

func wantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, upload.ErrJobInFlight):
		return http.StatusConflict
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) UploadStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.uploads.Snapshot())
}

// AcknowledgeUpload dismisses a finished job.
func (h *Handler) AcknowledgeUpload(c *gin.Context) {
	if err := h.uploads.Acknowledge(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": upload.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, h.uploads.Snapshot())
}

// ListPDFs returns the signed-in user's records, newest first.
func (h *Handler) ListPDFs(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	records, err := h.documents.ListByOwner(c.Request.Context(), h.collection, identity.UID)
	if err != nil {
		h.logger.Error("list pdfs", "uid", identity.UID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch documents"})
		return
	}
	if records == nil {
		records = []models.DocumentMetadataRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"pdfs":  records,
		"total": len(records),
	})
}
