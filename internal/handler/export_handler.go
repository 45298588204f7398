package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/dto"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/service"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/response"
)

type exportService interface {
	ExportRecord(ctx context.Context, recordID string, format service.ExportFormat, actor service.Actor, request models.RequestContext) (*service.ExportResult, error)
	ExportAuditTrail(ctx context.Context, recordID string, format service.ExportFormat, actor service.Actor, request models.RequestContext) (*service.ExportResult, error)
	PrintRecord(ctx context.Context, recordID string, actor service.Actor, request models.RequestContext) ([]byte, error)
	Download(token string) (*os.File, string, error)
}

// ExportHandler exposes document exports and downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

func exportFormat(c *gin.Context) service.ExportFormat {
	raw := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if raw == "" {
		return service.FormatPDF
	}
	return service.ExportFormat(raw)
}

// Export godoc
// @Summary Export the record or its audit trail as a document
// @Tags Exports
// @Produce json
// @Param id path string true "Record ID"
// @Param format query string false "csv or pdf"
// @Param kind query string false "record or audit"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var (
		result *service.ExportResult
		err    error
	)
	switch strings.ToLower(c.DefaultQuery("kind", "record")) {
	case "record":
		result, err = h.exports.ExportRecord(c.Request.Context(), c.Param("id"), exportFormat(c), actor, service.RequestContextFrom(c.Request))
	case "audit":
		result, err = h.exports.ExportAuditTrail(c.Request.Context(), c.Param("id"), exportFormat(c), actor, service.RequestContextFrom(c.Request))
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "kind must be record or audit"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExportResponse{
		ExportID:  result.ExportID,
		FileName:  result.FileName,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Size:      result.Size,
	}, nil)
}

// Print godoc
// @Summary Render the record as a PDF for printing
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Record ID"
// @Success 200 {file} binary
// @Router /records/{id}/print [get]
func (h *ExportHandler) Print(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	content, err := h.exports.PrintRecord(c.Request.Context(), c.Param("id"), actor, service.RequestContextFrom(c.Request))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="historia.pdf"`)
	c.Data(http.StatusOK, "application/pdf", content)
}

// Download godoc
// @Summary Download a previously exported document
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, relPath, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".pdf":
		contentType = "application/pdf"
	case ".csv":
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(relPath)+`"`)
	c.Status(http.StatusOK)
	c.Header("Content-Type", contentType)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
