package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/response"
)

type auditService interface {
	Get(ctx context.Context, id string) (*models.AuditLogEntry, error)
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error)
	ListDiffs(ctx context.Context, auditLogID string) ([]models.AuditFieldDiff, error)
}

// AuditHandler exposes the read side of the audit trail.
type AuditHandler struct {
	audits auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audits auditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List godoc
// @Summary List audit trail entries
// @Tags Audit
// @Produce json
// @Param recordId query string false "Record ID"
// @Param patientId query string false "Patient ID"
// @Param action query string false "Action kind"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		RecordID:  c.Query("recordId"),
		PatientID: c.Query("patientId"),
	}
	if raw := c.Query("action"); raw != "" {
		filter.Action = models.AuditAction(strings.ToUpper(strings.TrimSpace(raw)))
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}
	entries, err := h.audits.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Get one audit trail entry
// @Tags Audit
// @Produce json
// @Param id path string true "Audit entry ID"
// @Success 200 {object} response.Envelope
// @Router /audit/{id} [get]
func (h *AuditHandler) Get(c *gin.Context) {
	entry, err := h.audits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Diffs godoc
// @Summary List the per-field diffs of one audit entry
// @Tags Audit
// @Produce json
// @Param id path string true "Audit entry ID"
// @Success 200 {object} response.Envelope
// @Router /audit/{id}/diffs [get]
func (h *AuditHandler) Diffs(c *gin.Context) {
	diffs, err := h.audits.ListDiffs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diffs, nil)
}
