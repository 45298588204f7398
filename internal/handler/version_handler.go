package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/dto"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/service"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/response"
)

type versionService interface {
	ListVersions(ctx context.Context, recordID string) ([]models.VersionSnapshot, error)
	RestoreVersion(ctx context.Context, recordID, versionID string, actor service.Actor, reason *string, encounter service.EncounterContext, request models.RequestContext) (*models.RecordState, error)
}

// VersionHandler exposes the version history of clinical records.
type VersionHandler struct {
	versions versionService
}

// NewVersionHandler constructs the handler.
func NewVersionHandler(versions versionService) *VersionHandler {
	return &VersionHandler{versions: versions}
}

// List godoc
// @Summary List version snapshots of a record
// @Tags Versions
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	versions, err := h.versions.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Restore godoc
// @Summary Restore a record from a historical snapshot
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.RestoreVersionRequest true "Restore payload"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/restore [post]
func (h *VersionHandler) Restore(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RestoreVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid restore payload"))
		return
	}
	if req.VersionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "versionId is required"))
		return
	}
	state, err := h.versions.RestoreVersion(c.Request.Context(), c.Param("id"), req.VersionID, actor, req.Reason, encounterContext(req.Encounter), service.RequestContextFrom(c.Request))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
