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

type recordService interface {
	Create(ctx context.Context, params service.CreateRecordParams) (*models.Record, error)
	Update(ctx context.Context, recordID string, params service.UpdateRecordParams) (*models.Record, []models.FieldDiff, error)
	Delete(ctx context.Context, recordID string, actor service.Actor, reason *string, request models.RequestContext) error
	Get(ctx context.Context, recordID string, actor service.Actor, request models.RequestContext) (*models.Record, error)
	GetByPatient(ctx context.Context, patientID string) (*models.Record, error)
}

type statusService interface {
	ForRecord(ctx context.Context, recordID string) (*models.RecordStatusInfo, error)
	ForPatient(ctx context.Context, patientID string) (*models.RecordStatusInfo, error)
}

// RecordHandler exposes REST endpoints for clinical records.
type RecordHandler struct {
	records recordService
	status  statusService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(records recordService, status statusService) *RecordHandler {
	return &RecordHandler{records: records, status: status}
}

func encounterContext(req dto.EncounterRequest) service.EncounterContext {
	return service.EncounterContext{
		EncounterID:         req.EncounterID,
		IsOutsideEncounter:  req.IsOutsideEncounter,
		InformationSource:   req.InformationSource,
		VerifiedWithPatient: req.VerifiedWithPatient,
	}
}

// Create godoc
// @Summary Create a clinical record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Router /records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid record payload"))
		return
	}
	record, err := h.records.Create(c.Request.Context(), service.CreateRecordParams{
		PatientID:  req.PatientID,
		RecordType: req.RecordType,
		State:      req.State,
		Actor:      actor,
		Reason:     req.Reason,
		Encounter:  encounterContext(req.Encounter),
		Request:    service.RequestContextFrom(c.Request),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := dto.NewRecordResponse(record)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render record"))
		return
	}
	response.Created(c, body)
}

// Get godoc
// @Summary Get a clinical record
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.records.Get(c.Request.Context(), c.Param("id"), actor, service.RequestContextFrom(c.Request))
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := dto.NewRecordResponse(record)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render record"))
		return
	}
	response.JSON(c, http.StatusOK, body, nil)
}

// GetByPatient godoc
// @Summary Get the record of a patient
// @Tags Records
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{patientId}/record [get]
func (h *RecordHandler) GetByPatient(c *gin.Context) {
	record, err := h.records.GetByPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := dto.NewRecordResponse(record)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render record"))
		return
	}
	response.JSON(c, http.StatusOK, body, nil)
}

// Update godoc
// @Summary Replace the record state
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.UpdateRecordRequest true "New state"
// @Success 200 {object} response.Envelope
// @Router /records/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid record payload"))
		return
	}
	record, diffs, err := h.records.Update(c.Request.Context(), c.Param("id"), service.UpdateRecordParams{
		State:     req.State,
		Actor:     actor,
		Reason:    req.Reason,
		Encounter: encounterContext(req.Encounter),
		Request:   service.RequestContextFrom(c.Request),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := dto.NewRecordResponse(record)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render record"))
		return
	}
	response.JSON(c, http.StatusOK, dto.UpdateRecordResponse{
		Record:  body,
		Diffs:   diffs,
		Summary: models.SummarizeDiffs(diffs),
	}, nil)
}

// Delete godoc
// @Summary Delete a clinical record
// @Tags Records
// @Accept json
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DeleteRecordRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid delete payload"))
			return
		}
	}
	if err := h.records.Delete(c.Request.Context(), c.Param("id"), actor, req.Reason, service.RequestContextFrom(c.Request)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Get the derived verification status of a record
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/status [get]
func (h *RecordHandler) Status(c *gin.Context) {
	info, err := h.status.ForRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// StatusByPatient godoc
// @Summary Get the derived verification status for a patient
// @Tags Records
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{patientId}/record/status [get]
func (h *RecordHandler) StatusByPatient(c *gin.Context) {
	info, err := h.status.ForPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}
