package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/dto"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/response"
)

type reviewService interface {
	ListPending(ctx context.Context, filter models.ReviewFilter) ([]models.PendingReviewDetail, error)
	Review(ctx context.Context, reviewID, reviewerID string, approve bool, notes *string) error
	BatchReview(ctx context.Context, reviewIDs []string, reviewerID string, approve bool, notes *string) error
}

// ReviewHandler exposes the clinician sign-off queue.
type ReviewHandler struct {
	reviews reviewService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(reviews reviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// List godoc
// @Summary List pending reviews
// @Tags Reviews
// @Produce json
// @Param recordId query string false "Record ID"
// @Param patientId query string false "Patient ID"
// @Param onlyPending query bool false "Only unresolved reviews"
// @Success 200 {object} response.Envelope
// @Router /reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	filter := models.ReviewFilter{
		RecordID:  c.Query("recordId"),
		PatientID: c.Query("patientId"),
	}
	if raw := c.Query("onlyPending"); raw != "" {
		onlyPending, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "onlyPending must be a boolean"))
			return
		}
		filter.OnlyPending = onlyPending
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
	reviews, err := h.reviews.ListPending(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}

// Decide godoc
// @Summary Record a reviewer decision on a pending review
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID"
// @Param payload body dto.ReviewDecisionRequest true "Decision"
// @Success 204
// @Router /reviews/{id}/decision [post]
func (h *ReviewHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	if req.Approve == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approve is required"))
		return
	}
	if err := h.reviews.Review(c.Request.Context(), c.Param("id"), claims.ActorID, *req.Approve, req.Notes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchDecide godoc
// @Summary Record one decision for several pending reviews
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body dto.BatchReviewRequest true "Batch decision"
// @Success 204
// @Router /reviews/batch [post]
func (h *ReviewHandler) BatchDecide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BatchReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	if req.Approve == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approve is required"))
		return
	}
	if err := h.reviews.BatchReview(c.Request.Context(), req.ReviewIDs, claims.ActorID, *req.Approve, req.Notes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
