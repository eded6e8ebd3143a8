package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type assignmentPlanner interface {
	Assign(ctx context.Context, req dto.AutoAssignRequest) ([]dto.DailyAssignmentResult, error)
	ListSchedules(ctx context.Context, query dto.ScheduleRangeQuery) ([]dto.ScheduleEntry, error)
	ExportRoster(ctx context.Context, query dto.ScheduleRangeQuery, format, title string) ([]byte, string, error)
}

// AssignmentHandler exposes supervision assignment endpoints.
type AssignmentHandler struct {
	service     assignmentPlanner
	exportTitle string
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc *service.AssignmentService, exportTitle string) *AssignmentHandler {
	return &AssignmentHandler{service: svc, exportTitle: exportTitle}
}

// Assign godoc
// @Summary Auto-assign supervision duties for a date range
// @Description Distributes self-study and leave-seat supervision across active supervising teachers for all Monday-Thursday dates in the range.
// @Tags Supervision
// @Accept json
// @Produce json
// @Param payload body dto.AutoAssignRequest true "Assignment range payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervision/assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	report, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List godoc
// @Summary List committed supervision schedules in a date range
// @Tags Supervision
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /supervision/schedules [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	query := dto.ScheduleRangeQuery{
		From: c.Query("from"),
		To:   c.Query("to"),
	}
	entries, err := h.service.ListSchedules(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export the supervision roster as CSV or PDF
// @Tags Supervision
// @Produce text/csv
// @Produce application/pdf
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "Export format (csv or pdf, default csv)"
// @Success 200 {file} file
// @Router /supervision/schedules/export [get]
func (h *AssignmentHandler) Export(c *gin.Context) {
	query := dto.ScheduleRangeQuery{
		From: c.Query("from"),
		To:   c.Query("to"),
	}
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.ExportRoster(c.Request.Context(), query, format, h.exportTitle)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("supervision-roster-%s-%s.%s", query.From, query.To, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
