package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type exchangeWorkflow interface {
	Create(ctx context.Context, req dto.CreateExchangeRequest, requesterID string) error
	Accept(ctx context.Context, exchangeID, actorID string) error
	Reject(ctx context.Context, exchangeID, actorID string) error
	List(ctx context.Context, actorID string) ([]dto.ExchangeListItem, error)
}

// ExchangeHandler exposes duty exchange endpoints.
type ExchangeHandler struct {
	service exchangeWorkflow
}

// NewExchangeHandler constructs the handler.
func NewExchangeHandler(svc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{service: svc}
}

// Create godoc
// @Summary Request a duty exchange with another teacher
// @Tags Exchanges
// @Accept json
// @Produce json
// @Param payload body dto.CreateExchangeRequest true "Exchange request payload"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervision/exchanges [post]
func (h *ExchangeHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exchange payload"))
		return
	}
	if err := h.service.Create(c.Request.Context(), req, claims.TeacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Accept godoc
// @Summary Accept a pending duty exchange
// @Description Swaps the two supervision slots atomically. Only the recipient may accept.
// @Tags Exchanges
// @Produce json
// @Param id path string true "Exchange ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervision/exchanges/{id}/accept [post]
func (h *ExchangeHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Accept(c.Request.Context(), c.Param("id"), claims.TeacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject a pending duty exchange
// @Tags Exchanges
// @Produce json
// @Param id path string true "Exchange ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervision/exchanges/{id}/reject [post]
func (h *ExchangeHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.TeacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List exchanges involving the authenticated teacher
// @Tags Exchanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /supervision/exchanges [get]
func (h *ExchangeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.List(c.Request.Context(), claims.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
