package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/middleware"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type exchangeServiceMock struct {
	createErr error
	acceptErr error
	rejectErr error
	items     []dto.ExchangeListItem
	listErr   error

	acceptedID string
	actorID    string
}

func (m *exchangeServiceMock) Create(ctx context.Context, req dto.CreateExchangeRequest, requesterID string) error {
	m.actorID = requesterID
	return m.createErr
}

func (m *exchangeServiceMock) Accept(ctx context.Context, exchangeID, actorID string) error {
	m.acceptedID = exchangeID
	m.actorID = actorID
	return m.acceptErr
}

func (m *exchangeServiceMock) Reject(ctx context.Context, exchangeID, actorID string) error {
	return m.rejectErr
}

func (m *exchangeServiceMock) List(ctx context.Context, actorID string) ([]dto.ExchangeListItem, error) {
	return m.items, m.listErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func authedClaims(teacherID string) *models.JWTClaims {
	return &models.JWTClaims{TeacherID: teacherID, Email: teacherID + "@example.com"}
}

func TestExchangeHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exchangeServiceMock{}
	h := &ExchangeHandler{service: mockSvc}

	payload, _ := json.Marshal(dto.CreateExchangeRequest{
		SenderScheduleID:    "s1",
		RecipientScheduleID: "s2",
		Reason:              "swap",
	})
	c, w := newGinContext(http.MethodPost, "/supervision/exchanges", payload)
	c.Set(middleware.ContextUserKey, authedClaims("teacher-a"))

	h.Create(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "teacher-a", mockSvc.actorID)
}

func TestExchangeHandlerCreateWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &ExchangeHandler{service: &exchangeServiceMock{}}

	c, w := newGinContext(http.MethodPost, "/supervision/exchanges", []byte(`{}`))
	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExchangeHandlerAccept(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exchangeServiceMock{}
	h := &ExchangeHandler{service: mockSvc}

	c, w := newGinContext(http.MethodPost, "/supervision/exchanges/ex-1/accept", nil)
	c.Params = gin.Params{{Key: "id", Value: "ex-1"}}
	c.Set(middleware.ContextUserKey, authedClaims("teacher-b"))

	h.Accept(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "ex-1", mockSvc.acceptedID)
	assert.Equal(t, "teacher-b", mockSvc.actorID)
}

func TestExchangeHandlerAcceptConflictPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exchangeServiceMock{acceptErr: appErrors.ErrExchangeAlreadySettled}
	h := &ExchangeHandler{service: mockSvc}

	c, w := newGinContext(http.MethodPost, "/supervision/exchanges/ex-1/accept", nil)
	c.Params = gin.Params{{Key: "id", Value: "ex-1"}}
	c.Set(middleware.ContextUserKey, authedClaims("teacher-b"))

	h.Accept(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestExchangeHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exchangeServiceMock{
		items: []dto.ExchangeListItem{{ID: "ex-1", Status: "PENDING"}},
	}
	h := &ExchangeHandler{service: mockSvc}

	c, w := newGinContext(http.MethodGet, "/supervision/exchanges", nil)
	c.Set(middleware.ContextUserKey, authedClaims("teacher-a"))

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ex-1"`)
}
