package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/repository"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type scheduleLookupStub struct {
	schedules map[string]*models.SupervisionSchedule
	swaps     map[string]string
}

func newScheduleLookupStub(schedules ...*models.SupervisionSchedule) *scheduleLookupStub {
	stub := &scheduleLookupStub{
		schedules: map[string]*models.SupervisionSchedule{},
		swaps:     map[string]string{},
	}
	for _, schedule := range schedules {
		stub.schedules[schedule.ID] = schedule
	}
	return stub
}

func (s *scheduleLookupStub) FindByID(ctx context.Context, id string) (*models.SupervisionSchedule, error) {
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *schedule
	return &clone, nil
}

func (s *scheduleLookupStub) LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.SupervisionSchedule, error) {
	return s.FindByID(ctx, id)
}

func (s *scheduleLookupStub) UpdateTeacherWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID, teacherID string) error {
	s.swaps[scheduleID] = teacherID
	s.schedules[scheduleID].TeacherID = teacherID
	return nil
}

type exchangeStoreStub struct {
	created   []*models.SupervisionExchange
	exchanges map[string]*models.SupervisionExchange
	settled   []models.ExchangeStatus
	casResult bool
	listRows  []repository.ExchangeListRow
	listCalls int
}

func newExchangeStoreStub(exchanges ...*models.SupervisionExchange) *exchangeStoreStub {
	stub := &exchangeStoreStub{
		exchanges: map[string]*models.SupervisionExchange{},
		casResult: true,
	}
	for _, exchange := range exchanges {
		stub.exchanges[exchange.ID] = exchange
	}
	return stub
}

func (s *exchangeStoreStub) Create(ctx context.Context, exchange *models.SupervisionExchange) error {
	exchange.ID = "ex-1"
	s.created = append(s.created, exchange)
	s.exchanges[exchange.ID] = exchange
	return nil
}

func (s *exchangeStoreStub) FindByID(ctx context.Context, id string) (*models.SupervisionExchange, error) {
	exchange, ok := s.exchanges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *exchange
	return &clone, nil
}

func (s *exchangeStoreStub) SettleFromPendingWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ExchangeStatus) (bool, error) {
	if !s.casResult {
		return false, nil
	}
	s.settled = append(s.settled, status)
	s.exchanges[id].Status = status
	return true, nil
}

func (s *exchangeStoreStub) ListByTeacher(ctx context.Context, teacherID string) ([]repository.ExchangeListRow, error) {
	s.listCalls++
	return s.listRows, nil
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, 0, nil, false)
}

func senderSchedule() *models.SupervisionSchedule {
	return &models.SupervisionSchedule{
		ID:        "sched-sender",
		TeacherID: "teacher-a",
		Day:       day("2026-09-07"),
		Period:    models.PeriodSeventh,
		DutyType:  models.DutySelfStudy,
	}
}

func recipientSchedule() *models.SupervisionSchedule {
	return &models.SupervisionSchedule{
		ID:        "sched-recipient",
		TeacherID: "teacher-b",
		Day:       day("2026-09-08"),
		Period:    models.PeriodSeventh,
		DutyType:  models.DutyLeaveSeat,
	}
}

func pendingExchange() *models.SupervisionExchange {
	return &models.SupervisionExchange{
		ID:                  "ex-1",
		SenderTeacherID:     "teacher-a",
		RecipientTeacherID:  "teacher-b",
		SenderScheduleID:    "sched-sender",
		RecipientScheduleID: "sched-recipient",
		Status:              models.ExchangePending,
	}
}

func TestExchangeCreateDenormalizesTeachers(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule(), recipientSchedule())
	store := newExchangeStoreStub()
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(schedules, store, tx, disabledCache(), nil, nil, nil)

	err := svc.Create(context.Background(), dto.CreateExchangeRequest{
		SenderScheduleID:    "sched-sender",
		RecipientScheduleID: "sched-recipient",
		Reason:              "family appointment",
	}, "teacher-a")
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	exchange := store.created[0]
	assert.Equal(t, "teacher-a", exchange.SenderTeacherID)
	assert.Equal(t, "teacher-b", exchange.RecipientTeacherID)
	assert.Equal(t, models.ExchangePending, exchange.Status)
}

func TestExchangeCreateRejectsNonOwner(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule(), recipientSchedule())
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(schedules, newExchangeStoreStub(), tx, disabledCache(), nil, nil, nil)

	err := svc.Create(context.Background(), dto.CreateExchangeRequest{
		SenderScheduleID:    "sched-sender",
		RecipientScheduleID: "sched-recipient",
		Reason:              "swap please",
	}, "teacher-z")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestExchangeCreateRejectsSelfSwap(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(newScheduleLookupStub(), newExchangeStoreStub(), tx, disabledCache(), nil, nil, nil)

	err := svc.Create(context.Background(), dto.CreateExchangeRequest{
		SenderScheduleID:    "same",
		RecipientScheduleID: "same",
		Reason:              "no-op",
	}, "teacher-a")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestExchangeCreateMissingScheduleNotFound(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule())
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(schedules, newExchangeStoreStub(), tx, disabledCache(), nil, nil, nil)

	err := svc.Create(context.Background(), dto.CreateExchangeRequest{
		SenderScheduleID:    "sched-sender",
		RecipientScheduleID: "missing",
		Reason:              "swap please",
	}, "teacher-a")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrScheduleNotFound))
}

func TestExchangeAcceptSwapsBothSchedules(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule(), recipientSchedule())
	store := newExchangeStoreStub(pendingExchange())
	tx, mock := newTxProviderMock(t)
	svc := NewExchangeService(schedules, store, tx, disabledCache(), nil, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := svc.Accept(context.Background(), "ex-1", "teacher-b")
	require.NoError(t, err)

	assert.Equal(t, "teacher-b", schedules.swaps["sched-sender"])
	assert.Equal(t, "teacher-a", schedules.swaps["sched-recipient"])
	require.Len(t, store.settled, 1)
	assert.Equal(t, models.ExchangeAccepted, store.settled[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeAcceptByNonRecipientFails(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule(), recipientSchedule())
	store := newExchangeStoreStub(pendingExchange())
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(schedules, store, tx, disabledCache(), nil, nil, nil)

	// Not even the sender may accept; settlement is the recipient's call.
	err := svc.Accept(context.Background(), "ex-1", "teacher-a")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
	assert.Empty(t, schedules.swaps)
}

func TestExchangeAcceptUnknownExchange(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(newScheduleLookupStub(), newExchangeStoreStub(), tx, disabledCache(), nil, nil, nil)

	err := svc.Accept(context.Background(), "missing", "teacher-b")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrExchangeNotFound))
}

func TestExchangeAcceptAlreadySettled(t *testing.T) {
	settled := pendingExchange()
	settled.Status = models.ExchangeAccepted
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(newScheduleLookupStub(), newExchangeStoreStub(settled), tx, disabledCache(), nil, nil, nil)

	err := svc.Accept(context.Background(), "ex-1", "teacher-b")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrExchangeAlreadySettled))
}

func TestExchangeAcceptLostRaceRollsBack(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule(), recipientSchedule())
	store := newExchangeStoreStub(pendingExchange())
	store.casResult = false
	tx, mock := newTxProviderMock(t)
	svc := NewExchangeService(schedules, store, tx, disabledCache(), nil, nil, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.Accept(context.Background(), "ex-1", "teacher-b")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrExchangeAlreadySettled))
	assert.Empty(t, schedules.swaps, "a lost race must not reassign either schedule")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRejectLeavesSchedulesUntouched(t *testing.T) {
	schedules := newScheduleLookupStub(senderSchedule(), recipientSchedule())
	store := newExchangeStoreStub(pendingExchange())
	tx, mock := newTxProviderMock(t)
	svc := NewExchangeService(schedules, store, tx, disabledCache(), nil, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := svc.Reject(context.Background(), "ex-1", "teacher-b")
	require.NoError(t, err)

	assert.Empty(t, schedules.swaps)
	require.Len(t, store.settled, 1)
	assert.Equal(t, models.ExchangeRejected, store.settled[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeListMapsSlots(t *testing.T) {
	store := newExchangeStoreStub()
	store.listRows = []repository.ExchangeListRow{
		{
			ID:                   "ex-1",
			Status:               string(models.ExchangePending),
			Reason:               "family appointment",
			CreatedAt:            time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			SenderScheduleID:     "sched-sender",
			SenderTeacherID:      "teacher-a",
			SenderTeacherName:    "Teacher A",
			SenderDay:            day("2026-09-07"),
			SenderPeriod:         "7",
			SenderDutyType:       string(models.DutySelfStudy),
			RecipientScheduleID:  "sched-recipient",
			RecipientTeacherID:   "teacher-b",
			RecipientTeacherName: "Teacher B",
			RecipientDay:         day("2026-09-08"),
			RecipientPeriod:      "8-9",
			RecipientDutyType:    string(models.DutyLeaveSeat),
		},
	}
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(newScheduleLookupStub(), store, tx, disabledCache(), nil, nil, nil)

	items, err := svc.List(context.Background(), "teacher-a")
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "ex-1", item.ID)
	assert.Equal(t, "PENDING", item.Status)
	assert.Equal(t, "self_study", item.Sender.Type)
	assert.Equal(t, "leave_seat", item.Recipient.Type)
	assert.Equal(t, "2026-09-07", item.Sender.Day)
	assert.Equal(t, "2026-09-08", item.Recipient.Day)
}

func TestExchangeListRequiresActor(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(newScheduleLookupStub(), newExchangeStoreStub(), tx, disabledCache(), nil, nil, nil)

	_, err := svc.List(context.Background(), "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestExchangeListServedFromCache(t *testing.T) {
	store := newExchangeStoreStub()
	cacheRepo := &memoryCacheRepo{entries: map[string][]byte{}}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	tx, _ := newTxProviderMock(t)
	svc := NewExchangeService(newScheduleLookupStub(), store, tx, cache, nil, nil, nil)

	_, err := svc.List(context.Background(), "teacher-a")
	require.NoError(t, err)
	_, err = svc.List(context.Background(), "teacher-a")
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls, "second call should be served from cache")
}
