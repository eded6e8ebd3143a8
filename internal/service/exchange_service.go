package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/repository"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type scheduleLookup interface {
	FindByID(ctx context.Context, id string) (*models.SupervisionSchedule, error)
	LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.SupervisionSchedule, error)
	UpdateTeacherWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID, teacherID string) error
}

type exchangeStore interface {
	Create(ctx context.Context, exchange *models.SupervisionExchange) error
	FindByID(ctx context.Context, id string) (*models.SupervisionExchange, error)
	SettleFromPendingWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ExchangeStatus) (bool, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]repository.ExchangeListRow, error)
}

type exchangeMetrics interface {
	RecordExchangeTransition(status string)
}

// ExchangeService drives the duty-swap state machine: PENDING exchanges are
// created by the sender and settled exactly once by the recipient.
type ExchangeService struct {
	schedules scheduleLookup
	exchanges exchangeStore
	tx        txProvider
	cache     *CacheService
	metrics   exchangeMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExchangeService wires exchange dependencies.
func NewExchangeService(
	schedules scheduleLookup,
	exchanges exchangeStore,
	tx txProvider,
	cache *CacheService,
	metrics exchangeMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExchangeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangeService{
		schedules: schedules,
		exchanges: exchanges,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create opens a PENDING exchange. The requester must own the sender
// schedule row; sender and recipient teachers are denormalized from the two
// rows at creation time.
func (s *ExchangeService) Create(ctx context.Context, req dto.CreateExchangeRequest, requesterID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exchange payload")
	}
	if req.SenderScheduleID == req.RecipientScheduleID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot exchange a schedule with itself")
	}

	sender, err := s.findSchedule(ctx, req.SenderScheduleID)
	if err != nil {
		return err
	}
	recipient, err := s.findSchedule(ctx, req.RecipientScheduleID)
	if err != nil {
		return err
	}
	if sender.TeacherID != requesterID {
		return appErrors.Clone(appErrors.ErrUnauthorized, "only the owner of the offered schedule may request an exchange")
	}

	exchange := &models.SupervisionExchange{
		SenderTeacherID:     sender.TeacherID,
		RecipientTeacherID:  recipient.TeacherID,
		SenderScheduleID:    sender.ID,
		RecipientScheduleID: recipient.ID,
		Reason:              req.Reason,
		Status:              models.ExchangePending,
	}
	if err := s.exchanges.Create(ctx, exchange); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exchange")
	}

	s.invalidateListCache(ctx, exchange.SenderTeacherID, exchange.RecipientTeacherID)
	if s.metrics != nil {
		s.metrics.RecordExchangeTransition(string(models.ExchangePending))
	}
	s.logger.Info("exchange created",
		zap.String("exchange_id", exchange.ID),
		zap.String("sender", exchange.SenderTeacherID),
		zap.String("recipient", exchange.RecipientTeacherID),
	)
	return nil
}

// Accept settles the exchange and swaps the two schedule rows' teachers.
// The swap and the status transition commit together: both rows are locked,
// the status moves PENDING to ACCEPTED via compare-and-set, and a lost race
// surfaces as a conflict instead of a double swap.
func (s *ExchangeService) Accept(ctx context.Context, exchangeID, actorID string) error {
	exchange, err := s.guardRecipient(ctx, exchangeID, actorID)
	if err != nil {
		return err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	senderRow, err := s.lockSchedule(ctx, tx, exchange.SenderScheduleID)
	if err != nil {
		return err
	}
	recipientRow, err := s.lockSchedule(ctx, tx, exchange.RecipientScheduleID)
	if err != nil {
		return err
	}

	var settled bool
	settled, err = s.exchanges.SettleFromPendingWithTx(ctx, tx, exchange.ID, models.ExchangeAccepted)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle exchange")
	}
	if !settled {
		err = appErrors.Clone(appErrors.ErrExchangeAlreadySettled, "")
		return err
	}

	if err = s.schedules.UpdateTeacherWithTx(ctx, tx, senderRow.ID, recipientRow.TeacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign sender schedule")
	}
	if err = s.schedules.UpdateTeacherWithTx(ctx, tx, recipientRow.ID, senderRow.TeacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign recipient schedule")
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit exchange")
	}

	s.invalidateListCache(ctx, exchange.SenderTeacherID, exchange.RecipientTeacherID)
	if s.metrics != nil {
		s.metrics.RecordExchangeTransition(string(models.ExchangeAccepted))
	}
	s.logger.Info("exchange accepted", zap.String("exchange_id", exchange.ID))
	return nil
}

// Reject settles the exchange without touching either schedule row.
func (s *ExchangeService) Reject(ctx context.Context, exchangeID, actorID string) error {
	exchange, err := s.guardRecipient(ctx, exchangeID, actorID)
	if err != nil {
		return err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var settled bool
	settled, err = s.exchanges.SettleFromPendingWithTx(ctx, tx, exchange.ID, models.ExchangeRejected)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle exchange")
	}
	if !settled {
		err = appErrors.Clone(appErrors.ErrExchangeAlreadySettled, "")
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit exchange")
	}

	s.invalidateListCache(ctx, exchange.SenderTeacherID, exchange.RecipientTeacherID)
	if s.metrics != nil {
		s.metrics.RecordExchangeTransition(string(models.ExchangeRejected))
	}
	s.logger.Info("exchange rejected", zap.String("exchange_id", exchange.ID))
	return nil
}

// List returns the exchanges visible to the actor, newest first.
func (s *ExchangeService) List(ctx context.Context, actorID string) ([]dto.ExchangeListItem, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	cacheKey := exchangeListCacheKey(actorID)
	var cached []dto.ExchangeListItem
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	rows, err := s.exchanges.ListByTeacher(ctx, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exchanges")
	}

	items := make([]dto.ExchangeListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.ExchangeListItem{
			ID:     row.ID,
			Status: row.Status,
			Reason: row.Reason,
			Sender: dto.ExchangeSlot{
				ScheduleID:  row.SenderScheduleID,
				TeacherID:   row.SenderTeacherID,
				TeacherName: row.SenderTeacherName,
				Day:         row.SenderDay.Format(dayLayout),
				Period:      row.SenderPeriod,
				Type:        models.DutyType(row.SenderDutyType).Label(),
			},
			Recipient: dto.ExchangeSlot{
				ScheduleID:  row.RecipientScheduleID,
				TeacherID:   row.RecipientTeacherID,
				TeacherName: row.RecipientTeacherName,
				Day:         row.RecipientDay.Format(dayLayout),
				Period:      row.RecipientPeriod,
				Type:        models.DutyType(row.RecipientDutyType).Label(),
			},
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	_ = s.cache.Set(ctx, cacheKey, items, 0)
	return items, nil
}

func (s *ExchangeService) guardRecipient(ctx context.Context, exchangeID, actorID string) (*models.SupervisionExchange, error) {
	if exchangeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exchange id is required")
	}
	exchange, err := s.exchanges.FindByID(ctx, exchangeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrExchangeNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exchange")
	}
	if exchange.RecipientTeacherID != actorID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the exchange recipient may settle it")
	}
	if exchange.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrExchangeAlreadySettled, "")
	}
	return exchange, nil
}

func (s *ExchangeService) findSchedule(ctx context.Context, id string) (*models.SupervisionSchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrScheduleNotFound, fmt.Sprintf("schedule %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

func (s *ExchangeService) lockSchedule(ctx context.Context, tx *sqlx.Tx, id string) (*models.SupervisionSchedule, error) {
	schedule, err := s.schedules.LockByIDWithTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrScheduleNotFound, fmt.Sprintf("schedule %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock schedule")
	}
	return schedule, nil
}

func (s *ExchangeService) invalidateListCache(ctx context.Context, teacherIDs ...string) {
	for _, id := range teacherIDs {
		if err := s.cache.Invalidate(ctx, exchangeListCacheKey(id)); err != nil {
			s.logger.Warn("exchange cache invalidation failed", zap.String("teacher_id", id), zap.Error(err))
		}
	}
}

func exchangeListCacheKey(teacherID string) string {
	return "exchanges:list:" + teacherID
}
