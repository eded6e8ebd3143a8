package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/repository"
	"github.com/noah-isme/sma-supervision-api/pkg/config"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/export"
)

const dayLayout = "2006-01-02"

type supervisorRoster interface {
	ListSupervisors(ctx context.Context) ([]models.Teacher, error)
}

type banDayReader interface {
	MapByTeacher(ctx context.Context) (map[string]map[time.Weekday]bool, error)
}

type scheduleStore interface {
	HistoryByTeacher(ctx context.Context) (map[string]repository.HistoryRow, error)
	OccupiedDays(ctx context.Context, days []time.Time) ([]time.Time, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, schedules []models.SupervisionSchedule) error
	ListBetween(ctx context.Context, from, to time.Time) ([]repository.ScheduleWithTeacher, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type assignmentMetrics interface {
	RecordAssignmentRun(days int)
}

// AssignmentServiceConfig governs batch behaviour.
type AssignmentServiceConfig struct {
	RangeCapDays       int
	OccupiedDatePolicy string
	Weights            PriorityWeights
}

// AssignmentService runs the supervision auto-assignment batch: it extracts
// the target weekdays, loads the candidate pool, folds the greedy planner
// over the dates and commits the draft rows in one transaction.
type AssignmentService struct {
	teachers  supervisorRoster
	banDays   banDayReader
	schedules scheduleStore
	tx        txProvider
	metrics   assignmentMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AssignmentServiceConfig
}

// NewAssignmentService wires batch dependencies.
func NewAssignmentService(
	teachers supervisorRoster,
	banDays banDayReader,
	schedules scheduleStore,
	tx txProvider,
	metrics assignmentMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AssignmentServiceConfig,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RangeCapDays <= 0 {
		cfg.RangeCapDays = 365
	}
	if cfg.OccupiedDatePolicy == "" {
		cfg.OccupiedDatePolicy = config.OccupiedDateSkip
	}
	if cfg.Weights == (PriorityWeights{}) {
		cfg.Weights = DefaultPriorityWeights()
	}
	return &AssignmentService{
		teachers:  teachers,
		banDays:   banDays,
		schedules: schedules,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Assign fills supervision duties for every Monday-Thursday date in the
// requested range and returns the committed per-day report.
func (s *AssignmentService) Assign(ctx context.Context, req dto.AutoAssignRequest) ([]dto.DailyAssignmentResult, error) {
	start, end, err := s.parseRange(req)
	if err != nil {
		return nil, err
	}

	dates := ExtractWeekdays(start, end)
	if len(dates) == 0 {
		return []dto.DailyAssignmentResult{}, nil
	}

	dates, err = s.applyOccupiedDatePolicy(ctx, dates)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return []dto.DailyAssignmentResult{}, nil
	}

	pool, err := s.loadPool(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := PlanAssignments(pool, dates, s.cfg.Weights)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, plan); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAssignmentRun(len(plan.Days))
	}
	s.logger.Info("supervision batch committed",
		zap.Int("days", len(plan.Days)),
		zap.Int("rows", len(plan.Rows)),
		zap.String("start", start.Format(dayLayout)),
		zap.String("end", end.Format(dayLayout)),
	)

	return buildReport(plan), nil
}

// ListSchedules returns committed schedule rows inside the range.
func (s *AssignmentService) ListSchedules(ctx context.Context, query dto.ScheduleRangeQuery) ([]dto.ScheduleEntry, error) {
	from, to, err := s.parseRange(dto.AutoAssignRequest{StartDay: query.From, EndDay: query.To})
	if err != nil {
		return nil, err
	}
	rows, err := s.schedules.ListBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list supervision schedules")
	}
	entries := make([]dto.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.ScheduleEntry{
			ScheduleID: row.ID,
			Teacher:    dto.AssignedTeacher{ID: row.TeacherID, Name: row.TeacherName},
			Day:        row.Day.Format(dayLayout),
			Period:     string(row.Period),
			Type:       row.DutyType.Label(),
		})
	}
	return entries, nil
}

// ExportRoster renders the committed roster for the range as CSV or PDF.
func (s *AssignmentService) ExportRoster(ctx context.Context, query dto.ScheduleRangeQuery, format, title string) ([]byte, string, error) {
	from, to, err := s.parseRange(dto.AutoAssignRequest{StartDay: query.From, EndDay: query.To})
	if err != nil {
		return nil, "", err
	}
	rows, err := s.schedules.ListBetween(ctx, from, to)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster rows")
	}

	rosterRows := make([]export.RosterRow, 0, len(rows))
	for _, row := range rows {
		rosterRows = append(rosterRows, export.RosterRow{
			Day:     row.Day.Format(dayLayout),
			Weekday: row.Day.Weekday().String(),
			Period:  string(row.Period),
			Duty:    row.DutyType.Label(),
			Teacher: row.TeacherName,
		})
	}

	switch format {
	case "pdf":
		payload, err := export.NewPDFExporter().Render(rosterRows, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := export.NewCSVExporter().Render(rosterRows)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *AssignmentService) parseRange(req dto.AutoAssignRequest) (time.Time, time.Time, error) {
	if err := s.validator.Struct(req); err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrInvalidDateRange.Code, appErrors.ErrInvalidDateRange.Status, "startDay and endDay must be ISO dates")
	}
	start, err := time.ParseInLocation(dayLayout, req.StartDay, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, "startDay is not a valid date")
	}
	end, err := time.ParseInLocation(dayLayout, req.EndDay, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, "endDay is not a valid date")
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, "startDay must not be after endDay")
	}
	if daysBetween(start, end) > s.cfg.RangeCapDays {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange,
			fmt.Sprintf("range exceeds %d days", s.cfg.RangeCapDays))
	}
	return start, end, nil
}

func (s *AssignmentService) applyOccupiedDatePolicy(ctx context.Context, dates []time.Time) ([]time.Time, error) {
	occupied, err := s.schedules.OccupiedDays(ctx, dates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check scheduled dates")
	}
	if len(occupied) == 0 {
		return dates, nil
	}
	if s.cfg.OccupiedDatePolicy == config.OccupiedDateFail {
		return nil, appErrors.Clone(appErrors.ErrDatesAlreadyScheduled,
			fmt.Sprintf("%d requested dates already have supervision assigned", len(occupied)))
	}

	taken := make(map[string]bool, len(occupied))
	for _, day := range occupied {
		taken[day.Format(dayLayout)] = true
	}
	remaining := make([]time.Time, 0, len(dates))
	for _, day := range dates {
		if !taken[day.Format(dayLayout)] {
			remaining = append(remaining, day)
		}
	}
	return remaining, nil
}

func (s *AssignmentService) loadPool(ctx context.Context) (map[string]models.TeacherSupervisionInfo, error) {
	teachers, err := s.teachers.ListSupervisors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervising teachers")
	}
	if len(teachers) < 2 {
		return nil, appErrors.Clone(appErrors.ErrInsufficientTeachers, "at least 2 supervising teachers are required")
	}

	banDays, err := s.banDays.MapByTeacher(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ban days")
	}
	history, err := s.schedules.HistoryByTeacher(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervision history")
	}

	pool := make(map[string]models.TeacherSupervisionInfo, len(teachers))
	for _, teacher := range teachers {
		info := models.TeacherSupervisionInfo{
			TeacherID:   teacher.ID,
			TeacherName: teacher.FullName,
			BanWeekdays: banDays[teacher.ID],
			DutyCounts:  make(map[models.DutyType]int),
		}
		if info.BanWeekdays == nil {
			info.BanWeekdays = make(map[time.Weekday]bool)
		}
		if row, ok := history[teacher.ID]; ok {
			if row.LastDay != nil {
				last := dateOnly(*row.LastDay)
				info.LastSupervisionDate = &last
			}
			info.TotalSupervisionCount = row.TotalCount
			info.DutyCounts[models.DutySelfStudy] = row.SelfStudyCount
			info.DutyCounts[models.DutyLeaveSeat] = row.LeaveSeatCount
			info.DutyCounts[models.DutySeventhPeriod] = row.SeventhPeriodCount
		}
		pool[teacher.ID] = info
	}
	return pool, nil
}

// persist commits every draft row of the run in a single transaction, so a
// failure on any date leaves no partial batch behind.
func (s *AssignmentService) persist(ctx context.Context, plan *AssignmentPlan) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
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

	if err = s.schedules.BulkCreateWithTx(ctx, tx, plan.Rows); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist supervision schedules")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit supervision batch")
	}
	return nil
}

func buildReport(plan *AssignmentPlan) []dto.DailyAssignmentResult {
	report := make([]dto.DailyAssignmentResult, 0, len(plan.Days))
	for _, day := range plan.Days {
		report = append(report, dto.DailyAssignmentResult{
			Day: day.Day.Format(dayLayout),
			SelfStudySupervision: dto.AssignedDuty{
				ScheduleID: plan.Rows[day.SelfStudyRowIdx].ID,
				Teacher:    dto.AssignedTeacher{ID: day.SelfStudy.ID, Name: day.SelfStudy.Name},
			},
			LeaveSeatSupervision: dto.AssignedDuty{
				ScheduleID: plan.Rows[day.LeaveSeatRowIdx].ID,
				Teacher:    dto.AssignedTeacher{ID: day.LeaveSeat.ID, Name: day.LeaveSeat.Name},
			},
		})
	}
	return report
}
