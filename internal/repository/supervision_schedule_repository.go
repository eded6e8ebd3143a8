package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// SupervisionScheduleRepository manages persistence for supervision duty rows.
type SupervisionScheduleRepository struct {
	db *sqlx.DB
}

// NewSupervisionScheduleRepository constructs the repository.
func NewSupervisionScheduleRepository(db *sqlx.DB) *SupervisionScheduleRepository {
	return &SupervisionScheduleRepository{db: db}
}

// BulkCreateWithTx inserts schedule rows using an existing transaction.
// Generated ids and timestamps are written back into the slice.
func (r *SupervisionScheduleRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, schedules []models.SupervisionSchedule) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	now := time.Now().UTC()
	for i := range schedules {
		payload := schedules[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO supervision_schedules (id, teacher_id, day, period, duty_type, created_at, updated_at)
			VALUES (:id, :teacher_id, :day, :period, :duty_type, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("bulk insert supervision schedule: %w", err)
		}
		schedules[i] = payload
	}
	return nil
}

// FindByID fetches a schedule row by id.
func (r *SupervisionScheduleRepository) FindByID(ctx context.Context, id string) (*models.SupervisionSchedule, error) {
	const query = `SELECT id, teacher_id, day, period, duty_type, created_at, updated_at FROM supervision_schedules WHERE id = $1`
	var schedule models.SupervisionSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// OccupiedDays returns the subset of the given days that already carry at
// least one supervision row.
func (r *SupervisionScheduleRepository) OccupiedDays(ctx context.Context, days []time.Time) ([]time.Time, error) {
	if len(days) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT DISTINCT day FROM supervision_schedules WHERE day IN (?) ORDER BY day ASC`, days)
	if err != nil {
		return nil, fmt.Errorf("build occupied days query: %w", err)
	}
	query = r.db.Rebind(query)
	var occupied []time.Time
	if err := r.db.SelectContext(ctx, &occupied, query, args...); err != nil {
		return nil, fmt.Errorf("list occupied days: %w", err)
	}
	return occupied, nil
}

// HistoryRow aggregates a teacher's supervision history.
type HistoryRow struct {
	TeacherID          string     `db:"teacher_id"`
	LastDay            *time.Time `db:"last_day"`
	TotalCount         int        `db:"total_count"`
	SelfStudyCount     int        `db:"self_study_count"`
	LeaveSeatCount     int        `db:"leave_seat_count"`
	SeventhPeriodCount int        `db:"seventh_period_count"`
}

// HistoryByTeacher computes, per teacher, the most recent supervision day and
// duty-day counts (a duty spanning three periods on one day counts once).
func (r *SupervisionScheduleRepository) HistoryByTeacher(ctx context.Context) (map[string]HistoryRow, error) {
	const query = `SELECT teacher_id,
		MAX(day) AS last_day,
		COUNT(DISTINCT (day, duty_type)) AS total_count,
		COUNT(DISTINCT day) FILTER (WHERE duty_type = 'SELF_STUDY_SUPERVISION') AS self_study_count,
		COUNT(DISTINCT day) FILTER (WHERE duty_type = 'LEAVE_SEAT_SUPERVISION') AS leave_seat_count,
		COUNT(DISTINCT day) FILTER (WHERE duty_type = 'SEVENTH_PERIOD_SUPERVISION') AS seventh_period_count
		FROM supervision_schedules GROUP BY teacher_id`
	var rows []HistoryRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("aggregate supervision history: %w", err)
	}
	result := make(map[string]HistoryRow, len(rows))
	for _, row := range rows {
		result[row.TeacherID] = row
	}
	return result, nil
}

// ScheduleWithTeacher joins a schedule row with its owner's name for reports.
type ScheduleWithTeacher struct {
	models.SupervisionSchedule
	TeacherName string `db:"teacher_name"`
}

// ListBetween returns committed rows inside [from, to] ordered by day,
// duty type, then period.
func (r *SupervisionScheduleRepository) ListBetween(ctx context.Context, from, to time.Time) ([]ScheduleWithTeacher, error) {
	const query = `SELECT s.id, s.teacher_id, s.day, s.period, s.duty_type, s.created_at, s.updated_at, t.full_name AS teacher_name
		FROM supervision_schedules s
		JOIN teachers t ON t.id = s.teacher_id
		WHERE s.day BETWEEN $1 AND $2
		ORDER BY s.day ASC, s.duty_type ASC, s.period ASC`
	var rows []ScheduleWithTeacher
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list supervision schedules: %w", err)
	}
	return rows, nil
}

// LockByIDWithTx loads a schedule row FOR UPDATE inside the transaction.
func (r *SupervisionScheduleRepository) LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.SupervisionSchedule, error) {
	const query = `SELECT id, teacher_id, day, period, duty_type, created_at, updated_at FROM supervision_schedules WHERE id = $1 FOR UPDATE`
	var schedule models.SupervisionSchedule
	if err := tx.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// UpdateTeacherWithTx reassigns a schedule row to another teacher.
func (r *SupervisionScheduleRepository) UpdateTeacherWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID, teacherID string) error {
	const query = `UPDATE supervision_schedules SET teacher_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, scheduleID, teacherID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update schedule teacher: %w", err)
	}
	return nil
}
