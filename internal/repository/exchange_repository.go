package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// ExchangeRepository manages persistence for supervision exchanges.
type ExchangeRepository struct {
	db *sqlx.DB
}

// NewExchangeRepository constructs the repository.
func NewExchangeRepository(db *sqlx.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// Create inserts a new exchange in PENDING state.
func (r *ExchangeRepository) Create(ctx context.Context, exchange *models.SupervisionExchange) error {
	if exchange.ID == "" {
		exchange.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = now
	}
	exchange.UpdatedAt = now
	if exchange.Status == "" {
		exchange.Status = models.ExchangePending
	}

	const query = `INSERT INTO supervision_exchanges (id, sender_teacher_id, recipient_teacher_id, sender_schedule_id, recipient_schedule_id, reason, status, created_at, updated_at)
		VALUES (:id, :sender_teacher_id, :recipient_teacher_id, :sender_schedule_id, :recipient_schedule_id, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exchange); err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

// FindByID fetches an exchange by id.
func (r *ExchangeRepository) FindByID(ctx context.Context, id string) (*models.SupervisionExchange, error) {
	const query = `SELECT id, sender_teacher_id, recipient_teacher_id, sender_schedule_id, recipient_schedule_id, reason, status, created_at, updated_at
		FROM supervision_exchanges WHERE id = $1`
	var exchange models.SupervisionExchange
	if err := r.db.GetContext(ctx, &exchange, query, id); err != nil {
		return nil, err
	}
	return &exchange, nil
}

// SettleFromPendingWithTx transitions the exchange out of PENDING inside the
// given transaction. The WHERE clause is the compare-and-set: it reports
// false when the row was already settled by a concurrent caller.
func (r *ExchangeRepository) SettleFromPendingWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ExchangeStatus) (bool, error) {
	const query = `UPDATE supervision_exchanges SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	result, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("settle exchange: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("settle exchange rows affected: %w", err)
	}
	return affected == 1, nil
}

// ExchangeListRow is the joined projection behind exchange listings.
type ExchangeListRow struct {
	ID                   string    `db:"id"`
	Status               string    `db:"status"`
	Reason               string    `db:"reason"`
	CreatedAt            time.Time `db:"created_at"`
	SenderScheduleID     string    `db:"sender_schedule_id"`
	SenderTeacherID      string    `db:"sender_teacher_id"`
	SenderTeacherName    string    `db:"sender_teacher_name"`
	SenderDay            time.Time `db:"sender_day"`
	SenderPeriod         string    `db:"sender_period"`
	SenderDutyType       string    `db:"sender_duty_type"`
	RecipientScheduleID  string    `db:"recipient_schedule_id"`
	RecipientTeacherID   string    `db:"recipient_teacher_id"`
	RecipientTeacherName string    `db:"recipient_teacher_name"`
	RecipientDay         time.Time `db:"recipient_day"`
	RecipientPeriod      string    `db:"recipient_period"`
	RecipientDutyType    string    `db:"recipient_duty_type"`
}

// ListByTeacher returns exchanges where the teacher is sender or recipient,
// newest first, with both schedule slots denormalized.
func (r *ExchangeRepository) ListByTeacher(ctx context.Context, teacherID string) ([]ExchangeListRow, error) {
	const query = `SELECT e.id, e.status, e.reason, e.created_at,
		e.sender_schedule_id, e.sender_teacher_id, st.full_name AS sender_teacher_name,
		ss.day AS sender_day, ss.period AS sender_period, ss.duty_type AS sender_duty_type,
		e.recipient_schedule_id, e.recipient_teacher_id, rt.full_name AS recipient_teacher_name,
		rs.day AS recipient_day, rs.period AS recipient_period, rs.duty_type AS recipient_duty_type
		FROM supervision_exchanges e
		JOIN supervision_schedules ss ON ss.id = e.sender_schedule_id
		JOIN supervision_schedules rs ON rs.id = e.recipient_schedule_id
		JOIN teachers st ON st.id = e.sender_teacher_id
		JOIN teachers rt ON rt.id = e.recipient_teacher_id
		WHERE e.sender_teacher_id = $1 OR e.recipient_teacher_id = $1
		ORDER BY e.created_at DESC`
	var rows []ExchangeListRow
	if err := r.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	return rows, nil
}
