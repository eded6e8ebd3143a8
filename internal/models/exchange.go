package models

import "time"

// ExchangeStatus is the lifecycle state of a supervision exchange.
type ExchangeStatus string

const (
	ExchangePending  ExchangeStatus = "PENDING"
	ExchangeAccepted ExchangeStatus = "ACCEPTED"
	ExchangeRejected ExchangeStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s ExchangeStatus) Terminal() bool {
	return s == ExchangeAccepted || s == ExchangeRejected
}

// SupervisionExchange is a proposal by one teacher to swap an assigned duty
// slot with another teacher's slot. Sender and recipient are denormalized
// from the referenced schedule rows at creation time.
type SupervisionExchange struct {
	ID                  string         `db:"id" json:"id"`
	SenderTeacherID     string         `db:"sender_teacher_id" json:"sender_teacher_id"`
	RecipientTeacherID  string         `db:"recipient_teacher_id" json:"recipient_teacher_id"`
	SenderScheduleID    string         `db:"sender_schedule_id" json:"sender_schedule_id"`
	RecipientScheduleID string         `db:"recipient_schedule_id" json:"recipient_schedule_id"`
	Reason              string         `db:"reason" json:"reason"`
	Status              ExchangeStatus `db:"status" json:"status"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}
