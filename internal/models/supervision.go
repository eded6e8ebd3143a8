package models

import (
	"time"
)

// DutyType enumerates the supervision duties a schedule row can carry.
type DutyType string

const (
	DutySelfStudy     DutyType = "SELF_STUDY_SUPERVISION"
	DutyLeaveSeat     DutyType = "LEAVE_SEAT_SUPERVISION"
	DutySeventhPeriod DutyType = "SEVENTH_PERIOD_SUPERVISION"
)

// Label returns the wire representation used by exchange listings.
func (d DutyType) Label() string {
	switch d {
	case DutySelfStudy:
		return "self_study"
	case DutyLeaveSeat:
		return "leave_seat"
	case DutySeventhPeriod:
		return "seventh_period"
	}
	return string(d)
}

// Period enumerates the three school time slots a duty spans.
type Period string

const (
	PeriodSeventh       Period = "7"
	PeriodEighthNinth   Period = "8-9"
	PeriodTenthEleventh Period = "10-11"
)

// Periods lists every slot in school order.
var Periods = []Period{PeriodSeventh, PeriodEighthNinth, PeriodTenthEleventh}

// SupervisionSchedule is one teacher-duty-period slot on a calendar day.
type SupervisionSchedule struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Day       time.Time `db:"day" json:"day"`
	Period    Period    `db:"period" json:"period"`
	DutyType  DutyType  `db:"duty_type" json:"duty_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherSupervisionInfo is the per-teacher candidate state the assignment
// fold carries between dates. Counts are non-negative; a teacher with no
// history has a nil LastSupervisionDate rather than a sentinel date.
type TeacherSupervisionInfo struct {
	TeacherID             string
	TeacherName           string
	BanWeekdays           map[time.Weekday]bool
	LastSupervisionDate   *time.Time
	TotalSupervisionCount int
	DutyCounts            map[DutyType]int
}

// Clone returns a deep copy so the fold can mutate working state without
// touching the loaded pool.
func (i TeacherSupervisionInfo) Clone() TeacherSupervisionInfo {
	clone := i
	clone.BanWeekdays = make(map[time.Weekday]bool, len(i.BanWeekdays))
	for day, banned := range i.BanWeekdays {
		clone.BanWeekdays[day] = banned
	}
	clone.DutyCounts = make(map[DutyType]int, len(i.DutyCounts))
	for duty, count := range i.DutyCounts {
		clone.DutyCounts[duty] = count
	}
	if i.LastSupervisionDate != nil {
		last := *i.LastSupervisionDate
		clone.LastSupervisionDate = &last
	}
	return clone
}

// Banned reports whether the teacher may never supervise on the weekday.
func (i TeacherSupervisionInfo) Banned(weekday time.Weekday) bool {
	return i.BanWeekdays[weekday]
}
