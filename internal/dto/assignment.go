package dto

// AutoAssignRequest asks the batch to fill supervision duties for the range.
// Days are ISO dates (2006-01-02).
type AutoAssignRequest struct {
	StartDay string `json:"startDay" validate:"required,datetime=2006-01-02"`
	EndDay   string `json:"endDay" validate:"required,datetime=2006-01-02"`
}

// AssignedTeacher is the teacher projection inside a daily report entry.
type AssignedTeacher struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AssignedDuty references a persisted schedule row and its teacher.
// ScheduleID points at the seventh-period row; the 8-9 and 10-11 rows for
// the same teacher and duty share the day.
type AssignedDuty struct {
	ScheduleID string          `json:"scheduleId"`
	Teacher    AssignedTeacher `json:"teacher"`
}

// DailyAssignmentResult reports one day of the committed batch.
type DailyAssignmentResult struct {
	Day                  string       `json:"day"`
	SelfStudySupervision AssignedDuty `json:"selfStudySupervision"`
	LeaveSeatSupervision AssignedDuty `json:"leaveSeatSupervision"`
}

// ScheduleEntry is one committed schedule row in range listings.
type ScheduleEntry struct {
	ScheduleID string          `json:"scheduleId"`
	Teacher    AssignedTeacher `json:"teacher"`
	Day        string          `json:"day"`
	Period     string          `json:"period"`
	Type       string          `json:"type"`
}

// ScheduleRangeQuery filters committed schedule rows by day range.
type ScheduleRangeQuery struct {
	From string `form:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To   string `form:"to" json:"to" validate:"required,datetime=2006-01-02"`
}
