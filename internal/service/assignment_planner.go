package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// maxRecencyDays caps the recency component. A teacher with no history gets
// the cap, so "never supervised" always ranks at least as high as any real
// gap inside the 365-day range limit.
const maxRecencyDays = 366

// PriorityWeights tunes the candidate score. Recency rewards days since the
// last duty; TotalLoad and TypeLoad penalise accumulated duty-day counts, so
// the score is strictly decreasing in both. Ban days are never part of the
// score: banned teachers are filtered out before ranking.
type PriorityWeights struct {
	Recency   float64
	TotalLoad float64
	TypeLoad  float64
}

// DefaultPriorityWeights returns the tuning used when config leaves the
// weights unset.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{Recency: 1, TotalLoad: 5, TypeLoad: 3}
}

// Score rates how eligible the teacher is for the duty on the target date.
// Higher is more eligible.
func (w PriorityWeights) Score(info models.TeacherSupervisionInfo, targetDate time.Time, duty models.DutyType) float64 {
	recency := float64(maxRecencyDays)
	if info.LastSupervisionDate != nil {
		days := daysBetween(*info.LastSupervisionDate, targetDate)
		if days < 0 {
			days = 0
		}
		if days < maxRecencyDays {
			recency = float64(days)
		}
	}
	return w.Recency*recency - w.TotalLoad*float64(info.TotalSupervisionCount) - w.TypeLoad*float64(info.DutyCounts[duty])
}

// ExtractWeekdays returns every calendar date in [start, end] whose weekday
// is Monday through Thursday, strictly ascending. Pure; the caller enforces
// the range preconditions.
func ExtractWeekdays(start, end time.Time) []time.Time {
	var dates []time.Time
	for day := dateOnly(start); !day.After(dateOnly(end)); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
			dates = append(dates, day)
		}
	}
	return dates
}

// PlannedDay records the pair chosen for one date and where its draft rows
// sit inside the flat row list.
type PlannedDay struct {
	Day             time.Time
	SelfStudy       models.TeacherRef
	LeaveSeat       models.TeacherRef
	SelfStudyRowIdx int
	LeaveSeatRowIdx int
}

// AssignmentPlan is the draft output of one planning run.
type AssignmentPlan struct {
	Days []PlannedDay
	// Rows holds the draft schedule rows for the whole range in emission
	// order: per day, three self-study periods then three leave-seat periods.
	Rows []models.SupervisionSchedule
	// Pool is the final working-copy state after the fold.
	Pool map[string]models.TeacherSupervisionInfo
}

// PlanAssignments folds over the ordered dates, choosing a self-study and a
// leave-seat supervisor per date. The fold carries its own copy of the pool:
// counters bumped for one date are what the next date's ranking sees. Greedy
// and sequential; no backtracking.
func PlanAssignments(pool map[string]models.TeacherSupervisionInfo, dates []time.Time, weights PriorityWeights) (*AssignmentPlan, error) {
	if len(pool) < 2 {
		return nil, appErrors.Clone(appErrors.ErrInsufficientTeachers, "at least 2 supervising teachers are required")
	}

	working := make(map[string]models.TeacherSupervisionInfo, len(pool))
	for id, info := range pool {
		working[id] = info.Clone()
	}

	plan := &AssignmentPlan{Pool: working}
	for _, day := range dates {
		eligible := eligibleOn(working, day.Weekday())
		if len(eligible) < 2 {
			return nil, appErrors.Clone(appErrors.ErrInsufficientTeachers,
				fmt.Sprintf("fewer than 2 eligible teachers on %s", day.Format("2006-01-02")))
		}

		selfStudy := pickTop(eligible, working, day, models.DutySelfStudy, weights)
		remaining := without(eligible, selfStudy)
		leaveSeat := pickTop(remaining, working, day, models.DutyLeaveSeat, weights)

		planned := PlannedDay{
			Day:             day,
			SelfStudy:       models.TeacherRef{ID: selfStudy, Name: working[selfStudy].TeacherName},
			LeaveSeat:       models.TeacherRef{ID: leaveSeat, Name: working[leaveSeat].TeacherName},
			SelfStudyRowIdx: len(plan.Rows),
		}
		plan.Rows = appendDutyRows(plan.Rows, selfStudy, day, models.DutySelfStudy)
		planned.LeaveSeatRowIdx = len(plan.Rows)
		plan.Rows = appendDutyRows(plan.Rows, leaveSeat, day, models.DutyLeaveSeat)
		plan.Days = append(plan.Days, planned)

		bump(working, selfStudy, day, models.DutySelfStudy)
		bump(working, leaveSeat, day, models.DutyLeaveSeat)
	}
	return plan, nil
}

func eligibleOn(pool map[string]models.TeacherSupervisionInfo, weekday time.Weekday) []string {
	var ids []string
	for id, info := range pool {
		if !info.Banned(weekday) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// pickTop ranks candidates by score, breaking ties by teacher id for a
// deterministic outcome.
func pickTop(candidates []string, pool map[string]models.TeacherSupervisionInfo, day time.Time, duty models.DutyType, weights PriorityWeights) string {
	best := candidates[0]
	bestScore := weights.Score(pool[best], day, duty)
	for _, id := range candidates[1:] {
		score := weights.Score(pool[id], day, duty)
		if score > bestScore || (score == bestScore && id < best) {
			best = id
			bestScore = score
		}
	}
	return best
}

func without(ids []string, exclude string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			result = append(result, id)
		}
	}
	return result
}

func appendDutyRows(rows []models.SupervisionSchedule, teacherID string, day time.Time, duty models.DutyType) []models.SupervisionSchedule {
	for _, period := range models.Periods {
		rows = append(rows, models.SupervisionSchedule{
			TeacherID: teacherID,
			Day:       day,
			Period:    period,
			DutyType:  duty,
		})
	}
	return rows
}

func bump(pool map[string]models.TeacherSupervisionInfo, teacherID string, day time.Time, duty models.DutyType) {
	info := pool[teacherID]
	last := day
	info.LastSupervisionDate = &last
	info.TotalSupervisionCount++
	info.DutyCounts[duty]++
	pool[teacherID] = info
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}
