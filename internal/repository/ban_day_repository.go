package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// BanDayRepository reads per-teacher banned weekdays.
type BanDayRepository struct {
	db *sqlx.DB
}

// NewBanDayRepository constructs the repository.
func NewBanDayRepository(db *sqlx.DB) *BanDayRepository {
	return &BanDayRepository{db: db}
}

type banDayRow struct {
	TeacherID string `db:"teacher_id"`
	Weekday   string `db:"weekday"`
}

// MapByTeacher returns every teacher's ban-day set keyed by teacher id.
// Teachers without ban days are absent from the map.
func (r *BanDayRepository) MapByTeacher(ctx context.Context) (map[string]map[time.Weekday]bool, error) {
	const query = `SELECT teacher_id, weekday FROM teacher_ban_days`
	var rows []banDayRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list ban days: %w", err)
	}

	result := make(map[string]map[time.Weekday]bool)
	for _, row := range rows {
		weekday, ok := parseWeekday(row.Weekday)
		if !ok {
			continue
		}
		if result[row.TeacherID] == nil {
			result[row.TeacherID] = make(map[time.Weekday]bool)
		}
		result[row.TeacherID][weekday] = true
	}
	return result, nil
}

var weekdayNames = map[string]time.Weekday{
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
	"SUNDAY":    time.Sunday,
}

func parseWeekday(name string) (time.Weekday, bool) {
	weekday, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(name))]
	return weekday, ok
}
