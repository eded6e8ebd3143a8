package export

// RosterRow is a single supervision duty line in an exported roster.
type RosterRow struct {
	Day     string
	Weekday string
	Period  string
	Duty    string
	Teacher string
}

var rosterHeaders = []string{"Day", "Weekday", "Period", "Duty", "Teacher"}

func rosterRecord(row RosterRow) []string {
	return []string{row.Day, row.Weekday, row.Period, row.Duty, row.Teacher}
}
