package model

import "time"

// DateLayout is the on-disk form of a due date. Lexicographic order of the
// formatted string matches calendar order.
const DateLayout = "2006-01-02"

// Task is one thing to revisit periodically.
type Task struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"column:name;not null" json:"name"`
	URL     string `gorm:"column:url;not null" json:"url"`
	Level   int    `gorm:"column:level;not null" json:"level"`
	DueDate string `gorm:"column:due_date;not null" json:"due_date"`
}

// IsDue reports whether the task is eligible for review on asOf.
func (t Task) IsDue(asOf time.Time) bool {
	return t.DueDate <= FormatDate(asOf)
}

// FormatDate renders the calendar date of t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DateLayout string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// Day truncates t to midnight of its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves a calendar day forward by n days. Unlike t.Add it is not
// affected by DST transitions.
func AddDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}
