package models

import "time"

// Employee carries the pay and scheduling attributes the engine needs.
// Override fields layer on top of the referenced schedule.
type Employee struct {
	ID                string     `db:"id" json:"id"`
	Code              string     `db:"code" json:"code"`
	FullName          string     `db:"full_name" json:"full_name"`
	ScheduleID        string     `db:"schedule_id" json:"schedule_id"`
	HourlyRate        float64    `db:"hourly_rate" json:"hourly_rate"`
	ToleranceOverride *int       `db:"tolerance_override" json:"tolerance_override,omitempty"`
	EntryOverride     *string    `db:"entry_override" json:"entry_override,omitempty"`
	ExitOverride      *string    `db:"exit_override" json:"exit_override,omitempty"`
	Active            bool       `db:"active" json:"active"`
	HiredAt           *time.Time `db:"hired_at" json:"hired_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Holiday is one entry of the holiday calendar.
type Holiday struct {
	Date time.Time `db:"date" json:"date"`
	Name string    `db:"name" json:"name"`
}

// HolidaySet answers "is this date a holiday" lookups for a date range
// loaded once per run.
type HolidaySet map[string]bool

// DateKey normalises a time to the map key used by HolidaySet.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NewHolidaySet indexes holidays by date.
func NewHolidaySet(holidays []Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[DateKey(h.Date)] = true
	}
	return set
}

// Contains reports whether the date is a holiday.
func (s HolidaySet) Contains(t time.Time) bool {
	return s[DateKey(t)]
}
