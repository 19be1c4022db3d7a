package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule defines the expected working pattern referenced by employees.
// Times of day are "HH:MM" strings on the 24h clock.
type Schedule struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	EntryTime        string    `db:"entry_time" json:"entry_time"`
	ExitTime         string    `db:"exit_time" json:"exit_time"`
	BreakStart       *string   `db:"break_start" json:"break_start,omitempty"`
	BreakEnd         *string   `db:"break_end" json:"break_end,omitempty"`
	BreakMinutes     int       `db:"break_minutes" json:"break_minutes"`
	ToleranceMinutes int       `db:"tolerance_minutes" json:"tolerance_minutes"`
	DailyWorkHours   float64   `db:"daily_work_hours" json:"daily_work_hours"`
	WorkingDays      string    `db:"working_days" json:"working_days"` // comma-separated weekday numbers, Monday=1
	NightShift       bool      `db:"night_shift" json:"night_shift"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// DayScheduleOverride replaces selected schedule fields on one weekday.
// Nil fields fall through to the base schedule.
type DayScheduleOverride struct {
	ID               string   `db:"id" json:"id"`
	ScheduleID       string   `db:"schedule_id" json:"schedule_id"`
	Weekday          int      `db:"weekday" json:"weekday"` // Monday=1 .. Sunday=7
	EntryTime        *string  `db:"entry_time" json:"entry_time,omitempty"`
	ExitTime         *string  `db:"exit_time" json:"exit_time,omitempty"`
	BreakMinutes     *int     `db:"break_minutes" json:"break_minutes,omitempty"`
	ToleranceMinutes *int     `db:"tolerance_minutes" json:"tolerance_minutes,omitempty"`
	DailyWorkHours   *float64 `db:"daily_work_hours" json:"daily_work_hours,omitempty"`
	Working          *bool    `db:"working" json:"working,omitempty"`
}

// EffectiveSchedule is the fully resolved working pattern for one employee on
// one work date: base schedule, weekday override and employee-level overrides
// merged field by field. Entry/exit are minutes from midnight.
type EffectiveSchedule struct {
	ScheduleID       string
	EntryMinutes     int
	ExitMinutes      int
	BreakMinutes     int
	ToleranceMinutes int
	DailyWorkHours   float64
	Working          bool
	NightShift       bool
}

// ParseClock converts an "HH:MM" string into minutes from midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock value %q", raw)
	}
	return hour*60 + minute, nil
}

// WorkingWeekdays expands the comma-separated working day set.
func (s Schedule) WorkingWeekdays() map[int]bool {
	days := make(map[int]bool)
	for _, part := range strings.Split(s.WorkingDays, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil && day >= 1 && day <= 7 {
			days[day] = true
		}
	}
	return days
}

// ISOWeekday maps time.Weekday onto the Monday=1..Sunday=7 convention used by
// schedules and day overrides.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
