package models

import (
	"strconv"
	"time"
)

// EngineSetting is a persisted named threshold row.
type EngineSetting struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Description *string   `db:"description" json:"description,omitempty"`
	UpdatedBy   *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Setting keys recognised by the engine.
const (
	SettingLateTolerance          = "late_tolerance_minutes"
	SettingPunctualityMinutes     = "punctuality_bonus_minutes"
	SettingPunctualityAmount      = "punctuality_bonus_amount"
	SettingNightWindowStartHour   = "night_shift_window_start_hour"
	SettingNightWindowEndHour     = "night_shift_window_end_hour"
	SettingNightConfirmWindow     = "night_shift_confirmation_minutes"
	SettingLunchDeviationMinutes  = "lunch_deviation_tolerance_minutes"
	SettingLateToAbsenceCount     = "late_to_absence_count"
	SettingWeeklyBonusAmount      = "weekly_bonus_amount"
	SettingMonthlyBonusAmount     = "monthly_bonus_amount"
	SettingNightBonusAmount       = "night_shift_bonus_amount"
	SettingDinnerAllowanceAmount  = "dinner_allowance_amount"
	SettingOvertimeMultiplier     = "overtime_multiplier"
	SettingHolidayMultiplier      = "holiday_multiplier"
	SettingDefaultBreakMinutes    = "default_break_minutes"
	SettingEarlyDepartureAbsence  = "early_departure_absence_minutes"
	SettingDuplicateWindowMinutes = "duplicate_punch_window_minutes"
)

// EngineSettings is the resolved threshold snapshot injected into each
// calculation run so a run is reproducible from its inputs alone.
type EngineSettings struct {
	LateToleranceMinutes          int     `json:"late_tolerance_minutes"`
	PunctualityBonusMinutes       int     `json:"punctuality_bonus_minutes"`
	PunctualityBonusAmount        float64 `json:"punctuality_bonus_amount"`
	NightWindowStartHour          int     `json:"night_shift_window_start_hour"`
	NightWindowEndHour            int     `json:"night_shift_window_end_hour"`
	NightConfirmationMinutes      int     `json:"night_shift_confirmation_minutes"`
	LunchDeviationMinutes         int     `json:"lunch_deviation_tolerance_minutes"`
	LateToAbsenceCount            int     `json:"late_to_absence_count"`
	WeeklyBonusAmount             float64 `json:"weekly_bonus_amount"`
	MonthlyBonusAmount            float64 `json:"monthly_bonus_amount"`
	NightShiftBonusAmount         float64 `json:"night_shift_bonus_amount"`
	DinnerAllowanceAmount         float64 `json:"dinner_allowance_amount"`
	OvertimeMultiplier            float64 `json:"overtime_multiplier"`
	HolidayMultiplier             float64 `json:"holiday_multiplier"`
	DefaultBreakMinutes           int     `json:"default_break_minutes"`
	EarlyDepartureAbsenceMinutes  int     `json:"early_departure_absence_minutes"`
	DuplicatePunchWindowMinutes   int     `json:"duplicate_punch_window_minutes"`
}

// DefaultEngineSettings returns the fallback snapshot used when a named
// threshold has no stored row.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		LateToleranceMinutes:         10,
		PunctualityBonusMinutes:      5,
		PunctualityBonusAmount:       100,
		NightWindowStartHour:         22,
		NightWindowEndHour:           5,
		NightConfirmationMinutes:     30,
		LunchDeviationMinutes:        15,
		LateToAbsenceCount:           6,
		WeeklyBonusAmount:            200,
		MonthlyBonusAmount:           500,
		NightShiftBonusAmount:        150,
		DinnerAllowanceAmount:        80,
		OvertimeMultiplier:           2,
		HolidayMultiplier:            3,
		DefaultBreakMinutes:          60,
		EarlyDepartureAbsenceMinutes: 240,
		DuplicatePunchWindowMinutes:  5,
	}
}

// Apply overlays a stored setting row onto the snapshot. Unknown keys and
// unparsable values are ignored so one bad row cannot poison a run.
func (s *EngineSettings) Apply(row EngineSetting) {
	setInt := func(dst *int) {
		if v, err := strconv.Atoi(row.Value); err == nil {
			*dst = v
		}
	}
	setFloat := func(dst *float64) {
		if v, err := strconv.ParseFloat(row.Value, 64); err == nil {
			*dst = v
		}
	}
	switch row.Key {
	case SettingLateTolerance:
		setInt(&s.LateToleranceMinutes)
	case SettingPunctualityMinutes:
		setInt(&s.PunctualityBonusMinutes)
	case SettingPunctualityAmount:
		setFloat(&s.PunctualityBonusAmount)
	case SettingNightWindowStartHour:
		setInt(&s.NightWindowStartHour)
	case SettingNightWindowEndHour:
		setInt(&s.NightWindowEndHour)
	case SettingNightConfirmWindow:
		setInt(&s.NightConfirmationMinutes)
	case SettingLunchDeviationMinutes:
		setInt(&s.LunchDeviationMinutes)
	case SettingLateToAbsenceCount:
		setInt(&s.LateToAbsenceCount)
	case SettingWeeklyBonusAmount:
		setFloat(&s.WeeklyBonusAmount)
	case SettingMonthlyBonusAmount:
		setFloat(&s.MonthlyBonusAmount)
	case SettingNightBonusAmount:
		setFloat(&s.NightShiftBonusAmount)
	case SettingDinnerAllowanceAmount:
		setFloat(&s.DinnerAllowanceAmount)
	case SettingOvertimeMultiplier:
		setFloat(&s.OvertimeMultiplier)
	case SettingHolidayMultiplier:
		setFloat(&s.HolidayMultiplier)
	case SettingDefaultBreakMinutes:
		setInt(&s.DefaultBreakMinutes)
	case SettingEarlyDepartureAbsence:
		setInt(&s.EarlyDepartureAbsenceMinutes)
	case SettingDuplicateWindowMinutes:
		setInt(&s.DuplicatePunchWindowMinutes)
	}
}
