package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PayrollPeriodType is the billing cadence of a period.
type PayrollPeriodType string

const (
	PayrollPeriodWeekly   PayrollPeriodType = "weekly"
	PayrollPeriodBiweekly PayrollPeriodType = "biweekly"
	PayrollPeriodMonthly  PayrollPeriodType = "monthly"
)

// Valid reports whether the period type is recognised.
func (t PayrollPeriodType) Valid() bool {
	switch t {
	case PayrollPeriodWeekly, PayrollPeriodBiweekly, PayrollPeriodMonthly:
		return true
	default:
		return false
	}
}

// PayrollPeriodStatus is the period lifecycle:
// draft -> calculating -> review -> approved -> paid.
type PayrollPeriodStatus string

const (
	PayrollPeriodDraft       PayrollPeriodStatus = "draft"
	PayrollPeriodCalculating PayrollPeriodStatus = "calculating"
	PayrollPeriodReview      PayrollPeriodStatus = "review"
	PayrollPeriodApproved    PayrollPeriodStatus = "approved"
	PayrollPeriodPaid        PayrollPeriodStatus = "paid"
)

// CanCalculate reports whether a calculation may start from this status.
func (s PayrollPeriodStatus) CanCalculate() bool {
	return s == PayrollPeriodDraft || s == PayrollPeriodReview
}

// PayrollPeriod is a non-overlapping pay date range.
type PayrollPeriod struct {
	ID           string              `db:"id" json:"id"`
	Name         string              `db:"name" json:"name"`
	Type         PayrollPeriodType   `db:"type" json:"type"`
	StartDate    time.Time           `db:"start_date" json:"start_date"`
	EndDate      time.Time           `db:"end_date" json:"end_date"`
	Status       PayrollPeriodStatus `db:"status" json:"status"`
	CalculatedAt *time.Time          `db:"calculated_at" json:"calculated_at,omitempty"`
	ApprovedBy   *string             `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time          `db:"approved_at" json:"approved_at,omitempty"`
	PaidAt       *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// PayrollEntry is the computed pay result for one employee in one period.
type PayrollEntry struct {
	ID       string `db:"id" json:"id"`
	PeriodID string `db:"period_id" json:"period_id"`

	EmployeeID string `db:"employee_id" json:"employee_id"`

	RegularHours    float64 `db:"regular_hours" json:"regular_hours"`
	OvertimeHours   float64 `db:"overtime_hours" json:"overtime_hours"`
	HolidayHours    float64 `db:"holiday_hours" json:"holiday_hours"`
	WeekendHours    float64 `db:"weekend_hours" json:"weekend_hours"`
	NightShiftHours float64 `db:"night_shift_hours" json:"night_shift_hours"`

	WorkedDays     int `db:"worked_days" json:"worked_days"`
	AbsentDays     int `db:"absent_days" json:"absent_days"`
	LateDays       int `db:"late_days" json:"late_days"`
	PunctualDays   int `db:"punctual_days" json:"punctual_days"`
	NightShiftDays int `db:"night_shift_days" json:"night_shift_days"`
	VacationDays   int `db:"vacation_days" json:"vacation_days"`
	SickLeaveDays  int `db:"sick_leave_days" json:"sick_leave_days"`
	PermissionDays int `db:"permission_days" json:"permission_days"`
	UnpaidDays     int `db:"unpaid_days" json:"unpaid_days"`

	RegularPay  float64 `db:"regular_pay" json:"regular_pay"`
	OvertimePay float64 `db:"overtime_pay" json:"overtime_pay"`
	HolidayPay  float64 `db:"holiday_pay" json:"holiday_pay"`
	WeekendPay  float64 `db:"weekend_pay" json:"weekend_pay"`
	VacationPay float64 `db:"vacation_pay" json:"vacation_pay"`

	PunctualityBonus float64 `db:"punctuality_bonus" json:"punctuality_bonus"`
	WeeklyBonus      float64 `db:"weekly_bonus" json:"weekly_bonus"`
	MonthlyBonus     float64 `db:"monthly_bonus" json:"monthly_bonus"`
	NightShiftBonus  float64 `db:"night_shift_bonus" json:"night_shift_bonus"`
	DinnerAllowance  float64 `db:"dinner_allowance" json:"dinner_allowance"`

	Deductions float64 `db:"deductions" json:"deductions"`
	GrossPay   float64 `db:"gross_pay" json:"gross_pay"`
	NetPay     float64 `db:"net_pay" json:"net_pay"`

	Breakdown PayrollBreakdown `db:"breakdown" json:"breakdown"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PayrollBreakdown retains every intermediate figure of a pay calculation for
// after-the-fact audit. The shape is fixed and versioned so downstream
// consumers can rely on it.
type PayrollBreakdown struct {
	Version          int                        `json:"version"`
	Attendance       BreakdownAttendance        `json:"attendance"`
	Incidents        BreakdownIncidents         `json:"incidents"`
	LateAccumulation BreakdownLateAccumulation  `json:"late_accumulation"`
	NightShift       BreakdownNightShift        `json:"night_shift"`
	Bonuses          BreakdownBonuses           `json:"bonuses"`
	Rates            BreakdownRates             `json:"rates"`
	Final            BreakdownFinalCalculations `json:"final"`
}

// BreakdownAttendance captures the per-bucket attendance aggregation.
type BreakdownAttendance struct {
	RecordCount   int     `json:"record_count"`
	RegularHours  float64 `json:"regular_hours"`
	OvertimeHours float64 `json:"overtime_hours"`
	HolidayHours  float64 `json:"holiday_hours"`
	WeekendHours  float64 `json:"weekend_hours"`
	WorkedDays    int     `json:"worked_days"`
	AbsentDays    int     `json:"absent_days"`
	LateDays      int     `json:"late_days"`
	PunctualDays  int     `json:"punctual_days"`
}

// BreakdownIncidents captures the prorated incident day counts.
type BreakdownIncidents struct {
	VacationDays   int `json:"vacation_days"`
	SickLeaveDays  int `json:"sick_leave_days"`
	PermissionDays int `json:"permission_days"`
	AbsenceDays    int `json:"absence_days"`
	UnpaidDays     int `json:"unpaid_days"`
}

// BreakdownLateAccumulation records the late-to-absence resolution.
type BreakdownLateAccumulation struct {
	Year             int  `json:"year"`
	Week             int  `json:"week"`
	LateCount        int  `json:"late_count"`
	ExtraAbsences    int  `json:"extra_absences"`
	AlreadyGenerated bool `json:"already_generated"`
}

// BreakdownNightShift records the approved night-shift authorizations.
type BreakdownNightShift struct {
	AuthorizedCount int     `json:"authorized_count"`
	Hours           float64 `json:"hours"`
	Days            int     `json:"days"`
}

// BreakdownBonuses itemises bonus computation inputs.
type BreakdownBonuses struct {
	PunctualDays     int     `json:"punctual_days"`
	CleanWeeks       int     `json:"clean_weeks"`
	CleanMonth       bool    `json:"clean_month"`
	PunctualityBonus float64 `json:"punctuality_bonus"`
	WeeklyBonus      float64 `json:"weekly_bonus"`
	MonthlyBonus     float64 `json:"monthly_bonus"`
	NightShiftBonus  float64 `json:"night_shift_bonus"`
	DinnerAllowance  float64 `json:"dinner_allowance"`
}

// BreakdownRates records the rates and multipliers the calculation used.
type BreakdownRates struct {
	HourlyRate         float64 `json:"hourly_rate"`
	OvertimeMultiplier float64 `json:"overtime_multiplier"`
	HolidayMultiplier  float64 `json:"holiday_multiplier"`
	DailyRate          float64 `json:"daily_rate"`
}

// BreakdownFinalCalculations records the closing arithmetic.
type BreakdownFinalCalculations struct {
	RegularPay  float64 `json:"regular_pay"`
	OvertimePay float64 `json:"overtime_pay"`
	HolidayPay  float64 `json:"holiday_pay"`
	WeekendPay  float64 `json:"weekend_pay"`
	VacationPay float64 `json:"vacation_pay"`
	TotalBonus  float64 `json:"total_bonus"`
	Deductions  float64 `json:"deductions"`
	GrossPay    float64 `json:"gross_pay"`
	NetPay      float64 `json:"net_pay"`
}

// Value implements driver.Valuer for JSONB storage.
func (b PayrollBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (b *PayrollBreakdown) Scan(src interface{}) error {
	if src == nil {
		*b = PayrollBreakdown{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("payroll breakdown: unsupported source type %T", src)
	}
	return json.Unmarshal(raw, b)
}

// PayrollEntryDetail extends an entry with employee metadata.
type PayrollEntryDetail struct {
	PayrollEntry
	EmployeeName string `db:"employee_name" json:"employee_name"`
	EmployeeCode string `db:"employee_code" json:"employee_code"`
}
