package models

import "time"

// AttendanceStatus represents the resolved status of a daily record.
type AttendanceStatus string

const (
	AttendanceStatusPresent    AttendanceStatus = "present"
	AttendanceStatusLate       AttendanceStatus = "late"
	AttendanceStatusAbsent     AttendanceStatus = "absent"
	AttendanceStatusPartial    AttendanceStatus = "partial"
	AttendanceStatusHoliday    AttendanceStatus = "holiday"
	AttendanceStatusVacation   AttendanceStatus = "vacation"
	AttendanceStatusSickLeave  AttendanceStatus = "sick_leave"
	AttendanceStatusPermission AttendanceStatus = "permission"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent,
		AttendanceStatusPartial, AttendanceStatusHoliday, AttendanceStatusVacation,
		AttendanceStatusSickLeave, AttendanceStatusPermission:
		return true
	default:
		return false
	}
}

// AttendanceRecord is the single reconciled row per (employee, work date).
// Check-in/out carry full timestamps so shifts crossing midnight keep their
// natural ordering.
type AttendanceRecord struct {
	ID                string             `db:"id" json:"id"`
	EmployeeID        string             `db:"employee_id" json:"employee_id"`
	WorkDate          time.Time          `db:"work_date" json:"work_date"`
	CheckIn           *time.Time         `db:"check_in" json:"check_in,omitempty"`
	CheckOut          *time.Time         `db:"check_out" json:"check_out,omitempty"`
	LunchOut          *time.Time         `db:"lunch_out" json:"lunch_out,omitempty"`
	LunchIn           *time.Time         `db:"lunch_in" json:"lunch_in,omitempty"`
	BreakMinutes      int                `db:"break_minutes" json:"break_minutes"`
	WorkedHours       float64            `db:"worked_hours" json:"worked_hours"`
	OvertimeHours     float64            `db:"overtime_hours" json:"overtime_hours"`
	NightShiftHours   float64            `db:"night_shift_hours" json:"night_shift_hours"`
	PermissionHours   float64            `db:"permission_hours" json:"permission_hours"`
	TotalPayrollHours float64            `db:"total_payroll_hours" json:"total_payroll_hours"`
	LateMinutes       int                `db:"late_minutes" json:"late_minutes"`
	EarlyDeparture    int                `db:"early_departure_minutes" json:"early_departure_minutes"`
	Status            AttendanceStatus   `db:"status" json:"status"`
	IsHoliday         bool               `db:"is_holiday" json:"is_holiday"`
	IsWeekend         bool               `db:"is_weekend" json:"is_weekend"`
	IsNightShift      bool               `db:"is_night_shift" json:"is_night_shift"`
	PunctualityBonus  bool               `db:"punctuality_bonus" json:"punctuality_bonus"`
	NightShiftBonus   bool               `db:"night_shift_bonus" json:"night_shift_bonus"`
	RequiresReview    bool               `db:"requires_review" json:"requires_review"`
	AnomalyCount      int                `db:"anomaly_count" json:"anomaly_count"`
	HasAnomalies      bool               `db:"has_anomalies" json:"has_anomalies"`
	RawPunches        AnnotatedPunchList `db:"raw_punches" json:"raw_punches"`
	EditedBy          *string            `db:"edited_by" json:"edited_by,omitempty"`
	EditedAt          *time.Time         `db:"edited_at" json:"edited_at,omitempty"`
	EditReason        *string            `db:"edit_reason" json:"edit_reason,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	EmployeeID   string
	DateFrom     *time.Time
	DateTo       *time.Time
	Status       *AttendanceStatus
	HasAnomalies *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// AttendanceRecordDetail extends a record with employee metadata for listings.
type AttendanceRecordDetail struct {
	AttendanceRecord
	EmployeeName string `db:"employee_name" json:"employee_name"`
	EmployeeCode string `db:"employee_code" json:"employee_code"`
}
