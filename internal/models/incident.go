package models

import "time"

// IncidentCategory classifies leave and absence events.
type IncidentCategory string

const (
	IncidentCategoryVacation         IncidentCategory = "vacation"
	IncidentCategorySickLeave        IncidentCategory = "sick_leave"
	IncidentCategoryPermission       IncidentCategory = "permission"
	IncidentCategoryAbsence          IncidentCategory = "absence"
	IncidentCategoryLateAccumulation IncidentCategory = "late_accumulation"
	IncidentCategorySpecial          IncidentCategory = "special"
)

// Valid reports whether the category is recognised.
func (c IncidentCategory) Valid() bool {
	switch c {
	case IncidentCategoryVacation, IncidentCategorySickLeave, IncidentCategoryPermission,
		IncidentCategoryAbsence, IncidentCategoryLateAccumulation, IncidentCategorySpecial:
		return true
	default:
		return false
	}
}

// IncidentStatus is the approval lifecycle of an incident.
type IncidentStatus string

const (
	IncidentStatusPending  IncidentStatus = "pending"
	IncidentStatusApproved IncidentStatus = "approved"
	IncidentStatusRejected IncidentStatus = "rejected"
)

// Incident is a leave/absence event spanning a date range.
type Incident struct {
	ID              string           `db:"id" json:"id"`
	EmployeeID      string           `db:"employee_id" json:"employee_id"`
	Category        IncidentCategory `db:"category" json:"category"`
	StartDate       time.Time        `db:"start_date" json:"start_date"`
	EndDate         time.Time        `db:"end_date" json:"end_date"`
	Paid            bool             `db:"paid" json:"paid"`
	DeductsVacation bool             `db:"deducts_vacation" json:"deducts_vacation"`
	Status          IncidentStatus   `db:"status" json:"status"`
	Notes           *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Days returns the inclusive day count of the incident range.
func (i Incident) Days() int {
	days := int(i.EndDate.Sub(i.StartDate).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}

// OverlapDays returns how many of the incident's days fall inside [from, to].
func (i Incident) OverlapDays(from, to time.Time) int {
	start := i.StartDate
	if from.After(start) {
		start = from
	}
	end := i.EndDate
	if to.Before(end) {
		end = to
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
