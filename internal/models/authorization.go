package models

import "time"

// AuthorizationType classifies an extra-hours/permission approval.
type AuthorizationType string

const (
	AuthorizationTypeOvertime       AuthorizationType = "overtime"
	AuthorizationTypeNightShift     AuthorizationType = "night_shift"
	AuthorizationTypeExitPermission AuthorizationType = "exit_permission"
	AuthorizationTypeEntryPermit    AuthorizationType = "entry_permission"
	AuthorizationTypeScheduleChange AuthorizationType = "schedule_change"
	AuthorizationTypeHolidayWorked  AuthorizationType = "holiday_worked"
	AuthorizationTypeSpecial        AuthorizationType = "special"
)

// Valid reports whether the type is recognised.
func (t AuthorizationType) Valid() bool {
	switch t {
	case AuthorizationTypeOvertime, AuthorizationTypeNightShift,
		AuthorizationTypeExitPermission, AuthorizationTypeEntryPermit,
		AuthorizationTypeScheduleChange, AuthorizationTypeHolidayWorked,
		AuthorizationTypeSpecial:
		return true
	default:
		return false
	}
}

// AuthorizationStatus is the approval lifecycle of an authorization.
type AuthorizationStatus string

const (
	AuthorizationStatusPending  AuthorizationStatus = "pending"
	AuthorizationStatusApproved AuthorizationStatus = "approved"
	AuthorizationStatusRejected AuthorizationStatus = "rejected"
	AuthorizationStatusPaid     AuthorizationStatus = "paid"
)

// Counts reports whether the authorization contributes to authorized-hour
// caps. Only approved and paid authorizations do.
func (s AuthorizationStatus) Counts() bool {
	return s == AuthorizationStatusApproved || s == AuthorizationStatusPaid
}

// Authorization is a pre- or post-hoc approval for extra hours or permissions,
// scoped to one employee and one date.
type Authorization struct {
	ID         string              `db:"id" json:"id"`
	EmployeeID string              `db:"employee_id" json:"employee_id"`
	Date       time.Time           `db:"date" json:"date"`
	Type       AuthorizationType   `db:"type" json:"type"`
	Status     AuthorizationStatus `db:"status" json:"status"`
	Hours      float64             `db:"hours" json:"hours"`
	Reason     *string             `db:"reason" json:"reason,omitempty"`
	ApprovedBy *string             `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}
