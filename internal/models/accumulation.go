package models

import "time"

// LateAccumulation counts late arrivals per (employee, year, ISO week).
// AbsenceGenerated guards the late-to-absence trigger so a week can never
// fire twice.
type LateAccumulation struct {
	ID               string    `db:"id" json:"id"`
	EmployeeID       string    `db:"employee_id" json:"employee_id"`
	Year             int       `db:"year" json:"year"`
	Week             int       `db:"week" json:"week"`
	LateCount        int       `db:"late_count" json:"late_count"`
	AbsenceGenerated bool      `db:"absence_generated" json:"absence_generated"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
