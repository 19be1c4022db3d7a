package dto

import "time"

// CorrectAttendanceRequest is a manual punch fix. Omitted fields keep their
// stored values; the edit trail fields are mandatory.
type CorrectAttendanceRequest struct {
	CheckIn      *time.Time `json:"check_in"`
	CheckOut     *time.Time `json:"check_out"`
	LunchOut     *time.Time `json:"lunch_out"`
	LunchIn      *time.Time `json:"lunch_in"`
	BreakMinutes *int       `json:"break_minutes" binding:"omitempty,gte=0"`
	Reason       string     `json:"reason" binding:"required"`
}

// ResolveAnomalyRequest closes a finding.
type ResolveAnomalyRequest struct {
	Status string `json:"status" binding:"required,oneof=resolved dismissed linked_to_authorization"`
}

// CreatePayrollPeriodRequest opens a draft period. Dates use "2006-01-02".
type CreatePayrollPeriodRequest struct {
	Name      string `json:"name" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=weekly biweekly monthly"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"required,datetime=2006-01-02"`
}

// UpdateSettingRequest stores one engine threshold.
type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}
