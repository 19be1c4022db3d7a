package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PunchRole classifies a raw punch after reconciliation.
type PunchRole string

const (
	PunchRoleIn       PunchRole = "in"
	PunchRoleOut      PunchRole = "out"
	PunchRoleLunchOut PunchRole = "lunch_out"
	PunchRoleLunchIn  PunchRole = "lunch_in"
	PunchRoleUnknown  PunchRole = "punch"
)

// RawPunch is a single biometric terminal clock event. The punch store is
// append-only and externally produced; the engine never mutates it.
type RawPunch struct {
	ID         string    `db:"id" json:"id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	TerminalID string    `db:"terminal_id" json:"terminal_id"`
	AuthMethod string    `db:"auth_method" json:"auth_method"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AnnotatedPunch is a raw punch retained on the attendance record with its
// inferred role, so the reconciliation outcome stays auditable.
type AnnotatedPunch struct {
	Time       time.Time `json:"time"`
	Role       PunchRole `json:"role"`
	TerminalID string    `json:"terminal_id"`
	AuthMethod string    `json:"auth_method"`
}

// AnnotatedPunchList is stored as a JSONB column on attendance records.
type AnnotatedPunchList []AnnotatedPunch

// Value implements driver.Valuer for JSONB storage.
func (l AnnotatedPunchList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (l *AnnotatedPunchList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("annotated punch list: unsupported source type %T", src)
	}
	return json.Unmarshal(raw, l)
}
