package model

import "time"

// Status is the recorded attendance outcome for a student on a given day.
type Status string

const (
	StatusPresent Status = "present"
	StatusHaid    Status = "haid"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusHaid:
		return true
	default:
		return false
	}
}

// Role identifies the kind of logged-in user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleGuardian Role = "guardian"
)

// Valid returns true when the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleGuardian:
		return true
	default:
		return false
	}
}

// Student is one roster entry. ID is the external student number (NISN).
type Student struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ClassName   string `json:"className"`
	Gender      string `json:"gender,omitempty"`
	ParentPhone string `json:"parentPhone,omitempty"`
}

// Record is one attendance mark. StudentName and ClassName are snapshots
// taken at write time and are not re-synced if the roster changes later.
type Record struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	StudentName  string    `json:"studentName"`
	ClassName    string    `json:"className"`
	Date         string    `json:"date"` // YYYY-MM-DD, local time
	Timestamp    time.Time `json:"timestamp"`
	OperatorName string    `json:"operatorName"`
	Status       Status    `json:"status"`
}

// DateKey formats t as the calendar-day key records are deduplicated on.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Session is the logged-in state persisted alongside the data caches.
// Student is set only for guardian sessions and binds the session to
// that student's records.
type Session struct {
	Username string   `json:"username"`
	Role     Role     `json:"role"`
	Student  *Student `json:"student,omitempty"`
}
