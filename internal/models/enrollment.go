package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusNew       EnrollmentStatus = "NEW"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusPaused    EnrollmentStatus = "PAUSED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Valid reports whether the status is a known value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusNew, EnrollmentStatusActive, EnrollmentStatusPaused, EnrollmentStatusCompleted, EnrollmentStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status counts as active for balance purposes.
func (s EnrollmentStatus) IsActive() bool {
	return s == EnrollmentStatusNew || s == EnrollmentStatusActive
}

// IsTerminal reports whether automatic transitions leave the status alone.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCancelled || s == EnrollmentStatusCompleted
}

// SweepStatuses lists the statuses visited by the periodic status sweep.
var SweepStatuses = []EnrollmentStatus{EnrollmentStatusNew, EnrollmentStatusActive, EnrollmentStatusPaused}

// Enrollment captures a student's registration to a class offering together with its balance.
type Enrollment struct {
	ID                string           `db:"id" json:"id"`
	StudentID         string           `db:"student_id" json:"student_id"`
	ClassID           string           `db:"class_id" json:"class_id"`
	Status            EnrollmentStatus `db:"status" json:"status"`
	JoinedAt          time.Time        `db:"joined_at" json:"joined_at"`
	StartDate         *time.Time       `db:"start_date" json:"start_date,omitempty"`
	EndDate           *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Active            bool             `db:"active" json:"active"`
	Note              string           `db:"note" json:"note"`
	FeePerSession     int64            `db:"fee_per_session" json:"fee_per_session"`
	SessionsPurchased int64            `db:"sessions_purchased" json:"sessions_purchased"`
	SessionsConsumed  int64            `db:"sessions_consumed" json:"sessions_consumed"`
	AmountPaid        int64            `db:"amount_paid" json:"amount_paid"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// SyncActive derives the active flag from the status.
func (e *Enrollment) SyncActive() {
	e.Active = e.Status.IsActive()
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	ClassCode   string `db:"class_code" json:"class_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
