package models

import "time"

// AttendanceStatus represents the status of an attendance record.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "P"
	AttendanceStatusAbsent  AttendanceStatus = "A"
	AttendanceStatusLate    AttendanceStatus = "L"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// IsAttended reports whether the status consumes a session.
func (s AttendanceStatus) IsAttended() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// AttendedStatuses lists the statuses counted as consumption.
var AttendedStatuses = []AttendanceStatus{AttendanceStatusPresent, AttendanceStatusLate}

// AttendanceStatusChanged is published whenever an attendance row is created or updated.
// OldStatus is nil for newly created records.
type AttendanceStatusChanged struct {
	AttendanceID string            `json:"attendance_id"`
	SessionID    string            `json:"session_id"`
	StudentID    string            `json:"student_id"`
	ClassID      string            `json:"class_id"`
	OldStatus    *AttendanceStatus `json:"old_status,omitempty"`
	NewStatus    AttendanceStatus  `json:"new_status"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// CrossesAttendedBoundary reports whether the change moves the record between the
// attended and not-attended categories.
func (e AttendanceStatusChanged) CrossesAttendedBoundary() bool {
	before := e.OldStatus != nil && e.OldStatus.IsAttended()
	return before != e.NewStatus.IsAttended()
}
