package dto

import (
	"time"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// AttendanceEventRequest is posted by the web layer after saving an attendance row.
type AttendanceEventRequest struct {
	AttendanceID string                   `json:"attendance_id" validate:"required"`
	SessionID    string                   `json:"session_id" validate:"required"`
	StudentID    string                   `json:"student_id" validate:"required"`
	ClassID      string                   `json:"class_id" validate:"required"`
	OldStatus    *models.AttendanceStatus `json:"old_status,omitempty" validate:"omitempty,oneof=P A L"`
	NewStatus    models.AttendanceStatus  `json:"new_status" validate:"required,oneof=P A L"`
	OccurredAt   *time.Time               `json:"occurred_at,omitempty"`
}

// Event converts the request into the dispatched domain event.
func (r AttendanceEventRequest) Event(now time.Time) models.AttendanceStatusChanged {
	at := now
	if r.OccurredAt != nil {
		at = *r.OccurredAt
	}
	return models.AttendanceStatusChanged{
		AttendanceID: r.AttendanceID,
		SessionID:    r.SessionID,
		StudentID:    r.StudentID,
		ClassID:      r.ClassID,
		OldStatus:    r.OldStatus,
		NewStatus:    r.NewStatus,
		OccurredAt:   at,
	}
}

// AttendanceEventResult reports what the reconciliation did for an event.
type AttendanceEventResult struct {
	Reconciled    bool                     `json:"reconciled"`
	EnrollmentID  string                   `json:"enrollment_id,omitempty"`
	Delta         int64                    `json:"delta"`
	EntryType     *models.BillingEntryType `json:"entry_type,omitempty"`
	StatusChanged bool                     `json:"status_changed"`
}
