package models

import "time"

// Status change reasons.
const (
	ReasonAutoEndOfSessions = "AUTO_END_OF_SESSIONS"
	ReasonAutoPastEndDate   = "AUTO_PAST_END_DATE"
	ReasonManualCancel      = "MANUAL_CANCEL"
	ReasonManualChange      = "MANUAL_CHANGE"
)

// EnrollmentStatusLog is the audit row written for every status transition.
type EnrollmentStatusLog struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	OldStatus    EnrollmentStatus `db:"old_status" json:"old_status"`
	NewStatus    EnrollmentStatus `db:"new_status" json:"new_status"`
	Reason       string           `db:"reason" json:"reason"`
	Note         string           `db:"note" json:"note"`
	ActorID      *string          `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
