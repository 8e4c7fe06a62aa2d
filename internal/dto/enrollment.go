package dto

import (
	"time"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// EnrollRequest registers a student into a class.
type EnrollRequest struct {
	StudentID         string                  `json:"student_id" validate:"required"`
	ClassID           string                  `json:"class_id" validate:"required"`
	Status            models.EnrollmentStatus `json:"status,omitempty" validate:"omitempty,oneof=NEW ACTIVE PAUSED"`
	StartDate         *time.Time              `json:"start_date,omitempty"`
	FeePerSession     int64                   `json:"fee_per_session" validate:"gte=0"`
	SessionsPurchased int64                   `json:"sessions_purchased" validate:"gte=0"`
	AmountPaid        int64                   `json:"amount_paid" validate:"gte=0"`
	DiscountID        *string                 `json:"discount_id,omitempty" validate:"omitempty,uuid"`
	Note              string                  `json:"note" validate:"max=255"`
}

// UpdateEnrollmentRequest edits the billing terms and dates of an enrollment. Nil fields are kept.
// DiscountID applies to the purchase entry written when the base purchase grows.
type UpdateEnrollmentRequest struct {
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	FeePerSession     *int64     `json:"fee_per_session,omitempty" validate:"omitempty,gte=0"`
	SessionsPurchased *int64     `json:"sessions_purchased,omitempty" validate:"omitempty,gte=0"`
	AmountPaid        *int64     `json:"amount_paid,omitempty" validate:"omitempty,gte=0"`
	DiscountID        *string    `json:"discount_id,omitempty" validate:"omitempty,uuid"`
	Note              *string    `json:"note,omitempty" validate:"omitempty,max=255"`
}

// ChangeStatusRequest is a manual status change initiated by staff.
type ChangeStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=NEW ACTIVE PAUSED COMPLETED CANCELLED"`
	Reason string                  `json:"reason,omitempty" validate:"omitempty,oneof=MANUAL_CANCEL MANUAL_CHANGE"`
	Note   string                  `json:"note" validate:"max=255"`
}

// CancelEnrollmentRequest carries the optional note of a manual cancellation.
type CancelEnrollmentRequest struct {
	Note string `json:"note" validate:"max=255"`
}

// StatusSweepFailure identifies an enrollment the sweep could not process.
type StatusSweepFailure struct {
	EnrollmentID string `json:"enrollment_id"`
	Error        string `json:"error"`
}

// StatusSweepResult summarises one pass of the status sweep.
type StatusSweepResult struct {
	Processed int                  `json:"processed"`
	Updated   int                  `json:"updated"`
	Failures  []StatusSweepFailure `json:"failures,omitempty"`
	Duration  time.Duration        `json:"duration"`
}
