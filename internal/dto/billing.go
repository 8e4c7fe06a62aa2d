package dto

import (
	"time"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// PurchaseRequest records a manual session purchase against an enrollment.
type PurchaseRequest struct {
	Sessions   int64   `json:"sessions" validate:"required,gte=1"`
	UnitPrice  int64   `json:"unit_price" validate:"gte=0"`
	DiscountID *string `json:"discount_id,omitempty" validate:"omitempty,uuid"`
	Note       string  `json:"note" validate:"max=255"`
}

// TransferFundsRequest moves prepaid balance between two enrollments.
type TransferFundsRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Amount   int64  `json:"amount"`
	Note     string `json:"note" validate:"max=255"`
}

// TransferResult describes the ledger rows written by a transfer.
type TransferResult struct {
	SourceID        string              `json:"source_id"`
	TargetID        string              `json:"target_id"`
	Sessions        int64               `json:"sessions"`
	Amount          int64               `json:"amount"`
	SourceEntry     models.BillingEntry `json:"source_entry"`
	TargetEntry     models.BillingEntry `json:"target_entry"`
	SourceRemaining int64               `json:"source_sessions_remaining"`
	TargetRemaining int64               `json:"target_sessions_remaining"`
}

// EnrollmentBalance is the read-side summary of an enrollment's prepaid balance.
type EnrollmentBalance struct {
	EnrollmentID           string                  `json:"enrollment_id"`
	Status                 models.EnrollmentStatus `json:"status"`
	Active                 bool                    `json:"active"`
	EndDate                *time.Time              `json:"end_date,omitempty"`
	FeePerSession          int64                   `json:"fee_per_session"`
	TotalSessionsPurchased int64                   `json:"total_sessions_purchased"`
	SessionsConsumed       int64                   `json:"sessions_consumed"`
	SessionsRemaining      int64                   `json:"sessions_remaining"`
	RemainingAmount        int64                   `json:"remaining_amount"`
}

// StatementFormat selects the rendering of a billing statement.
type StatementFormat string

const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

// Statement is a rendered billing statement ready for download.
type Statement struct {
	Filename    string
	ContentType string
	Body        []byte
}
