package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingEntryType classifies ledger rows.
type BillingEntryType string

const (
	BillingEntryPurchase BillingEntryType = "PURCHASE"
	BillingEntryConsume  BillingEntryType = "CONSUME"
	BillingEntryAdjust   BillingEntryType = "ADJUST"
)

// BillingEntry is an immutable ledger row. Sessions is signed: positive adds sessions to the
// enrollment, negative removes them. Amount follows the same sign convention.
type BillingEntry struct {
	ID             string           `db:"id" json:"id"`
	EnrollmentID   string           `db:"enrollment_id" json:"enrollment_id"`
	EntryType      BillingEntryType `db:"entry_type" json:"entry_type"`
	Sessions       int64            `db:"sessions" json:"sessions"`
	UnitPrice      int64            `db:"unit_price" json:"unit_price"`
	DiscountID     *string          `db:"discount_id" json:"discount_id,omitempty"`
	DiscountAmount int64            `db:"discount_amount" json:"discount_amount"`
	Amount         int64            `db:"amount" json:"amount"`
	Note           string           `db:"note" json:"note"`
	CreatedBy      *string          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// Discount is a named promotional rule applied to purchases.
type Discount struct {
	ID         string          `db:"id" json:"id"`
	Code       string          `db:"code" json:"code"`
	Name       string          `db:"name" json:"name"`
	Percent    decimal.Decimal `db:"percent" json:"percent"`
	Amount     int64           `db:"amount" json:"amount"`
	MaxAmount  *int64          `db:"max_amount" json:"max_amount,omitempty"`
	Active     bool            `db:"active" json:"active"`
	StartDate  *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate    *time.Time      `db:"end_date" json:"end_date,omitempty"`
	UsageLimit *int64          `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount int64           `db:"usage_count" json:"usage_count"`
	Note       string          `db:"note" json:"note"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// AppliesOn reports whether the rule is active and day falls inside its validity window.
// Bounds compare by calendar date.
func (d *Discount) AppliesOn(day time.Time) bool {
	if d == nil || !d.Active {
		return false
	}
	today := DateOf(day)
	if d.StartDate != nil && DateOf(*d.StartDate).After(today) {
		return false
	}
	if d.EndDate != nil && DateOf(*d.EndDate).Before(today) {
		return false
	}
	return true
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
