package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateDiscountRequest defines a new discount rule.
type CreateDiscountRequest struct {
	Code       string          `json:"code" validate:"required,max=50"`
	Name       string          `json:"name" validate:"required,max=255"`
	Percent    decimal.Decimal `json:"percent"`
	Amount     int64           `json:"amount" validate:"gte=0"`
	MaxAmount  *int64          `json:"max_amount,omitempty" validate:"omitempty,gte=0"`
	Active     *bool           `json:"active,omitempty"`
	StartDate  *time.Time      `json:"start_date,omitempty"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	UsageLimit *int64          `json:"usage_limit,omitempty" validate:"omitempty,gte=0"`
	Note       string          `json:"note"`
}

// UpdateDiscountRequest replaces the editable fields of a discount. A nil Active keeps the
// current flag.
type UpdateDiscountRequest = CreateDiscountRequest

// DiscountFilter narrows discount listings.
type DiscountFilter struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}
