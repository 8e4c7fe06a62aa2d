package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/steam-center-api/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ApplyDiscount computes the discount for buying sessions at unitPrice and the resulting per-session
// price. A nil, inactive or out-of-window discount yields (0, unitPrice). Usage counters are not touched.
func ApplyDiscount(discount *models.Discount, unitPrice, sessions int64, today time.Time) (discountAmount, newUnitPrice int64) {
	if !discount.AppliesOn(today) {
		return 0, unitPrice
	}

	base := unitPrice * sessions
	percentValue := discount.Percent.Mul(decimal.NewFromInt(base)).Div(hundred)
	raw := percentValue.Add(decimal.NewFromInt(discount.Amount)).Floor().IntPart()
	if discount.MaxAmount != nil && *discount.MaxAmount > 0 && raw > *discount.MaxAmount {
		raw = *discount.MaxAmount
	}
	if raw < 0 {
		raw = 0
	}

	newUnitPrice = unitPrice
	if sessions > 0 {
		effective := base - raw
		if effective < 0 {
			effective = 0
		}
		newUnitPrice = effective / sessions
	}
	return raw, newUnitPrice
}
