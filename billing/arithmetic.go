// Package billing holds the pure invoice arithmetic shared by the session and
// invoice engines. Nothing here touches the database.
//
// Rounding policy: amounts and percentages are stored with two decimal places
// and rounded half away from zero (decimal.Round), which for the non-negative
// values billed here is plain half-up.
package billing

import (
	"github.com/shopspring/decimal"

	"restaurant-backend/models"
)

// Places is the number of decimal places kept for money and percentages.
const Places = 2

var (
	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// Weighted pairs a value with the weight it carries in an average.
type Weighted struct {
	Value  decimal.Decimal
	Weight decimal.Decimal
}

// Round applies the storage rounding policy.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// CombineWeighted returns Σ(value×weight)/Σ(weight), or zero when the weights
// sum to zero. The result is not rounded.
func CombineWeighted(values []Weighted) decimal.Decimal {
	sum, weights := decimal.Zero, decimal.Zero
	for _, v := range values {
		sum = sum.Add(v.Value.Mul(v.Weight))
		weights = weights.Add(v.Weight)
	}
	if weights.IsZero() {
		return decimal.Zero
	}
	return sum.Div(weights)
}

// FinalAmount is total × (1 − discount/100) × (1 + tax/100), rounded.
func FinalAmount(total, discount, tax decimal.Decimal) decimal.Decimal {
	return Round(total.Mul(hundred.Sub(discount)).Mul(hundred.Add(tax)).Div(tenThousand))
}

// Percentage returns pct percent of amount, rounded.
func Percentage(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// DeriveStatus maps what has been paid against what is owed.
// An invoice with nothing paid is unpaid even when it owes nothing yet.
func DeriveStatus(finalAmount, totalPaid decimal.Decimal) models.InvoiceStatus {
	switch {
	case !totalPaid.IsPositive():
		return models.InvoiceUnpaid
	case totalPaid.GreaterThanOrEqual(finalAmount):
		return models.InvoicePaid
	default:
		return models.InvoicePartiallyPaid
	}
}
