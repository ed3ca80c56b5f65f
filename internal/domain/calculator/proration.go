package calculator

import "github.com/shopspring/decimal"

// DefaultUsefulLifeMonths applies when no useful life is given.
const DefaultUsefulLifeMonths = 60

// CalculateProration returns the fraction of an item's value that remains
// after ageMonths of a usefulLifeMonths life: (life - age) / life. It is 0
// at or beyond the full life and 1 for a new (or negative-age) item. A
// non-positive life falls back to DefaultUsefulLifeMonths.
func CalculateProration(ageMonths, usefulLifeMonths float64) float64 {
	if usefulLifeMonths <= 0 {
		usefulLifeMonths = DefaultUsefulLifeMonths
	}
	if ageMonths >= usefulLifeMonths {
		return 0
	}
	if ageMonths <= 0 {
		return 1
	}
	return decimal.NewFromFloat(usefulLifeMonths - ageMonths).
		Div(decimal.NewFromFloat(usefulLifeMonths)).
		InexactFloat64()
}

// ApplyProration scales amount by the remaining-value fraction, in cents.
func ApplyProration(amount, ageMonths, usefulLifeMonths float64) float64 {
	fraction := CalculateProration(ageMonths, usefulLifeMonths)
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(fraction)).
		Round(2).
		InexactFloat64()
}
