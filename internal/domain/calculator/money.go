package calculator

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const daysPerYear = 365

// RoundCents rounds v to two decimal places, half away from zero.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// CalculateInterest returns simple interest deposit x rate x years, where
// years is the lease span divided by a 365-day year. A nil or non-positive
// rate, or a lease that ends before it starts, yields 0.
func CalculateInterest(deposit float64, annualRate *float64, leaseStart, leaseEnd time.Time) float64 {
	if annualRate == nil || *annualRate <= 0 || math.IsNaN(*annualRate) {
		return 0
	}
	span := leaseEnd.Sub(leaseStart)
	if span <= 0 {
		return 0
	}
	years := decimal.NewFromFloat(span.Hours() / 24).Div(decimal.NewFromInt(daysPerYear))
	interest := decimal.NewFromFloat(deposit).
		Mul(decimal.NewFromFloat(*annualRate)).
		Mul(years)
	return interest.Round(2).InexactFloat64()
}

// CalculateRefundAmount returns deposit + interest - totalDeductions in
// cents. A negative result means the tenant owes a balance; it is not
// clamped.
func CalculateRefundAmount(deposit, interest, totalDeductions float64) float64 {
	return decimal.NewFromFloat(deposit).
		Add(decimal.NewFromFloat(interest)).
		Sub(decimal.NewFromFloat(totalDeductions)).
		Round(2).
		InexactFloat64()
}

// LooseAmount is a money amount that may arrive as a number, a numeric
// string or a deduction object carrying an "amount" field. Values that cannot be parsed are kept but marked invalid so sums
// can skip them instead of rejecting the whole list.
type LooseAmount struct {
	value decimal.Decimal
	valid bool
}

// AmountOf converts a Go value into a LooseAmount. Supported inputs are the
// numeric kinds, strings, json.Number and decimal.Decimal; anything else,
// NaN and infinities are invalid.
func AmountOf(v interface{}) LooseAmount {
	switch x := v.(type) {
	case float64:
		return floatAmount(x)
	case float32:
		return floatAmount(float64(x))
	case int:
		return LooseAmount{value: decimal.NewFromInt(int64(x)), valid: true}
	case int64:
		return LooseAmount{value: decimal.NewFromInt(x), valid: true}
	case decimal.Decimal:
		return LooseAmount{value: x, valid: true}
	case json.Number:
		return parseAmount(x.String())
	case string:
		return parseAmount(x)
	default:
		return LooseAmount{}
	}
}

func floatAmount(f float64) LooseAmount {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return LooseAmount{}
	}
	return LooseAmount{value: decimal.NewFromFloat(f), valid: true}
}

func parseAmount(s string) LooseAmount {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return LooseAmount{}
	}
	return LooseAmount{value: d, valid: true}
}

// Valid reports whether the amount parsed.
func (a LooseAmount) Valid() bool { return a.valid }

// Float64 returns the amount, or 0 when invalid.
func (a LooseAmount) Float64() float64 {
	if !a.valid {
		return 0
	}
	return a.value.InexactFloat64()
}

// UnmarshalJSON accepts a number, a string, null or an object such as
// {"description": "paint", "amount": "120.50"}. It never fails so one
// malformed entry cannot reject a whole request.
func (a *LooseAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			Amount json.RawMessage `json:"amount"`
		}
		if err := json.Unmarshal(b, &obj); err != nil || len(obj.Amount) == 0 || obj.Amount[0] == '{' {
			*a = LooseAmount{}
			return nil
		}
		return a.UnmarshalJSON(obj.Amount)
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			*a = LooseAmount{}
			return nil
		}
		*a = parseAmount(s)
		return nil
	}
	if string(b) == "null" {
		*a = LooseAmount{}
		return nil
	}
	*a = parseAmount(string(b))
	return nil
}

// MarshalJSON writes the number, or null when invalid.
func (a LooseAmount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(a.value.String()), nil
}

// SumDeductions adds the valid amounts and skips the rest, rounded to cents.
func SumDeductions(amounts []LooseAmount) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		if a.valid {
			total = total.Add(a.value)
		}
	}
	return total.Round(2).InexactFloat64()
}

// SumAmounts is SumDeductions for amounts already known to be numeric.
func SumAmounts(amounts []float64) float64 {
	loose := make([]LooseAmount, len(amounts))
	for i, v := range amounts {
		loose[i] = floatAmount(v)
	}
	return SumDeductions(loose)
}
