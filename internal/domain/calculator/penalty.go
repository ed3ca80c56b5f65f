package calculator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	doublePattern     = regexp.MustCompile(`\b(2x|twice|double)`)
	triplePattern     = regexp.MustCompile(`\b(3x|triple|three times)`)
	multiplierPattern = regexp.MustCompile(`\b(\d+)\s*(x|times)\b`)
)

// ParsePenaltyMultiplier extracts a deposit multiplier from free-text
// penalty language. The checks run in order:
//
//	"2x", "twice", "double"          -> 2
//	"3x", "triple", "three times"    -> 3
//	`(\d+)\s*(x|times)`              -> the captured integer
//
// Tokens match at word boundaries, so "12x" is 12, not 2. ok is false when nothing matches. Callers must read that as "cannot
// quantify", never as a zero penalty.
func ParsePenaltyMultiplier(text string) (multiplier int, ok bool) {
	lower := strings.ToLower(text)

	if doublePattern.MatchString(lower) {
		return 2, true
	}
	if triplePattern.MatchString(lower) {
		return 3, true
	}
	if m := multiplierPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// CalculatePenaltyAmount returns deposit x multiplier rounded to cents, or
// ok=false when the text has no recognisable multiplier.
func CalculatePenaltyAmount(deposit float64, text string) (amount float64, ok bool) {
	m, ok := ParsePenaltyMultiplier(text)
	if !ok {
		return 0, false
	}
	return decimal.NewFromFloat(deposit).Mul(decimal.NewFromInt(int64(m))).Round(2).InexactFloat64(), true
}
