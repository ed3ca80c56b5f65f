package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/testutil"
)

func newCalc() *CalculatorHandler {
	return NewCalculatorHandler(testutil.NewStaticRules(), func() time.Time { return testNow })
}

func TestCalculator_Deadline(t *testing.T) {
	h := newCalc()

	tests := []struct {
		name     string
		body     gin.H
		status   int
		wantDue  string
		wantLeft int
		urgency  calculator.Urgency
	}{
		{"explicit days", gin.H{"move_out_date": "2024-03-01", "deadline_days": 14}, http.StatusOK, "2024-03-15", 5, calculator.UrgencyWarning},
		{"leap day rollover", gin.H{"move_out_date": "2024-02-15", "deadline_days": 14}, http.StatusOK, "2024-02-29", -10, calculator.UrgencyOverdue},
		{"from state rules", gin.H{"move_out_date": "2024-03-01", "state": "wa"}, http.StatusOK, "2024-03-31", 21, calculator.UrgencyNormal},
		{"rfc3339 move out", gin.H{"move_out_date": "2024-03-01T00:00:00Z", "deadline_days": 10}, http.StatusOK, "2024-03-11", 1, calculator.UrgencyCritical},
		{"missing days and state", gin.H{"move_out_date": "2024-03-01"}, http.StatusBadRequest, "", 0, ""},
		{"negative days", gin.H{"move_out_date": "2024-03-01", "deadline_days": -1}, http.StatusBadRequest, "", 0, ""},
		{"bad date", gin.H{"move_out_date": "03/01/2024", "deadline_days": 14}, http.StatusBadRequest, "", 0, ""},
		{"unknown state", gin.H{"move_out_date": "2024-03-01", "state": "OR"}, http.StatusNotFound, "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(t, http.MethodPost, "/deadline", "/deadline", h.Deadline, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			resp := decodeBody[DeadlineResponse](t, w)
			assert.Equal(t, tt.wantDue, resp.DueDate.Format(dateLayout))
			assert.Equal(t, tt.wantLeft, resp.DaysLeft)
			assert.Equal(t, tt.urgency, resp.Urgency)
			assert.Equal(t, resp.DaysLeft < 0, resp.IsOverdue)
		})
	}
}

func TestCalculator_Penalty(t *testing.T) {
	h := newCalc()

	w := perform(t, http.MethodPost, "/penalty", "/penalty", h.Penalty, gin.H{"deposit_amount": 1500, "penalty_text": "Triple the deposit"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[PenaltyResponse](t, w)
	require.Len(t, resp.Penalties, 1)
	assert.Equal(t, 3, *resp.Penalties[0].Multiplier)
	assert.Equal(t, 4500.0, *resp.Penalties[0].Amount)

	w = perform(t, http.MethodPost, "/penalty", "/penalty", h.Penalty, gin.H{"deposit_amount": 1500, "penalty_text": "actual damages"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[PenaltyResponse](t, w)
	assert.Nil(t, resp.Penalties[0].Amount, "unresolvable text is not a zero penalty")
	assert.Equal(t, 1, resp.Unresolvable)
	assert.Zero(t, resp.MaxAmount)

	w = perform(t, http.MethodPost, "/penalty", "/penalty", h.Penalty, gin.H{"deposit_amount": -5, "penalty_text": "2x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculator_Interest(t *testing.T) {
	h := newCalc()
	w := perform(t, http.MethodPost, "/interest", "/interest", h.Interest, gin.H{
		"deposit_amount": 1000, "annual_rate": 0.05, "lease_start_date": "2023-01-01", "lease_end_date": "2024-01-01",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 50.0, decodeBody[InterestResponse](t, w).Interest)

	w = perform(t, http.MethodPost, "/interest", "/interest", h.Interest, gin.H{
		"deposit_amount": 1000, "lease_start_date": "2023-01-01", "lease_end_date": "2024-01-01",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decodeBody[InterestResponse](t, w).Interest)

	w = perform(t, http.MethodPost, "/interest", "/interest", h.Interest, gin.H{"deposit_amount": 1000, "lease_start_date": "2023-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculator_Refund(t *testing.T) {
	h := newCalc()
	w := perform(t, http.MethodPost, "/refund", "/refund", h.Refund, gin.H{
		"deposit_amount": 1000,
		"interest":       12.5,
		"deductions":     []any{200, "150.25", "n/a", nil},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[RefundResponse](t, w)
	assert.Equal(t, 350.25, resp.TotalDeductions)
	assert.Equal(t, 662.25, resp.RefundAmount)
	assert.Equal(t, 2, resp.Skipped)
	assert.False(t, resp.OwesBalance)

	w = perform(t, http.MethodPost, "/refund", "/refund", h.Refund, gin.H{
		"deposit_amount": 1000,
		"deductions": []any{
			gin.H{"description": "carpet", "amount": 300},
			gin.H{"description": "paint", "amount": "120.50"},
			gin.H{"description": "keys"},
			75,
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeBody[RefundResponse](t, w)
	assert.Equal(t, 495.5, resp.TotalDeductions)
	assert.Equal(t, 504.5, resp.RefundAmount)
	assert.Equal(t, 1, resp.Skipped)

	w = perform(t, http.MethodPost, "/refund", "/refund", h.Refund, gin.H{"deposit_amount": 100, "deductions": []any{250}})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[RefundResponse](t, w)
	assert.Equal(t, -150.0, resp.RefundAmount)
	assert.True(t, resp.OwesBalance)
}

func TestCalculator_Proration(t *testing.T) {
	h := newCalc()
	tests := []struct {
		body     gin.H
		fraction float64
		amount   float64
	}{
		{gin.H{"amount": 1200, "age_months": 30, "useful_life_months": 60}, 0.5, 600},
		{gin.H{"amount": 1200, "age_months": 30}, 0.5, 600},
		{gin.H{"amount": 1200, "age_months": 90, "useful_life_months": 60}, 0, 0},
		{gin.H{"amount": 1200, "age_months": -3, "useful_life_months": 60}, 1, 1200},
	}
	for _, tt := range tests {
		w := perform(t, http.MethodPost, "/proration", "/proration", h.Proration, tt.body)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[ProrationResponse](t, w)
		assert.Equal(t, tt.fraction, resp.Fraction)
		assert.Equal(t, tt.amount, resp.ProratedAmount)
	}
}

func TestCalculator_RulesNotConfigured(t *testing.T) {
	h := NewCalculatorHandler(nil, nil)
	w := perform(t, http.MethodPost, "/deadline", "/deadline", h.Deadline, gin.H{"move_out_date": "2024-03-01", "state": "WA"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
