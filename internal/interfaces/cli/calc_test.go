package cli

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcDeadline(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		due     string
		left    int
		urgency string
	}{
		{"warning band", []string{"--move-out", "2024-03-01", "--days", "14"}, "2024-03-15", 5, "warning"},
		{"leap day overdue", []string{"--move-out", "2024-02-15", "--days", "14"}, "2024-02-29", -10, "overdue"},
		{"explicit as-of", []string{"--move-out", "2024-03-01", "--days", "30", "--as-of", "2024-03-10"}, "2024-03-31", 21, "normal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, testDeps(), append([]string{"-o", "json", "calc", "deadline"}, tt.args...)...)
			require.NoError(t, err)
			var got struct {
				DueDate  string `json:"due_date"`
				DaysLeft int    `json:"days_left"`
				Urgency  string `json:"urgency"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, tt.due, got.DueDate[:10])
			assert.Equal(t, tt.left, got.DaysLeft)
			assert.Equal(t, tt.urgency, got.Urgency)
		})
	}
}

func TestCalcDeadline_TextIsTable(t *testing.T) {
	out, _, err := run(t, testDeps(), "calc", "deadline", "--move-out", "2024-03-01", "--days", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "due_date       2024-03-15")
}

func TestCalcDeadline_BadDate(t *testing.T) {
	_, _, err := run(t, testDeps(), "calc", "deadline", "--move-out", "03/01/2024", "--days", "14")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestCalcDeadline_MissingFlag(t *testing.T) {
	_, _, err := run(t, testDeps(), "calc", "deadline", "--move-out", "2024-03-01")
	assert.Error(t, err)
}

func TestCalcInterest(t *testing.T) {
	out, _, err := run(t, testDeps(), "calc", "interest",
		"--deposit", "1000", "--rate", "0.05", "--start", "2023-01-01", "--end", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "interest: 50.00\n", out)

	out, _, err = run(t, testDeps(), "calc", "interest",
		"--deposit", "1000", "--start", "2023-01-01", "--end", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "interest: 0.00\n", out, "no rate means no interest")
}

func TestCalcRefund(t *testing.T) {
	out, _, err := run(t, testDeps(), "-o", "json", "calc", "refund",
		"--deposit", "1500", "--deduction", "100", "--deduction", "50.255", "--deduction", "n/a")
	require.NoError(t, err)
	var got RefundResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, RefundResult{TotalDeductions: 150.26, RefundAmount: 1349.74, Skipped: 1}, got)
}

func TestCalcRefund_OwesBalance(t *testing.T) {
	out, _, err := run(t, testDeps(), "-o", "json", "calc", "refund", "--deposit", "500", "--deduction", "750")
	require.NoError(t, err)
	var got RefundResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, -250.0, got.RefundAmount)
	assert.True(t, got.OwesBalance)
}

func TestCalcPenalty(t *testing.T) {
	out, _, err := run(t, testDeps(), "calc", "penalty", "--deposit", "1200", "--text", "up to twice the deposit")
	require.NoError(t, err)
	assert.Equal(t, "penalty: 2400.00 (2x deposit)\n", out)

	out, _, err = run(t, testDeps(), "-o", "json", "calc", "penalty", "--deposit", "1200", "--text", "actual damages")
	require.NoError(t, err)
	assert.JSONEq(t, `{"multiplier":null,"amount":null}`, out)
}

func TestCalcProration(t *testing.T) {
	out, _, err := run(t, testDeps(), "-o", "json", "calc", "proration", "--amount", "600", "--age", "36", "--life", "60")
	require.NoError(t, err)
	assert.JSONEq(t, `{"fraction":0.4,"prorated_amount":240}`, out)

	out, _, err = run(t, testDeps(), "-o", "json", "calc", "proration", "--amount", "600", "--age", "90")
	require.NoError(t, err)
	assert.JSONEq(t, `{"fraction":0,"prorated_amount":0}`, out)
}
