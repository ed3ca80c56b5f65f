package client

import (
	"context"
	"time"
)

// CalculatorClient calls the public calculator endpoints; no token is needed.
type CalculatorClient struct {
	client *Client
}

type DeadlineRequest struct {
	MoveOutDate  string `json:"move_out_date"`
	DeadlineDays *int   `json:"deadline_days,omitempty"`
	State        string `json:"state,omitempty"`
	City         string `json:"city,omitempty"`
}

type DeadlineResult struct {
	MoveOutDate  string    `json:"move_out_date"`
	DeadlineDays int       `json:"deadline_days"`
	DueDate      time.Time `json:"due_date"`
	DaysLeft     int       `json:"days_left"`
	IsOverdue    bool      `json:"is_overdue"`
	Urgency      string    `json:"urgency"`
	Citations    []string  `json:"citations,omitempty"`
}

func (cc *CalculatorClient) Deadline(ctx context.Context, req DeadlineRequest) (*DeadlineResult, error) {
	var out DeadlineResult
	if err := cc.client.post(ctx, "/api/v1/calculator/deadline", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type RefundRequest struct {
	DepositAmount float64 `json:"deposit_amount"`
	Interest      float64 `json:"interest"`
	Deductions    []any   `json:"deductions"`
}

type RefundResult struct {
	TotalDeductions float64 `json:"total_deductions"`
	RefundAmount    float64 `json:"refund_amount"`
	OwesBalance     bool    `json:"owes_balance"`
	Skipped         int     `json:"skipped"`
}

func (cc *CalculatorClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	var out RefundResult
	if err := cc.client.post(ctx, "/api/v1/calculator/refund", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
