package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Case is the wire form of a disposition case with its computed figures.
type Case struct {
	ID                      string      `json:"id"`
	PropertyID              string      `json:"property_id"`
	JurisdictionID          string      `json:"jurisdiction_id"`
	Status                  string      `json:"status"`
	MoveOutDate             time.Time   `json:"move_out_date"`
	DueDate                 time.Time   `json:"due_date"`
	DepositAmount           float64     `json:"deposit_amount"`
	DepositInterest         float64     `json:"deposit_interest"`
	DeliveryMethod          string      `json:"delivery_method,omitempty"`
	ForwardingAddressStatus string      `json:"forwarding_address_status"`
	TotalDeductions         float64     `json:"total_deductions"`
	RefundAmount            float64     `json:"refund_amount"`
	Deadline                Deadline    `json:"deadline"`
	AllowedTransitions      []string    `json:"allowed_transitions"`
	Tenants                 []Tenant    `json:"tenants"`
	Deductions              []Deduction `json:"deductions"`
	Checklist               []Checklist `json:"checklist"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

type Deadline struct {
	DueDate   time.Time `json:"due_date"`
	DaysLeft  int       `json:"days_left"`
	IsOverdue bool      `json:"is_overdue"`
	Urgency   string    `json:"urgency"`
}

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

type Deduction struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	RiskLevel   string  `json:"risk_level"`
}

type Checklist struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

// CaseList is one page of cases.
type CaseList struct {
	Cases  []*Case `json:"cases"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// TransitionRequest moves a case to another status. SentAt is YYYY-MM-DD
// or RFC3339.
type TransitionRequest struct {
	To              string   `json:"to"`
	DeliveryMethod  string   `json:"delivery_method,omitempty"`
	SentAt          *string  `json:"sent_at,omitempty"`
	TrackingNumber  string   `json:"tracking_number,omitempty"`
	DeliveryAddress string   `json:"delivery_address,omitempty"`
	ProofIDs        []string `json:"proof_ids,omitempty"`
	ClosureReason   string   `json:"closure_reason,omitempty"`
}

// CasesClient calls the authenticated case endpoints.
type CasesClient struct {
	client *Client
}

// ListCasesOptions filters List; zero values are omitted.
type ListCasesOptions struct {
	Status string
	Limit  int
	Offset int
}

func (cc *CasesClient) List(ctx context.Context, opts ListCasesOptions) (*CaseList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/v1/cases"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out CaseList
	if err := cc.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *CasesClient) Get(ctx context.Context, id string) (*Case, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: case id is required", ErrInvalidConfig)
	}
	var out Case
	if err := cc.client.get(ctx, "/api/v1/cases/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *CasesClient) Transition(ctx context.Context, id string, req TransitionRequest) (*Case, error) {
	if id == "" || req.To == "" {
		return nil, fmt.Errorf("%w: case id and target status are required", ErrInvalidConfig)
	}
	var out Case
	if err := cc.client.post(ctx, "/api/v1/cases/"+url.PathEscape(id)+"/transitions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
