// Package disposition models a deposit-disposition case: the accounting a
// landlord owes a tenant after move-out, with its deductions, documents,
// checklist and append-only audit trail.
package disposition

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// ForwardingAddressStatus records what is known about where to send the
// accounting. UNKNOWN means nobody has documented it yet.
type ForwardingAddressStatus string

const (
	ForwardingUnknown   ForwardingAddressStatus = "UNKNOWN"
	ForwardingProvided  ForwardingAddressStatus = "PROVIDED"
	ForwardingRequested ForwardingAddressStatus = "REQUESTED"
	ForwardingRefused   ForwardingAddressStatus = "REFUSED"
)

// IsDocumented reports whether the status counts as documented. An explicit
// refusal counts; silence does not.
func (s ForwardingAddressStatus) IsDocumented() bool {
	switch s {
	case ForwardingProvided, ForwardingRequested, ForwardingRefused:
		return true
	}
	return false
}

func (s ForwardingAddressStatus) IsValid() bool {
	return s == ForwardingUnknown || s.IsDocumented()
}

// DeliveryMethod is how the accounting reaches the tenant.
type DeliveryMethod string

const (
	DeliveryFirstClassMail DeliveryMethod = "FIRST_CLASS_MAIL"
	DeliveryCertifiedMail  DeliveryMethod = "CERTIFIED_MAIL"
	DeliveryEmail          DeliveryMethod = "EMAIL"
	DeliveryHand           DeliveryMethod = "HAND_DELIVERY"
)

func (m DeliveryMethod) IsValid() bool {
	switch m {
	case DeliveryFirstClassMail, DeliveryCertifiedMail, DeliveryEmail, DeliveryHand:
		return true
	}
	return false
}

// RiskLevel grades how likely a deduction is to be disputed.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// DocumentType enumerates generated artefacts.
type DocumentType string

const (
	DocumentNoticeLetter      DocumentType = "NOTICE_LETTER"
	DocumentItemizedStatement DocumentType = "ITEMIZED_STATEMENT"
	DocumentProofPacket       DocumentType = "PROOF_PACKET"
)

func (d DocumentType) IsValid() bool {
	return d == DocumentNoticeLetter || d == DocumentItemizedStatement || d == DocumentProofPacket
}

// Property is a rental unit owned by a user. Its location selects the
// jurisdiction for new cases.
type Property struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	StateCode   string    `json:"state_code"`
	PostalCode  string    `json:"postal_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProperty validates and returns a property owned by userID.
func NewProperty(userID, name, address, city, state, postal string) (*Property, error) {
	if userID == "" {
		return nil, errors.Unauthorized("user is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.InvalidParam("property name is required")
	}
	st, err := jurisdiction.NormalizeState(state)
	if err != nil {
		return nil, err
	}
	return &Property{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		AddressLine: strings.TrimSpace(address),
		City:        strings.TrimSpace(city),
		StateCode:   st,
		PostalCode:  strings.TrimSpace(postal),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Tenant is a party to the lease. Exactly one tenant per case is primary.
type Tenant struct {
	ID        string `json:"id"`
	CaseID    string `json:"case_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// Deduction is one charge against the deposit. When proration inputs are
// present, Amount is the prorated figure and OriginalAmount the full cost.
type Deduction struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"case_id"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Amount           float64   `json:"amount"`
	OriginalAmount   *float64  `json:"original_amount,omitempty"`
	RiskLevel        RiskLevel `json:"risk_level"`
	HasEvidence      bool      `json:"has_evidence"`
	ItemAgeMonths    *float64  `json:"item_age_months,omitempty"`
	UsefulLifeMonths *float64  `json:"useful_life_months,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Document is a generated artefact stored in object storage.
type Document struct {
	ID          string       `json:"id"`
	CaseID      string       `json:"case_id"`
	Type        DocumentType `json:"type"`
	ObjectKey   string       `json:"object_key"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Case is the aggregate root of a deposit disposition.
type Case struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	PropertyID     string `json:"property_id"`
	JurisdictionID string `json:"jurisdiction_id"`
	RuleSetID      string `json:"rule_set_id"`

	MoveOutDate     time.Time  `json:"move_out_date"`
	LeaseStartDate  *time.Time `json:"lease_start_date,omitempty"`
	LeaseEndDate    *time.Time `json:"lease_end_date,omitempty"`
	DepositAmount   float64    `json:"deposit_amount"`
	DepositInterest float64    `json:"deposit_interest"`
	DueDate         time.Time  `json:"due_date"`

	Status                  Status                  `json:"status"`
	DeliveryMethod          DeliveryMethod          `json:"delivery_method,omitempty"`
	ForwardingAddress       string                  `json:"forwarding_address,omitempty"`
	ForwardingAddressStatus ForwardingAddressStatus `json:"forwarding_address_status"`

	SentAt          *time.Time `json:"sent_at,omitempty"`
	TrackingNumber  string     `json:"tracking_number,omitempty"`
	DeliveryAddress string     `json:"delivery_address,omitempty"`
	ProofIDs        []string   `json:"proof_ids,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	ClosureReason   string     `json:"closure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tenants    []*Tenant        `json:"tenants"`
	Deductions []*Deduction     `json:"deductions"`
	Documents  []*Document      `json:"documents"`
	Checklist  []*ChecklistItem `json:"checklist"`
}

// IsOwnedBy reports whether userID may act on the case.
func (c *Case) IsOwnedBy(userID string) bool {
	return userID != "" && c.UserID == userID
}

// PrimaryTenant returns the primary tenant, or nil if the aggregate was
// loaded without tenants.
func (c *Case) PrimaryTenant() *Tenant {
	for _, t := range c.Tenants {
		if t.IsPrimary {
			return t
		}
	}
	return nil
}

// TotalDeductions sums deduction amounts in cents.
func (c *Case) TotalDeductions() float64 {
	amounts := make([]float64, len(c.Deductions))
	for i, d := range c.Deductions {
		amounts[i] = d.Amount
	}
	return calculator.SumAmounts(amounts)
}

// RefundAmount is deposit + interest - deductions. Negative means the
// tenant owes a balance.
func (c *Case) RefundAmount() float64 {
	return calculator.CalculateRefundAmount(c.DepositAmount, c.DepositInterest, c.TotalDeductions())
}

// HasDocument reports whether a document of type t has been generated.
func (c *Case) HasDocument(t DocumentType) bool {
	for _, d := range c.Documents {
		if d.Type == t {
			return true
		}
	}
	return false
}

// Deadline summarises the due date as seen from now.
func (c *Case) Deadline(now time.Time) calculator.DeadlineSummary {
	return calculator.Summarize(c.DueDate, now)
}

// FindDeduction returns the deduction with id, or nil.
func (c *Case) FindDeduction(id string) *Deduction {
	for _, d := range c.Deductions {
		if d.ID == id {
			return d
		}
	}
	return nil
}
