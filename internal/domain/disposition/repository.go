package disposition

import (
	"context"
	"time"
)

// CaseQueryOptions holds filtering and pagination for ListCases.
type CaseQueryOptions struct {
	Status Status
	Limit  int
	Offset int
}

// CaseQueryOption configures a ListCases call.
type CaseQueryOption func(*CaseQueryOptions)

func WithStatus(s Status) CaseQueryOption {
	return func(o *CaseQueryOptions) { o.Status = s }
}

func WithLimit(limit int) CaseQueryOption {
	return func(o *CaseQueryOptions) { o.Limit = limit }
}

func WithOffset(offset int) CaseQueryOption {
	return func(o *CaseQueryOptions) { o.Offset = offset }
}

// ApplyCaseOptions resolves opts over the defaults (limit 20, max 100).
func ApplyCaseOptions(opts ...CaseQueryOption) CaseQueryOptions {
	o := CaseQueryOptions{Limit: 20}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Repository is the persistence contract for properties and cases.
type Repository interface {
	// Property
	CreateProperty(ctx context.Context, p *Property) error
	GetProperty(ctx context.Context, id string) (*Property, error)
	ListProperties(ctx context.Context, userID string) ([]*Property, error)

	// Case. CreateCase stores the case with its tenants and checklist.
	// GetCase loads the full aggregate; inside WithTx it locks the case row.
	CreateCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id string) (*Case, error)
	ListCases(ctx context.Context, userID string, opts ...CaseQueryOption) ([]*Case, int64, error)
	// ListOpenCasesDueBefore returns ACTIVE and PENDING_SEND cases due
	// before the cutoff, earliest first. Child collections are not loaded.
	ListOpenCasesDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Case, error)
	// UpdateCase writes the scalar columns of c.
	UpdateCase(ctx context.Context, c *Case) error
	UpdateTenant(ctx context.Context, t *Tenant) error

	// Children
	AddDeduction(ctx context.Context, d *Deduction) error
	DeleteDeduction(ctx context.Context, caseID, deductionID string) error
	UpdateChecklistItem(ctx context.Context, item *ChecklistItem) error
	AddDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, caseID, documentID string) (*Document, error)

	// Audit. Events are append only.
	AppendAuditEvent(ctx context.Context, e *AuditEvent) error
	ListAuditEvents(ctx context.Context, caseID string, limit, offset int) ([]*AuditEvent, int64, error)

	// WithTx runs fn against a repository bound to one transaction, which
	// commits when fn returns nil.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
