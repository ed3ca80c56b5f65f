package jurisdiction

import "context"

// QueryOptions holds filtering and pagination for List.
type QueryOptions struct {
	StateCode  string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// QueryOption configures a List call.
type QueryOption func(*QueryOptions)

func WithState(code string) QueryOption {
	return func(o *QueryOptions) { o.StateCode = code }
}

func WithActiveOnly() QueryOption {
	return func(o *QueryOptions) { o.ActiveOnly = true }
}

func WithLimit(limit int) QueryOption {
	return func(o *QueryOptions) { o.Limit = limit }
}

func WithOffset(offset int) QueryOption {
	return func(o *QueryOptions) { o.Offset = offset }
}

// ApplyOptions resolves opts over the defaults (limit 50, max 200).
func ApplyOptions(opts ...QueryOption) QueryOptions {
	o := QueryOptions{Limit: 50}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Repository is the persistence contract for jurisdictions and rule sets.
type Repository interface {
	// ListByState returns the active jurisdictions of one state.
	ListByState(ctx context.Context, stateCode string) ([]*Jurisdiction, error)
	// ListRuleSets returns every rule set of a jurisdiction, newest first.
	ListRuleSets(ctx context.Context, jurisdictionID string) ([]*RuleSet, error)

	GetJurisdiction(ctx context.Context, id string) (*Jurisdiction, error)
	GetRuleSet(ctx context.Context, id string) (*RuleSet, error)
	List(ctx context.Context, opts ...QueryOption) ([]*Jurisdiction, int64, error)

	// UpsertJurisdiction inserts j, or updates coverage and active flag of
	// the record with the same state and city. j.ID is set to the stored id.
	UpsertJurisdiction(ctx context.Context, j *Jurisdiction) error
	// CreateRuleSet stores rs. Versions are unique per jurisdiction.
	CreateRuleSet(ctx context.Context, rs *RuleSet) error

	// WithTx runs fn against a repository bound to one transaction. fn's
	// writes are rolled back when it returns an error.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
