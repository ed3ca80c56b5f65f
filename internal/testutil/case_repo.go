package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// MemCaseRepo is an in-memory disposition.Repository. Reads return copies,
// so callers see the stored state only after they write it back. WithTx
// restores the previous state when fn fails.
type MemCaseRepo struct {
	mu         sync.Mutex
	properties map[string]*disposition.Property
	cases      map[string]*disposition.Case
	audit      []*disposition.AuditEvent

	// FailOn makes the named method return the error, e.g.
	// FailOn["AppendAuditEvent"] = errors.Internal("boom").
	FailOn map[string]error
}

func NewMemCaseRepo() *MemCaseRepo {
	return &MemCaseRepo{
		properties: map[string]*disposition.Property{},
		cases:      map[string]*disposition.Case{},
		FailOn:     map[string]error{},
	}
}

func (r *MemCaseRepo) fail(method string) error {
	return r.FailOn[method]
}

func cloneCase(c *disposition.Case) *disposition.Case {
	out := *c
	out.ProofIDs = append([]string(nil), c.ProofIDs...)
	out.Tenants = make([]*disposition.Tenant, len(c.Tenants))
	for i, t := range c.Tenants {
		v := *t
		out.Tenants[i] = &v
	}
	out.Deductions = make([]*disposition.Deduction, len(c.Deductions))
	for i, d := range c.Deductions {
		v := *d
		out.Deductions[i] = &v
	}
	out.Documents = make([]*disposition.Document, len(c.Documents))
	for i, d := range c.Documents {
		v := *d
		out.Documents[i] = &v
	}
	out.Checklist = make([]*disposition.ChecklistItem, len(c.Checklist))
	for i, it := range c.Checklist {
		v := *it
		out.Checklist[i] = &v
	}
	return &out
}

func (r *MemCaseRepo) CreateProperty(_ context.Context, p *disposition.Property) error {
	if err := r.fail("CreateProperty"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := *p
	r.properties[p.ID] = &v
	return nil
}

func (r *MemCaseRepo) GetProperty(_ context.Context, id string) (*disposition.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.properties[id]
	if !ok {
		return nil, errors.New(errors.ErrCodePropertyNotFound, "property not found")
	}
	v := *p
	return &v, nil
}

func (r *MemCaseRepo) ListProperties(_ context.Context, userID string) ([]*disposition.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*disposition.Property
	for _, p := range r.properties {
		if p.UserID == userID {
			v := *p
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemCaseRepo) CreateCase(_ context.Context, c *disposition.Case) error {
	if err := r.fail("CreateCase"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; ok {
		return errors.Conflict("case already exists")
	}
	r.cases[c.ID] = cloneCase(c)
	return nil
}

func (r *MemCaseRepo) GetCase(_ context.Context, id string) (*disposition.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeCaseNotFound, "case not found")
	}
	return cloneCase(c), nil
}

func (r *MemCaseRepo) ListCases(_ context.Context, userID string, opts ...disposition.CaseQueryOption) ([]*disposition.Case, int64, error) {
	o := disposition.ApplyCaseOptions(opts...)
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*disposition.Case
	for _, c := range r.cases {
		if c.UserID == userID && (o.Status == "" || c.Status == o.Status) {
			all = append(all, cloneCase(c))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if o.Offset >= len(all) {
		return []*disposition.Case{}, total, nil
	}
	end := o.Offset + o.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[o.Offset:end], total, nil
}

func (r *MemCaseRepo) ListOpenCasesDueBefore(_ context.Context, cutoff time.Time, limit int) ([]*disposition.Case, error) {
	if err := r.fail("ListOpenCasesDueBefore"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*disposition.Case
	for _, c := range r.cases {
		if c.Status.IsOpen() && !c.DueDate.After(cutoff) {
			v := *c
			v.Tenants, v.Deductions, v.Documents, v.Checklist = nil, nil, nil, nil
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemCaseRepo) UpdateCase(_ context.Context, c *disposition.Case) error {
	if err := r.fail("UpdateCase"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.cases[c.ID]
	if !ok {
		return errors.New(errors.ErrCodeCaseNotFound, "case not found")
	}
	next := cloneCase(c)
	next.Tenants, next.Deductions, next.Documents, next.Checklist = cur.Tenants, cur.Deductions, cur.Documents, cur.Checklist
	r.cases[c.ID] = next
	return nil
}

func (r *MemCaseRepo) UpdateTenant(_ context.Context, t *disposition.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cases[t.CaseID]; ok {
		for i, cur := range c.Tenants {
			if cur.ID == t.ID {
				v := *t
				c.Tenants[i] = &v
				return nil
			}
		}
	}
	return errors.NotFound("tenant not found")
}

func (r *MemCaseRepo) AddDeduction(_ context.Context, d *disposition.Deduction) error {
	if err := r.fail("AddDeduction"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[d.CaseID]
	if !ok {
		return errors.New(errors.ErrCodeCaseNotFound, "case not found")
	}
	v := *d
	c.Deductions = append(c.Deductions, &v)
	return nil
}

func (r *MemCaseRepo) DeleteDeduction(_ context.Context, caseID, deductionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cases[caseID]; ok {
		for i, d := range c.Deductions {
			if d.ID == deductionID {
				c.Deductions = append(c.Deductions[:i], c.Deductions[i+1:]...)
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodeDeductionNotFound, "deduction not found")
}

func (r *MemCaseRepo) UpdateChecklistItem(_ context.Context, item *disposition.ChecklistItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cases[item.CaseID]; ok {
		for i, cur := range c.Checklist {
			if cur.ID == item.ID {
				v := *item
				c.Checklist[i] = &v
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodeChecklistNotFound, "checklist item not found")
}

func (r *MemCaseRepo) AddDocument(_ context.Context, d *disposition.Document) error {
	if err := r.fail("AddDocument"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[d.CaseID]
	if !ok {
		return errors.New(errors.ErrCodeCaseNotFound, "case not found")
	}
	v := *d
	c.Documents = append(c.Documents, &v)
	return nil
}

func (r *MemCaseRepo) GetDocument(_ context.Context, caseID, documentID string) (*disposition.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cases[caseID]; ok {
		for _, d := range c.Documents {
			if d.ID == documentID {
				v := *d
				return &v, nil
			}
		}
	}
	return nil, errors.New(errors.ErrCodeDocumentNotFound, "document not found")
}

func (r *MemCaseRepo) AppendAuditEvent(_ context.Context, e *disposition.AuditEvent) error {
	if err := r.fail("AppendAuditEvent"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := *e
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	r.audit = append(r.audit, &v)
	return nil
}

func (r *MemCaseRepo) ListAuditEvents(_ context.Context, caseID string, limit, offset int) ([]*disposition.AuditEvent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*disposition.AuditEvent
	for i := len(r.audit) - 1; i >= 0; i-- {
		if r.audit[i].CaseID == caseID {
			all = append(all, r.audit[i])
		}
	}
	total := int64(len(all))
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*disposition.AuditEvent{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// AuditActions lists the recorded actions for caseID, oldest first.
func (r *MemCaseRepo) AuditActions(caseID string) []disposition.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []disposition.AuditAction
	for _, e := range r.audit {
		if e.CaseID == caseID {
			out = append(out, e.Action)
		}
	}
	return out
}

func (r *MemCaseRepo) snapshot() (map[string]*disposition.Property, map[string]*disposition.Case, []*disposition.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	props := make(map[string]*disposition.Property, len(r.properties))
	for k, v := range r.properties {
		props[k] = v
	}
	cases := make(map[string]*disposition.Case, len(r.cases))
	for k, v := range r.cases {
		cases[k] = cloneCase(v)
	}
	return props, cases, append([]*disposition.AuditEvent(nil), r.audit...)
}

func (r *MemCaseRepo) WithTx(_ context.Context, fn func(disposition.Repository) error) error {
	props, cases, audit := r.snapshot()
	if err := fn(r); err != nil {
		r.mu.Lock()
		r.properties, r.cases, r.audit = props, cases, audit
		r.mu.Unlock()
		return err
	}
	return nil
}
