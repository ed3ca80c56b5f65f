package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const propertyColumns = `id, user_id, name, address_line, city, state_code, postal_code, created_at`

const caseColumns = `id, user_id, property_id, jurisdiction_id, rule_set_id,
	move_out_date, lease_start_date, lease_end_date, deposit_amount, deposit_interest, due_date,
	status, delivery_method, forwarding_address, forwarding_address_status,
	sent_at, tracking_number, delivery_address, proof_ids, closed_at, closure_reason,
	created_at, updated_at`

const deductionColumns = `id, case_id, description, category, amount, original_amount,
	risk_level, has_evidence, item_age_months, useful_life_months, created_at`

const auditColumns = `id, case_id, action, description, actor, metadata, created_at`

// postgresCaseRepo runs against the pool, or against one transaction when
// created by WithTx (beginner is nil then).
type postgresCaseRepo struct {
	db       postgres.DBTX
	beginner postgres.TxBeginner
	log      logging.Logger
}

// NewCaseRepo returns the disposition repository. pool is usually a
// *pgxpool.Pool, which is both a DBTX and a TxBeginner.
func NewCaseRepo(pool interface {
	postgres.DBTX
	postgres.TxBeginner
}, log logging.Logger) disposition.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresCaseRepo{db: pool, beginner: pool, log: log}
}

func (r *postgresCaseRepo) inTx() bool { return r.beginner == nil }

func (r *postgresCaseRepo) WithTx(ctx context.Context, fn func(disposition.Repository) error) error {
	if r.inTx() {
		return fn(r)
	}
	return postgres.WithTransaction(ctx, r.beginner, func(tx pgx.Tx) error {
		return fn(&postgresCaseRepo{db: tx, log: r.log})
	})
}

// Properties

func scanProperty(row scanner) (*disposition.Property, error) {
	p := &disposition.Property{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.AddressLine, &p.City, &p.StateCode, &p.PostalCode, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresCaseRepo) CreateProperty(ctx context.Context, p *disposition.Property) error {
	_, err := r.db.Exec(ctx, `INSERT INTO properties (`+propertyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.Name, p.AddressLine, p.City, p.StateCode, p.PostalCode, p.CreatedAt)
	return mapError(err, errors.ErrCodePropertyNotFound, "failed to create property")
}

func (r *postgresCaseRepo) GetProperty(ctx context.Context, id string) (*disposition.Property, error) {
	p, err := scanProperty(r.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, errors.ErrCodePropertyNotFound, "failed to get property")
	}
	return p, nil
}

func (r *postgresCaseRepo) ListProperties(ctx context.Context, userID string) ([]*disposition.Property, error) {
	rows, err := r.db.Query(ctx, `SELECT `+propertyColumns+`
		FROM properties WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapError(err, errors.ErrCodePropertyNotFound, "failed to list properties")
	}
	defer rows.Close()

	out := []*disposition.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, mapError(err, errors.ErrCodePropertyNotFound, "failed to scan property")
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err(), errors.ErrCodePropertyNotFound, "failed to list properties")
}

// Cases

func scanCase(row scanner) (*disposition.Case, error) {
	c := &disposition.Case{}
	var status, method, fwdStatus string
	err := row.Scan(
		&c.ID, &c.UserID, &c.PropertyID, &c.JurisdictionID, &c.RuleSetID,
		&c.MoveOutDate, &c.LeaseStartDate, &c.LeaseEndDate, &c.DepositAmount, &c.DepositInterest, &c.DueDate,
		&status, &method, &c.ForwardingAddress, &fwdStatus,
		&c.SentAt, &c.TrackingNumber, &c.DeliveryAddress, &c.ProofIDs, &c.ClosedAt, &c.ClosureReason,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = disposition.Status(status)
	c.DeliveryMethod = disposition.DeliveryMethod(method)
	c.ForwardingAddressStatus = disposition.ForwardingAddressStatus(fwdStatus)
	return c, nil
}

func (r *postgresCaseRepo) CreateCase(ctx context.Context, c *disposition.Case) error {
	return r.WithTx(ctx, func(txr disposition.Repository) error {
		tr := txr.(*postgresCaseRepo)
		_, err := tr.db.Exec(ctx, `INSERT INTO cases (`+caseColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23)`,
			c.ID, c.UserID, c.PropertyID, c.JurisdictionID, c.RuleSetID,
			c.MoveOutDate, c.LeaseStartDate, c.LeaseEndDate, c.DepositAmount, c.DepositInterest, c.DueDate,
			string(c.Status), string(c.DeliveryMethod), c.ForwardingAddress, string(c.ForwardingAddressStatus),
			c.SentAt, c.TrackingNumber, c.DeliveryAddress, emptyIfNil(c.ProofIDs), c.ClosedAt, c.ClosureReason,
			c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return mapError(err, errors.ErrCodeCaseNotFound, "failed to create case")
		}
		for _, t := range c.Tenants {
			if _, err := tr.db.Exec(ctx, `INSERT INTO tenants (id, case_id, name, email, is_primary)
				VALUES ($1, $2, $3, $4, $5)`, t.ID, c.ID, t.Name, t.Email, t.IsPrimary); err != nil {
				return mapError(err, errors.ErrCodeCaseNotFound, "failed to create tenant")
			}
		}
		for _, it := range c.Checklist {
			if _, err := tr.db.Exec(ctx, `INSERT INTO checklist_items
				(id, case_id, label, blocks_export, completed, completed_at, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				it.ID, c.ID, it.Label, it.BlocksExport, it.Completed, it.CompletedAt, it.SortOrder); err != nil {
				return mapError(err, errors.ErrCodeChecklistNotFound, "failed to create checklist item")
			}
		}
		return nil
	})
}

func (r *postgresCaseRepo) GetCase(ctx context.Context, id string) (*disposition.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	if r.inTx() {
		query += ` FOR UPDATE`
	}
	c, err := scanCase(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, errors.ErrCodeCaseNotFound, "failed to get case")
	}
	if err := r.loadChildren(ctx, []*disposition.Case{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// buildCaseFilter renders the WHERE clause for ListCases.
func buildCaseFilter(userID string, o disposition.CaseQueryOptions) (string, []any) {
	where := ` WHERE user_id = $1`
	args := []any{userID}
	if o.Status != "" {
		args = append(args, string(o.Status))
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	return where, args
}

func (r *postgresCaseRepo) ListCases(ctx context.Context, userID string, opts ...disposition.CaseQueryOption) ([]*disposition.Case, int64, error) {
	o := disposition.ApplyCaseOptions(opts...)
	where, args := buildCaseFilter(userID, o)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cases`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err, errors.ErrCodeCaseNotFound, "failed to count cases")
	}

	query := fmt.Sprintf(`SELECT %s FROM cases%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		caseColumns, where, len(args)+1, len(args)+2)
	cases, err := r.queryCases(ctx, query, append(args, o.Limit, o.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadChildren(ctx, cases); err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

func (r *postgresCaseRepo) ListOpenCasesDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*disposition.Case, error) {
	if limit <= 0 {
		limit = 500
	}
	return r.queryCases(ctx, `SELECT `+caseColumns+` FROM cases
		WHERE status IN ('ACTIVE', 'PENDING_SEND') AND due_date <= $1
		ORDER BY due_date, id LIMIT $2`, cutoff, limit)
}

func (r *postgresCaseRepo) queryCases(ctx context.Context, query string, args ...any) ([]*disposition.Case, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, errors.ErrCodeCaseNotFound, "failed to list cases")
	}
	defer rows.Close()

	out := []*disposition.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, mapError(err, errors.ErrCodeCaseNotFound, "failed to scan case")
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err(), errors.ErrCodeCaseNotFound, "failed to list cases")
}

// loadChildren fills tenants, deductions, documents and checklist for all
// cases with one query per collection.
func (r *postgresCaseRepo) loadChildren(ctx context.Context, cases []*disposition.Case) error {
	if len(cases) == 0 {
		return nil
	}
	byID := make(map[string]*disposition.Case, len(cases))
	ids := make([]string, len(cases))
	for i, c := range cases {
		c.Tenants = []*disposition.Tenant{}
		c.Deductions = []*disposition.Deduction{}
		c.Documents = []*disposition.Document{}
		c.Checklist = []*disposition.ChecklistItem{}
		byID[c.ID] = c
		ids[i] = c.ID
	}

	rows, err := r.db.Query(ctx, `SELECT id, case_id, name, email, is_primary
		FROM tenants WHERE case_id = ANY($1::uuid[]) ORDER BY is_primary DESC, name`, ids)
	if err != nil {
		return mapError(err, errors.ErrCodeCaseNotFound, "failed to load tenants")
	}
	for rows.Next() {
		t := &disposition.Tenant{}
		if err := rows.Scan(&t.ID, &t.CaseID, &t.Name, &t.Email, &t.IsPrimary); err != nil {
			rows.Close()
			return mapError(err, errors.ErrCodeCaseNotFound, "failed to scan tenant")
		}
		byID[t.CaseID].Tenants = append(byID[t.CaseID].Tenants, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapError(err, errors.ErrCodeCaseNotFound, "failed to load tenants")
	}

	rows, err = r.db.Query(ctx, `SELECT `+deductionColumns+`
		FROM deductions WHERE case_id = ANY($1::uuid[]) ORDER BY created_at, id`, ids)
	if err != nil {
		return mapError(err, errors.ErrCodeDeductionNotFound, "failed to load deductions")
	}
	for rows.Next() {
		d, err := scanDeduction(rows)
		if err != nil {
			rows.Close()
			return mapError(err, errors.ErrCodeDeductionNotFound, "failed to scan deduction")
		}
		byID[d.CaseID].Deductions = append(byID[d.CaseID].Deductions, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapError(err, errors.ErrCodeDeductionNotFound, "failed to load deductions")
	}

	rows, err = r.db.Query(ctx, `SELECT id, case_id, type, object_key, content_type, size, created_at
		FROM documents WHERE case_id = ANY($1::uuid[]) ORDER BY created_at, id`, ids)
	if err != nil {
		return mapError(err, errors.ErrCodeDocumentNotFound, "failed to load documents")
	}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return mapError(err, errors.ErrCodeDocumentNotFound, "failed to scan document")
		}
		byID[d.CaseID].Documents = append(byID[d.CaseID].Documents, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapError(err, errors.ErrCodeDocumentNotFound, "failed to load documents")
	}

	rows, err = r.db.Query(ctx, `SELECT id, case_id, label, blocks_export, completed, completed_at, sort_order
		FROM checklist_items WHERE case_id = ANY($1::uuid[]) ORDER BY sort_order, label`, ids)
	if err != nil {
		return mapError(err, errors.ErrCodeChecklistNotFound, "failed to load checklist")
	}
	defer rows.Close()
	for rows.Next() {
		it := &disposition.ChecklistItem{}
		if err := rows.Scan(&it.ID, &it.CaseID, &it.Label, &it.BlocksExport, &it.Completed, &it.CompletedAt, &it.SortOrder); err != nil {
			return mapError(err, errors.ErrCodeChecklistNotFound, "failed to scan checklist item")
		}
		byID[it.CaseID].Checklist = append(byID[it.CaseID].Checklist, it)
	}
	return mapError(rows.Err(), errors.ErrCodeChecklistNotFound, "failed to load checklist")
}

func (r *postgresCaseRepo) UpdateCase(ctx context.Context, c *disposition.Case) error {
	tag, err := r.db.Exec(ctx, `UPDATE cases SET
			move_out_date = $2, lease_start_date = $3, lease_end_date = $4,
			deposit_amount = $5, deposit_interest = $6, due_date = $7,
			status = $8, delivery_method = $9, forwarding_address = $10, forwarding_address_status = $11,
			sent_at = $12, tracking_number = $13, delivery_address = $14, proof_ids = $15,
			closed_at = $16, closure_reason = $17, updated_at = $18
		WHERE id = $1`,
		c.ID, c.MoveOutDate, c.LeaseStartDate, c.LeaseEndDate,
		c.DepositAmount, c.DepositInterest, c.DueDate,
		string(c.Status), string(c.DeliveryMethod), c.ForwardingAddress, string(c.ForwardingAddressStatus),
		c.SentAt, c.TrackingNumber, c.DeliveryAddress, emptyIfNil(c.ProofIDs),
		c.ClosedAt, c.ClosureReason, c.UpdatedAt,
	)
	if err != nil {
		return mapError(err, errors.ErrCodeCaseNotFound, "failed to update case")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeCaseNotFound, "case not found").WithDetail(c.ID)
	}
	return nil
}

func (r *postgresCaseRepo) UpdateTenant(ctx context.Context, t *disposition.Tenant) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET name = $3, email = $4, is_primary = $5
		WHERE id = $1 AND case_id = $2`, t.ID, t.CaseID, t.Name, t.Email, t.IsPrimary)
	if err != nil {
		return mapError(err, errors.ErrCodeCaseNotFound, "failed to update tenant")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeCaseNotFound, "tenant not found").WithDetail(t.ID)
	}
	return nil
}

// Children

func scanDeduction(row scanner) (*disposition.Deduction, error) {
	d := &disposition.Deduction{}
	var risk string
	err := row.Scan(&d.ID, &d.CaseID, &d.Description, &d.Category, &d.Amount, &d.OriginalAmount,
		&risk, &d.HasEvidence, &d.ItemAgeMonths, &d.UsefulLifeMonths, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.RiskLevel = disposition.RiskLevel(risk)
	return d, nil
}

func scanDocument(row scanner) (*disposition.Document, error) {
	d := &disposition.Document{}
	var typ string
	if err := row.Scan(&d.ID, &d.CaseID, &typ, &d.ObjectKey, &d.ContentType, &d.Size, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Type = disposition.DocumentType(typ)
	return d, nil
}

func (r *postgresCaseRepo) AddDeduction(ctx context.Context, d *disposition.Deduction) error {
	_, err := r.db.Exec(ctx, `INSERT INTO deductions (`+deductionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.CaseID, d.Description, d.Category, d.Amount, d.OriginalAmount,
		string(d.RiskLevel), d.HasEvidence, d.ItemAgeMonths, d.UsefulLifeMonths, d.CreatedAt)
	return mapError(err, errors.ErrCodeCaseNotFound, "failed to add deduction")
}

func (r *postgresCaseRepo) DeleteDeduction(ctx context.Context, caseID, deductionID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM deductions WHERE id = $1 AND case_id = $2`, deductionID, caseID)
	if err != nil {
		return mapError(err, errors.ErrCodeDeductionNotFound, "failed to delete deduction")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeDeductionNotFound, "deduction not found").WithDetail(deductionID)
	}
	return nil
}

func (r *postgresCaseRepo) UpdateChecklistItem(ctx context.Context, it *disposition.ChecklistItem) error {
	tag, err := r.db.Exec(ctx, `UPDATE checklist_items SET completed = $3, completed_at = $4
		WHERE id = $1 AND case_id = $2`, it.ID, it.CaseID, it.Completed, it.CompletedAt)
	if err != nil {
		return mapError(err, errors.ErrCodeChecklistNotFound, "failed to update checklist item")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeChecklistNotFound, "checklist item not found").WithDetail(it.ID)
	}
	return nil
}

func (r *postgresCaseRepo) AddDocument(ctx context.Context, d *disposition.Document) error {
	_, err := r.db.Exec(ctx, `INSERT INTO documents (id, case_id, type, object_key, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.CaseID, string(d.Type), d.ObjectKey, d.ContentType, d.Size, d.CreatedAt)
	return mapError(err, errors.ErrCodeCaseNotFound, "failed to add document")
}

func (r *postgresCaseRepo) GetDocument(ctx context.Context, caseID, documentID string) (*disposition.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx, `SELECT id, case_id, type, object_key, content_type, size, created_at
		FROM documents WHERE id = $1 AND case_id = $2`, documentID, caseID))
	if err != nil {
		return nil, mapError(err, errors.ErrCodeDocumentNotFound, "failed to get document")
	}
	return d, nil
}

// Audit

func (r *postgresCaseRepo) AppendAuditEvent(ctx context.Context, e *disposition.AuditEvent) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := r.db.Exec(ctx, `INSERT INTO audit_events (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.CaseID, string(e.Action), e.Description, e.Actor, meta, e.CreatedAt)
	if err != nil {
		return mapError(err, errors.ErrCodeCaseNotFound, "failed to append audit event")
	}
	r.log.Debug("Appended audit event",
		logging.CaseID(e.CaseID),
		logging.String("action", string(e.Action)),
		logging.String("actor", e.Actor))
	return nil
}

func (r *postgresCaseRepo) ListAuditEvents(ctx context.Context, caseID string, limit, offset int) ([]*disposition.AuditEvent, int64, error) {
	limit, offset = pageBounds(limit, offset)
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, mapError(err, errors.ErrCodeCaseNotFound, "failed to count audit events")
	}

	rows, err := r.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_events
		WHERE case_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err, errors.ErrCodeCaseNotFound, "failed to list audit events")
	}
	defer rows.Close()

	out := []*disposition.AuditEvent{}
	for rows.Next() {
		e := &disposition.AuditEvent{}
		var action string
		if err := rows.Scan(&e.ID, &e.CaseID, &action, &e.Description, &e.Actor, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, 0, mapError(err, errors.ErrCodeCaseNotFound, "failed to scan audit event")
		}
		e.Action = disposition.AuditAction(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, errors.ErrCodeCaseNotFound, "failed to list audit events")
	}
	return out, total, nil
}
