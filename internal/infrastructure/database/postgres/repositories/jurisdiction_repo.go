package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/postgres"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const jurisdictionColumns = `id, state_code, city, coverage, active, created_at, updated_at`

const ruleSetColumns = `id, jurisdiction_id, version, effective_date, return_deadline_days,
	interest_required, interest_rate, itemization_required, allowed_delivery_methods,
	max_deposit_months, citations, penalties, created_at`

// postgresJurisdictionRepo runs against the pool, or against one
// transaction when beginner is nil.
type postgresJurisdictionRepo struct {
	db       postgres.DBTX
	beginner postgres.TxBeginner
	log      logging.Logger
}

// NewJurisdictionRepo returns the jurisdiction repository over db, which is
// normally the connection pool. A db that cannot begin transactions, such as
// a pgx.Tx, is treated as an open transaction by WithTx.
func NewJurisdictionRepo(db postgres.DBTX, log logging.Logger) jurisdiction.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &postgresJurisdictionRepo{db: db, log: log}
	if b, ok := db.(postgres.TxBeginner); ok {
		r.beginner = b
	}
	return r
}

func (r *postgresJurisdictionRepo) WithTx(ctx context.Context, fn func(jurisdiction.Repository) error) error {
	if r.beginner == nil {
		return fn(r)
	}
	return postgres.WithTransaction(ctx, r.beginner, func(tx pgx.Tx) error {
		return fn(&postgresJurisdictionRepo{db: tx, log: r.log})
	})
}

func scanJurisdiction(row scanner) (*jurisdiction.Jurisdiction, error) {
	j := &jurisdiction.Jurisdiction{}
	var coverage string
	if err := row.Scan(&j.ID, &j.StateCode, &j.City, &coverage, &j.Active, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Coverage = jurisdiction.Coverage(coverage)
	return j, nil
}

func scanRuleSet(row scanner) (*jurisdiction.RuleSet, error) {
	rs := &jurisdiction.RuleSet{}
	err := row.Scan(
		&rs.ID, &rs.JurisdictionID, &rs.Version, &rs.EffectiveDate, &rs.ReturnDeadlineDays,
		&rs.InterestRequired, &rs.InterestRate, &rs.ItemizationRequired, &rs.AllowedDeliveryMethods,
		&rs.MaxDepositMonths, &rs.Citations, &rs.Penalties, &rs.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rs.EffectiveDate = rs.EffectiveDate.UTC()
	return rs, nil
}

func (r *postgresJurisdictionRepo) ListByState(ctx context.Context, stateCode string) ([]*jurisdiction.Jurisdiction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jurisdictionColumns+`
		FROM jurisdictions WHERE state_code = $1 AND active
		ORDER BY city NULLS FIRST`, strings.ToUpper(stateCode))
	if err != nil {
		return nil, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to list jurisdictions")
	}
	defer rows.Close()

	var out []*jurisdiction.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to scan jurisdiction")
		}
		out = append(out, j)
	}
	return out, mapError(rows.Err(), errors.ErrCodeJurisdictionNotFound, "failed to list jurisdictions")
}

func (r *postgresJurisdictionRepo) ListRuleSets(ctx context.Context, jurisdictionID string) ([]*jurisdiction.RuleSet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ruleSetColumns+`
		FROM rule_sets WHERE jurisdiction_id = $1
		ORDER BY effective_date DESC, version DESC`, jurisdictionID)
	if err != nil {
		return nil, mapError(err, errors.ErrCodeRuleSetNotFound, "failed to list rule sets")
	}
	defer rows.Close()

	var out []*jurisdiction.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, mapError(err, errors.ErrCodeRuleSetNotFound, "failed to scan rule set")
		}
		out = append(out, rs)
	}
	return out, mapError(rows.Err(), errors.ErrCodeRuleSetNotFound, "failed to list rule sets")
}

func (r *postgresJurisdictionRepo) GetJurisdiction(ctx context.Context, id string) (*jurisdiction.Jurisdiction, error) {
	j, err := scanJurisdiction(r.db.QueryRow(ctx, `SELECT `+jurisdictionColumns+` FROM jurisdictions WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to get jurisdiction")
	}
	return j, nil
}

func (r *postgresJurisdictionRepo) GetRuleSet(ctx context.Context, id string) (*jurisdiction.RuleSet, error) {
	rs, err := scanRuleSet(r.db.QueryRow(ctx, `SELECT `+ruleSetColumns+` FROM rule_sets WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, errors.ErrCodeRuleSetNotFound, "failed to get rule set")
	}
	return rs, nil
}

// buildJurisdictionFilter renders the WHERE clause and its arguments.
func buildJurisdictionFilter(o jurisdiction.QueryOptions) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if o.StateCode != "" {
		args = append(args, strings.ToUpper(o.StateCode))
		conds = append(conds, fmt.Sprintf("state_code = $%d", len(args)))
	}
	if o.ActiveOnly {
		conds = append(conds, "active")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *postgresJurisdictionRepo) List(ctx context.Context, opts ...jurisdiction.QueryOption) ([]*jurisdiction.Jurisdiction, int64, error) {
	o := jurisdiction.ApplyOptions(opts...)
	where, args := buildJurisdictionFilter(o)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM jurisdictions`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to count jurisdictions")
	}

	query := fmt.Sprintf(`SELECT %s FROM jurisdictions%s
		ORDER BY state_code, city NULLS FIRST LIMIT $%d OFFSET $%d`,
		jurisdictionColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, o.Limit, o.Offset)...)
	if err != nil {
		return nil, 0, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to list jurisdictions")
	}
	defer rows.Close()

	var out []*jurisdiction.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, 0, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to scan jurisdiction")
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to list jurisdictions")
	}
	return out, total, nil
}

func (r *postgresJurisdictionRepo) UpsertJurisdiction(ctx context.Context, j *jurisdiction.Jurisdiction) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO jurisdictions (id, state_code, city, coverage, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (state_code, (COALESCE(lower(city), '')))
		DO UPDATE SET coverage = EXCLUDED.coverage, active = EXCLUDED.active, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		j.ID, j.StateCode, j.City, string(j.Coverage), j.Active, j.CreatedAt,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return mapError(err, errors.ErrCodeJurisdictionNotFound, "failed to upsert jurisdiction")
	}
	r.log.Debug("Upserted jurisdiction", logging.String("jurisdiction_id", j.ID), logging.String("name", j.DisplayName()))
	return nil
}

func (r *postgresJurisdictionRepo) CreateRuleSet(ctx context.Context, rs *jurisdiction.RuleSet) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	if rs.ID == "" {
		rs.ID = uuid.NewString()
	}
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now().UTC()
	}
	penalties := rs.Penalties
	if penalties == nil {
		penalties = []jurisdiction.Penalty{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO rule_sets (`+ruleSetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		rs.ID, rs.JurisdictionID, rs.Version, rs.EffectiveDate, rs.ReturnDeadlineDays,
		rs.InterestRequired, rs.InterestRate, rs.ItemizationRequired, emptyIfNil(rs.AllowedDeliveryMethods),
		rs.MaxDepositMonths, emptyIfNil(rs.Citations), penalties, rs.CreatedAt,
	).Scan(&rs.CreatedAt)
	if err != nil {
		return mapError(err, errors.ErrCodeRuleSetNotFound, "failed to create rule set")
	}
	return nil
}
