// Package cases implements the deposit-disposition use cases: properties,
// cases, deductions, checklist, status transitions, readiness, exposure and
// generated documents. Every operation is scoped to the requesting user; a
// case owned by someone else is reported as not found.
package cases

import (
	"context"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/domain/exposure"
	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/domain/readiness"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/storage/minio"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const (
	defaultLockTTL       = 10 * time.Second
	defaultPresignExpiry = 15 * time.Minute
	eventSource          = "cases"
)

// RuleSource is the part of the rules service cases depend on.
type RuleSource interface {
	Resolve(ctx context.Context, state, city string) (*jurisdiction.Resolution, error)
	GetRuleSet(ctx context.Context, id string) (*jurisdiction.RuleSet, error)
}

// CreatePropertyRequest registers a rental unit.
type CreatePropertyRequest struct {
	Name        string `json:"name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	StateCode   string `json:"state_code"`
	PostalCode  string `json:"postal_code"`
}

// CreateCaseRequest opens a case for a property.
type CreateCaseRequest struct {
	PropertyID     string     `json:"property_id"`
	MoveOutDate    time.Time  `json:"move_out_date"`
	LeaseStartDate *time.Time `json:"lease_start_date,omitempty"`
	LeaseEndDate   *time.Time `json:"lease_end_date,omitempty"`
	DepositAmount  float64    `json:"deposit_amount"`
	TenantName     string     `json:"tenant_name"`
	TenantEmail    string     `json:"tenant_email,omitempty"`
}

// UpdateCaseRequest changes case details. Nil fields are left alone.
type UpdateCaseRequest struct {
	DeliveryMethod          *string `json:"delivery_method,omitempty"`
	ForwardingAddress       *string `json:"forwarding_address,omitempty"`
	ForwardingAddressStatus *string `json:"forwarding_address_status,omitempty"`
	TenantName              *string `json:"tenant_name,omitempty"`
	TenantEmail             *string `json:"tenant_email,omitempty"`
}

// AddDeductionRequest adds a charge. With ItemAgeMonths set, Amount is the
// full replacement cost and the stored amount is prorated.
type AddDeductionRequest struct {
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Amount           float64  `json:"amount"`
	RiskLevel        string   `json:"risk_level,omitempty"`
	HasEvidence      bool     `json:"has_evidence"`
	ItemAgeMonths    *float64 `json:"item_age_months,omitempty"`
	UsefulLifeMonths *float64 `json:"useful_life_months,omitempty"`
}

// CaseDetail is a case with the figures computed from it.
type CaseDetail struct {
	*disposition.Case
	TotalDeductions    float64                    `json:"total_deductions"`
	RefundAmount       float64                    `json:"refund_amount"`
	Deadline           calculator.DeadlineSummary `json:"deadline"`
	AllowedTransitions []disposition.Status       `json:"allowed_transitions"`
}

// CaseList is one page of cases.
type CaseList struct {
	Cases  []*CaseDetail `json:"cases"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AuditPage is one page of a case's audit trail, newest first.
type AuditPage struct {
	Events []*disposition.AuditEvent `json:"events"`
	Total  int64                     `json:"total"`
}

// DocumentLink is a time-limited download link for a stored document.
type DocumentLink struct {
	Document  *disposition.Document `json:"document"`
	URL       string                `json:"url"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// Service is the case application service.
type Service interface {
	CreateProperty(ctx context.Context, userID string, req *CreatePropertyRequest) (*disposition.Property, error)
	ListProperties(ctx context.Context, userID string) ([]*disposition.Property, error)

	CreateCase(ctx context.Context, userID string, req *CreateCaseRequest) (*CaseDetail, error)
	GetCase(ctx context.Context, userID, caseID string) (*CaseDetail, error)
	ListCases(ctx context.Context, userID string, opts ...disposition.CaseQueryOption) (*CaseList, error)
	UpdateCaseDetails(ctx context.Context, userID, caseID string, req *UpdateCaseRequest) (*CaseDetail, error)

	AddDeduction(ctx context.Context, userID, caseID string, req *AddDeductionRequest) (*disposition.Deduction, error)
	RemoveDeduction(ctx context.Context, userID, caseID, deductionID string) error
	SetChecklistItem(ctx context.Context, userID, caseID, itemID string, completed bool) (*disposition.ChecklistItem, error)

	// TransitionStatus moves the case through the status machine under a
	// per-case lock. The case, checklist and audit event commit together.
	TransitionStatus(ctx context.Context, userID, caseID string, req disposition.TransitionRequest) (*CaseDetail, error)

	CheckReadiness(ctx context.Context, userID, caseID string) (*readiness.Report, error)
	EstimateExposure(ctx context.Context, userID, caseID string) (*exposure.Estimate, error)
	ListAuditEvents(ctx context.Context, userID, caseID string, limit, offset int) (*AuditPage, error)

	GenerateDocument(ctx context.Context, userID, caseID string, docType disposition.DocumentType) (*disposition.Document, error)
	ExportProofPacket(ctx context.Context, userID, caseID string) (*DocumentLink, error)
	GetDocumentURL(ctx context.Context, userID, caseID, documentID string) (*DocumentLink, error)
}

type caseServiceImpl struct {
	repo          disposition.Repository
	rules         RuleSource
	publisher     kafka.Publisher
	store         minio.DocumentStore
	locker        redis.Locker
	metrics       *prometheus.AppMetrics
	logger        logging.Logger
	now           func() time.Time
	lockTTL       time.Duration
	presignExpiry time.Duration
}

// Option configures the service.
type Option func(*caseServiceImpl)

// WithLocker serialises transitions per case across processes.
func WithLocker(l redis.Locker, ttl time.Duration) Option {
	return func(s *caseServiceImpl) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithPublisher(p kafka.Publisher) Option {
	return func(s *caseServiceImpl) { s.publisher = p }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *caseServiceImpl) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *caseServiceImpl) { s.now = now }
}

func WithPresignExpiry(d time.Duration) Option {
	return func(s *caseServiceImpl) {
		if d > 0 {
			s.presignExpiry = d
		}
	}
}

// NewService constructs the case service. Events go nowhere until
// WithPublisher is given.
func NewService(repo disposition.Repository, rules RuleSource, store minio.DocumentStore, log logging.Logger, opts ...Option) Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &caseServiceImpl{
		repo:          repo,
		rules:         rules,
		store:         store,
		metrics:       prometheus.NewNopMetrics(),
		logger:        log.Named("cases"),
		now:           time.Now,
		lockTTL:       defaultLockTTL,
		presignExpiry: defaultPresignExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = kafka.NewNopPublisher(s.logger)
	}
	return s
}

func requireUser(userID string) error {
	if userID == "" {
		return errors.Unauthorized("authentication required")
	}
	return nil
}

func caseNotFound(caseID string) error {
	return errors.New(errors.ErrCodeCaseNotFound, "case not found").WithDetail(caseID)
}

// loadOwned loads the case from repo and hides it from everyone but its owner.
func loadOwned(ctx context.Context, repo disposition.Repository, userID, caseID string) (*disposition.Case, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(caseID) == "" {
		return nil, errors.InvalidParam("case id is required")
	}
	c, err := repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(userID) {
		return nil, caseNotFound(caseID)
	}
	return c, nil
}

func (s *caseServiceImpl) detail(c *disposition.Case) *CaseDetail {
	return &CaseDetail{
		Case:               c,
		TotalDeductions:    c.TotalDeductions(),
		RefundAmount:       c.RefundAmount(),
		Deadline:           c.Deadline(s.now()),
		AllowedTransitions: disposition.AllowedTransitions(c.Status),
	}
}

// publish emits an event after the write it describes has committed. A
// failure is logged and never undoes the write.
func (s *caseServiceImpl) publish(ctx context.Context, topic, key, eventType string, payload interface{}) {
	if err := s.publisher.PublishEvent(ctx, topic, key, eventType, payload); err != nil {
		s.logger.Warn("Failed to publish event",
			logging.String("topic", topic), logging.CaseID(key), logging.Err(err))
		s.metrics.RecordError("cases", string(errors.GetCode(err)))
	}
}

func (s *caseServiceImpl) publishAudit(ctx context.Context, ev *disposition.AuditEvent) {
	s.publish(ctx, kafka.TopicAudit, ev.CaseID, string(ev.Action), kafka.AuditPayload{
		EventID:     ev.ID,
		CaseID:      ev.CaseID,
		Action:      string(ev.Action),
		Description: ev.Description,
		Actor:       ev.Actor,
		Metadata:    ev.Metadata,
		CreatedAt:   ev.CreatedAt,
	})
}

func (s *caseServiceImpl) CreateProperty(ctx context.Context, userID string, req *CreatePropertyRequest) (*disposition.Property, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.InvalidParam("request body is required")
	}
	p, err := disposition.NewProperty(userID, req.Name, req.AddressLine, req.City, req.StateCode, req.PostalCode)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateProperty(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Property created", logging.UserID(userID), logging.String("property_id", p.ID))
	return p, nil
}

func (s *caseServiceImpl) ListProperties(ctx context.Context, userID string) ([]*disposition.Property, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.repo.ListProperties(ctx, userID)
}

func (s *caseServiceImpl) CreateCase(ctx context.Context, userID string, req *CreateCaseRequest) (*CaseDetail, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if req == nil || req.PropertyID == "" {
		return nil, errors.InvalidParam("property_id is required")
	}
	prop, err := s.repo.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop.UserID != userID {
		return nil, errors.New(errors.ErrCodePropertyNotFound, "property not found").WithDetail(req.PropertyID)
	}

	res, err := s.rules.Resolve(ctx, prop.StateCode, prop.City)
	if err != nil {
		return nil, err
	}

	c, ev, err := disposition.NewCase(disposition.NewCaseParams{
		UserID:         userID,
		Property:       prop,
		Resolution:     res,
		MoveOutDate:    req.MoveOutDate,
		LeaseStartDate: req.LeaseStartDate,
		LeaseEndDate:   req.LeaseEndDate,
		DepositAmount:  req.DepositAmount,
		TenantName:     req.TenantName,
		TenantEmail:    req.TenantEmail,
		Actor:          userID,
	}, s.now())
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		if err := tx.CreateCase(ctx, c); err != nil {
			return err
		}
		return tx.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CasesCreatedTotal.WithLabelValues(prop.StateCode).Inc()
	s.logger.Info("Case created",
		logging.CaseID(c.ID), logging.UserID(userID),
		logging.String("jurisdiction", res.Jurisdiction.DisplayName()),
		logging.Int("rule_set_version", res.RuleSet.Version))

	s.publish(ctx, kafka.TopicCaseCreated, c.ID, kafka.TopicCaseCreated, kafka.CaseCreatedPayload{
		CaseID:         c.ID,
		UserID:         userID,
		PropertyID:     prop.ID,
		JurisdictionID: c.JurisdictionID,
		RuleSetID:      c.RuleSetID,
		DueDate:        c.DueDate,
		DepositAmount:  c.DepositAmount,
	})
	s.publishAudit(ctx, ev)
	return s.detail(c), nil
}

func (s *caseServiceImpl) GetCase(ctx context.Context, userID, caseID string) (*CaseDetail, error) {
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	return s.detail(c), nil
}

func (s *caseServiceImpl) ListCases(ctx context.Context, userID string, opts ...disposition.CaseQueryOption) (*CaseList, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	o := disposition.ApplyCaseOptions(opts...)
	if o.Status != "" && !o.Status.IsValid() {
		return nil, errors.InvalidParam("unknown case status").WithDetail(string(o.Status))
	}
	list, total, err := s.repo.ListCases(ctx, userID, opts...)
	if err != nil {
		return nil, err
	}
	out := &CaseList{Cases: make([]*CaseDetail, len(list)), Total: total, Limit: o.Limit, Offset: o.Offset}
	for i, c := range list {
		out.Cases[i] = s.detail(c)
	}
	return out, nil
}

// requireOpen refuses edits to the accounting once it has gone out.
func requireOpen(c *disposition.Case) error {
	if !c.Status.IsOpen() {
		return errors.Newf(errors.ErrCodeConflict, "case is %s and can no longer be edited", c.Status).
			WithField("status", string(c.Status))
	}
	return nil
}

func (s *caseServiceImpl) UpdateCaseDetails(ctx context.Context, userID, caseID string, req *UpdateCaseRequest) (*CaseDetail, error) {
	if req == nil {
		return nil, errors.InvalidParam("request body is required")
	}
	var (
		updated *disposition.Case
		ev      *disposition.AuditEvent
	)
	err := s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		c, err := loadOwned(ctx, tx, userID, caseID)
		if err != nil {
			return err
		}
		if err := requireOpen(c); err != nil {
			return err
		}
		now := s.now()
		changed := map[string]any{}

		if req.DeliveryMethod != nil {
			m := disposition.DeliveryMethod(strings.ToUpper(strings.TrimSpace(*req.DeliveryMethod)))
			if !m.IsValid() {
				return errors.InvalidParam("unknown delivery method").WithDetail(*req.DeliveryMethod)
			}
			rs, err := s.rules.GetRuleSet(ctx, c.RuleSetID)
			if err != nil {
				return err
			}
			if !rs.AllowsDeliveryMethod(string(m)) {
				return errors.InvalidParam("delivery method is not permitted in this jurisdiction").WithDetail(string(m))
			}
			if c.DeliveryMethod != m {
				c.DeliveryMethod = m
				changed["delivery_method"] = string(m)
			}
			if item := disposition.FindChecklistItem(c.Checklist, disposition.LabelDeliveryMethod); item != nil && item.Complete(now) {
				if err := tx.UpdateChecklistItem(ctx, item); err != nil {
					return err
				}
			}
		}
		if req.ForwardingAddress != nil {
			addr := strings.TrimSpace(*req.ForwardingAddress)
			if c.ForwardingAddress != addr {
				c.ForwardingAddress = addr
				changed["forwarding_address"] = addr
			}
			if addr != "" && req.ForwardingAddressStatus == nil && !c.ForwardingAddressStatus.IsDocumented() {
				c.ForwardingAddressStatus = disposition.ForwardingProvided
				changed["forwarding_address_status"] = string(c.ForwardingAddressStatus)
			}
		}
		if req.ForwardingAddressStatus != nil {
			st := disposition.ForwardingAddressStatus(strings.ToUpper(strings.TrimSpace(*req.ForwardingAddressStatus)))
			if !st.IsValid() {
				return errors.InvalidParam("unknown forwarding address status").WithDetail(*req.ForwardingAddressStatus)
			}
			if c.ForwardingAddressStatus != st {
				c.ForwardingAddressStatus = st
				changed["forwarding_address_status"] = string(st)
			}
		}
		if c.ForwardingAddressStatus.IsDocumented() {
			if item := disposition.FindChecklistItem(c.Checklist, disposition.LabelForwardingAddress); item != nil && item.Complete(now) {
				if err := tx.UpdateChecklistItem(ctx, item); err != nil {
					return err
				}
			}
		}
		if req.TenantName != nil || req.TenantEmail != nil {
			t := c.PrimaryTenant()
			if t == nil {
				return errors.Internal("case has no primary tenant").WithDetail(c.ID)
			}
			if req.TenantName != nil {
				name := strings.TrimSpace(*req.TenantName)
				if name == "" {
					return errors.InvalidParam("primary tenant name must not be empty")
				}
				t.Name = name
				changed["tenant_name"] = name
			}
			if req.TenantEmail != nil {
				t.Email = strings.TrimSpace(*req.TenantEmail)
				changed["tenant_email"] = t.Email
			}
			if err := tx.UpdateTenant(ctx, t); err != nil {
				return err
			}
		}

		updated = c
		if len(changed) == 0 {
			return nil
		}
		c.UpdatedAt = now.UTC()
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		ev = disposition.NewAuditEvent(c.ID, disposition.ActionCaseUpdated, "Case details updated", userID, changed, now)
		return tx.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	if ev != nil {
		s.publishAudit(ctx, ev)
	}
	return s.detail(updated), nil
}

func (s *caseServiceImpl) AddDeduction(ctx context.Context, userID, caseID string, req *AddDeductionRequest) (*disposition.Deduction, error) {
	if req == nil {
		return nil, errors.InvalidParam("request body is required")
	}
	var (
		d  *disposition.Deduction
		ev *disposition.AuditEvent
	)
	err := s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		c, err := loadOwned(ctx, tx, userID, caseID)
		if err != nil {
			return err
		}
		if err := requireOpen(c); err != nil {
			return err
		}
		now := s.now()
		d, err = disposition.NewDeduction(c.ID, disposition.NewDeductionParams{
			Description:      req.Description,
			Category:         req.Category,
			Amount:           req.Amount,
			RiskLevel:        disposition.RiskLevel(strings.ToUpper(strings.TrimSpace(req.RiskLevel))),
			HasEvidence:      req.HasEvidence,
			ItemAgeMonths:    req.ItemAgeMonths,
			UsefulLifeMonths: req.UsefulLifeMonths,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.AddDeduction(ctx, d); err != nil {
			return err
		}
		meta := map[string]any{
			"deduction_id": d.ID,
			"amount":       d.Amount,
			"category":     d.Category,
			"risk_level":   string(d.RiskLevel),
		}
		if d.OriginalAmount != nil {
			meta["original_amount"] = *d.OriginalAmount
		}
		ev = disposition.NewAuditEvent(c.ID, disposition.ActionDeductionAdded, "Deduction added: "+d.Description, userID, meta, now)
		return tx.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	s.publishAudit(ctx, ev)
	return d, nil
}

func (s *caseServiceImpl) RemoveDeduction(ctx context.Context, userID, caseID, deductionID string) error {
	var ev *disposition.AuditEvent
	err := s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		c, err := loadOwned(ctx, tx, userID, caseID)
		if err != nil {
			return err
		}
		if err := requireOpen(c); err != nil {
			return err
		}
		d := c.FindDeduction(deductionID)
		if d == nil {
			return errors.New(errors.ErrCodeDeductionNotFound, "deduction not found").WithDetail(deductionID)
		}
		if err := tx.DeleteDeduction(ctx, c.ID, d.ID); err != nil {
			return err
		}
		ev = disposition.NewAuditEvent(c.ID, disposition.ActionDeductionRemoved, "Deduction removed: "+d.Description, userID,
			map[string]any{"deduction_id": d.ID, "amount": d.Amount}, s.now())
		return tx.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		return err
	}
	s.publishAudit(ctx, ev)
	return nil
}

func (s *caseServiceImpl) SetChecklistItem(ctx context.Context, userID, caseID, itemID string, completed bool) (*disposition.ChecklistItem, error) {
	var (
		item *disposition.ChecklistItem
		ev   *disposition.AuditEvent
	)
	err := s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		c, err := loadOwned(ctx, tx, userID, caseID)
		if err != nil {
			return err
		}
		for _, it := range c.Checklist {
			if it.ID == itemID {
				item = it
				break
			}
		}
		if item == nil {
			return errors.New(errors.ErrCodeChecklistNotFound, "checklist item not found").WithDetail(itemID)
		}
		now := s.now()
		var changed bool
		if completed {
			changed = item.Complete(now.UTC())
		} else {
			changed = item.Reopen()
		}
		if !changed {
			return nil
		}
		if err := tx.UpdateChecklistItem(ctx, item); err != nil {
			return err
		}
		verb := "reopened"
		if completed {
			verb = "completed"
		}
		ev = disposition.NewAuditEvent(c.ID, disposition.ActionChecklistUpdated,
			"Checklist item "+verb+": "+item.Label, userID,
			map[string]any{"item_id": item.ID, "label": item.Label, "completed": completed}, now)
		return tx.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	if ev != nil {
		s.publishAudit(ctx, ev)
	}
	return item, nil
}

func (s *caseServiceImpl) TransitionStatus(ctx context.Context, userID, caseID string, req disposition.TransitionRequest) (*CaseDetail, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if !req.To.IsValid() {
		return nil, errors.InvalidParam("unknown target status").WithDetail(string(req.To))
	}
	req.Actor = userID

	if s.locker != nil {
		mu := s.locker.NewMutex("case:"+caseID, redis.WithLockTTL(s.lockTTL))
		if err := mu.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := mu.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release case lock", logging.CaseID(caseID), logging.Err(err))
			}
		}()
	}

	var (
		c   *disposition.Case
		res *disposition.TransitionResult
	)
	err := s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		var err error
		c, err = loadOwned(ctx, tx, userID, caseID)
		if err != nil {
			return err
		}
		res, err = c.TransitionTo(req, s.now())
		if err != nil {
			s.metrics.RecordTransition(string(c.Status), string(req.To), string(errors.GetCode(err)))
			return err
		}
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		for _, item := range res.Completed {
			if err := tx.UpdateChecklistItem(ctx, item); err != nil {
				return err
			}
		}
		return tx.AppendAuditEvent(ctx, res.Event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(res.From), string(res.To), "ok")
	s.logger.Info("Case status changed",
		logging.CaseID(c.ID), logging.UserID(userID),
		logging.String("from", string(res.From)), logging.String("to", string(res.To)))

	s.publish(ctx, kafka.TopicCaseStatusChanged, c.ID, kafka.TopicCaseStatusChanged, kafka.StatusChangedPayload{
		CaseID:         c.ID,
		UserID:         c.UserID,
		From:           string(res.From),
		To:             string(res.To),
		DeliveryMethod: string(c.DeliveryMethod),
		SentAt:         c.SentAt,
		Actor:          userID,
	})
	s.publishAudit(ctx, res.Event)
	return s.detail(c), nil
}

func (s *caseServiceImpl) CheckReadiness(ctx context.Context, userID, caseID string) (*readiness.Report, error) {
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	rs, err := s.rules.GetRuleSet(ctx, c.RuleSetID)
	if err != nil {
		return nil, err
	}
	report := readiness.Evaluate(readiness.Input{Case: c, ItemizationRequired: rs.ItemizationRequired, Now: s.now()})

	failed := make(map[string]string)
	for _, chk := range report.Checks {
		if !chk.Passed {
			failed[chk.ID] = string(chk.Severity)
		}
	}
	s.metrics.RecordReadiness(report.Score, failed)
	return report, nil
}

func (s *caseServiceImpl) EstimateExposure(ctx context.Context, userID, caseID string) (*exposure.Estimate, error) {
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	rs, err := s.rules.GetRuleSet(ctx, c.RuleSetID)
	if err != nil {
		return nil, err
	}
	return exposure.EstimateCase(c, rs, s.now()), nil
}

func (s *caseServiceImpl) ListAuditEvents(ctx context.Context, userID, caseID string, limit, offset int) (*AuditPage, error) {
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	events, total, err := s.repo.ListAuditEvents(ctx, c.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*disposition.AuditEvent{}
	}
	return &AuditPage{Events: events, Total: total}, nil
}
