package cases

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/domain/readiness"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/storage/minio"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const (
	textContentType = "text/plain; charset=utf-8"
	jsonContentType = "application/json"
	auditPageSize   = 200
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var documentTemplates = template.Must(template.New("documents").Funcs(template.FuncMap{
	"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
	"money": func(v float64) string { return "$" + strconv.FormatFloat(v, 'f', 2, 64) },
	"join":  strings.Join,
	"inc":   func(i int) int { return i + 1 },
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
	"months": func(v *float64) string {
		if v == nil {
			return "?"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

var templateNames = map[disposition.DocumentType]string{
	disposition.DocumentNoticeLetter:      "notice_letter.tmpl",
	disposition.DocumentItemizedStatement: "itemized_statement.tmpl",
}

var checklistLabels = map[disposition.DocumentType]string{
	disposition.DocumentNoticeLetter:      disposition.LabelNoticeLetter,
	disposition.DocumentItemizedStatement: disposition.LabelItemizedStatement,
}

// letterData is what the document templates see.
type letterData struct {
	GeneratedAt       time.Time
	TenantName        string
	ForwardingAddress string
	PropertyName      string
	PropertyAddress   string
	Jurisdiction      string
	MoveOutDate       time.Time
	DueDate           time.Time
	DeadlineDays      int
	Deposit           float64
	Interest          float64
	TotalDeductions   float64
	Refund            float64
	Balance           float64
	BalanceOwed       bool
	Deductions        []*disposition.Deduction
	Citations         []string
	DeliveryMethod    string
}

func buildLetterData(c *disposition.Case, p *disposition.Property, rs *jurisdiction.RuleSet, now time.Time) letterData {
	refund := c.RefundAmount()
	d := letterData{
		GeneratedAt:       now,
		ForwardingAddress: c.ForwardingAddress,
		MoveOutDate:       c.MoveOutDate,
		DueDate:           c.DueDate,
		DeadlineDays:      rs.ReturnDeadlineDays,
		Deposit:           c.DepositAmount,
		Interest:          c.DepositInterest,
		TotalDeductions:   c.TotalDeductions(),
		Refund:            refund,
		Deductions:        c.Deductions,
		Citations:         rs.Citations,
		DeliveryMethod:    strings.ReplaceAll(strings.ToLower(string(c.DeliveryMethod)), "_", " "),
	}
	if refund < 0 {
		d.BalanceOwed = true
		d.Balance = -refund
	}
	if t := c.PrimaryTenant(); t != nil {
		d.TenantName = t.Name
	}
	if p != nil {
		d.PropertyName = p.Name
		addr := []string{}
		for _, part := range []string{p.AddressLine, p.City, strings.TrimSpace(p.StateCode + " " + p.PostalCode)} {
			if part != "" {
				addr = append(addr, part)
			}
		}
		d.PropertyAddress = strings.Join(addr, ", ")
		d.Jurisdiction = p.StateCode
		if p.City != "" {
			d.Jurisdiction = p.City + ", " + p.StateCode
		}
	}
	return d
}

// RenderDocument renders a text document of the given type.
func RenderDocument(docType disposition.DocumentType, c *disposition.Case, p *disposition.Property, rs *jurisdiction.RuleSet, now time.Time) ([]byte, error) {
	name, ok := templateNames[docType]
	if !ok {
		return nil, errors.New(errors.ErrCodeDocumentTypeInvalid, "document type cannot be generated").WithDetail(string(docType))
	}
	var buf bytes.Buffer
	if err := documentTemplates.ExecuteTemplate(&buf, name, buildLetterData(c, p, rs, now)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRenderFailed, "failed to render document").WithDetail(string(docType))
	}
	return buf.Bytes(), nil
}

// storeDocument uploads data and records the document with its audit event
// in one transaction. complete is run inside the transaction to tick the
// matching checklist item. The object is removed again if the records
// cannot be written.
func (s *caseServiceImpl) storeDocument(ctx context.Context, c *disposition.Case, docType disposition.DocumentType, ext, contentType string, data []byte,
	action disposition.AuditAction, actor string, complete func(tx disposition.Repository, now time.Time) error) (*disposition.Document, error) {

	now := s.now()
	doc := &disposition.Document{
		ID:          uuid.NewString(),
		CaseID:      c.ID,
		Type:        docType,
		ContentType: contentType,
		CreatedAt:   now.UTC(),
	}
	doc.ObjectKey = minio.ObjectKey(c.ID, string(docType), doc.ID, ext)

	info, err := s.store.Put(ctx, &minio.PutRequest{
		Key:         doc.ObjectKey,
		Data:        data,
		ContentType: contentType,
		Metadata:    map[string]string{"case-id": c.ID, "document-type": string(docType)},
	})
	if err != nil {
		return nil, err
	}
	doc.Size = info.Size

	ev := disposition.NewAuditEvent(c.ID, action,
		fmt.Sprintf("%s generated", strings.ReplaceAll(strings.ToLower(string(docType)), "_", " ")), actor,
		map[string]any{"document_id": doc.ID, "object_key": doc.ObjectKey, "size": doc.Size}, now)

	err = s.repo.WithTx(ctx, func(tx disposition.Repository) error {
		if err := tx.AddDocument(ctx, doc); err != nil {
			return err
		}
		if complete != nil {
			if err := complete(tx, now); err != nil {
				return err
			}
		}
		return tx.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), doc.ObjectKey); delErr != nil {
			s.logger.Warn("Failed to remove orphaned document", logging.String("key", doc.ObjectKey), logging.Err(delErr))
		}
		return nil, err
	}

	s.metrics.DocumentsGeneratedTotal.WithLabelValues(string(docType)).Inc()
	s.logger.Info("Document stored", logging.CaseID(c.ID),
		logging.String("document_id", doc.ID), logging.String("type", string(docType)), logging.Int64("size", doc.Size))
	s.publishAudit(ctx, ev)
	return doc, nil
}

func (s *caseServiceImpl) GenerateDocument(ctx context.Context, userID, caseID string, docType disposition.DocumentType) (*disposition.Document, error) {
	docType = disposition.DocumentType(strings.ToUpper(strings.TrimSpace(string(docType))))
	if _, ok := templateNames[docType]; !ok {
		return nil, errors.New(errors.ErrCodeDocumentTypeInvalid, "document type cannot be generated").WithDetail(string(docType))
	}
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	prop, err := s.repo.GetProperty(ctx, c.PropertyID)
	if err != nil {
		return nil, err
	}
	rs, err := s.rules.GetRuleSet(ctx, c.RuleSetID)
	if err != nil {
		return nil, err
	}
	data, err := RenderDocument(docType, c, prop, rs, s.now())
	if err != nil {
		return nil, err
	}

	label := checklistLabels[docType]
	return s.storeDocument(ctx, c, docType, "txt", textContentType, data, disposition.ActionDocumentGenerated, userID,
		func(tx disposition.Repository, now time.Time) error {
			item := disposition.FindChecklistItem(c.Checklist, label)
			if item == nil || !item.Complete(now.UTC()) {
				return nil
			}
			return tx.UpdateChecklistItem(ctx, item)
		})
}

// ProofPacket is the manifest exported as a PROOF_PACKET document.
type ProofPacket struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Case        *CaseDetail               `json:"case"`
	Property    *disposition.Property     `json:"property,omitempty"`
	RuleSet     *jurisdiction.RuleSet     `json:"rule_set"`
	Readiness   *readiness.Report         `json:"readiness"`
	AuditTrail  []*disposition.AuditEvent `json:"audit_trail"`
}

func (s *caseServiceImpl) ExportProofPacket(ctx context.Context, userID, caseID string) (*DocumentLink, error) {
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	if labels := disposition.Blockers(c.Checklist, false); len(labels) > 0 {
		return nil, errors.Newf(errors.CodeBlocked, "%d checklist item(s) must be completed before export", len(labels)).
			WithDetail(strings.Join(labels, "; ")).
			WithField("blockers", labels)
	}
	prop, err := s.repo.GetProperty(ctx, c.PropertyID)
	if err != nil {
		return nil, err
	}
	rs, err := s.rules.GetRuleSet(ctx, c.RuleSetID)
	if err != nil {
		return nil, err
	}
	trail, err := s.fullAuditTrail(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	packet := &ProofPacket{
		GeneratedAt: now.UTC(),
		Case:        s.detail(c),
		Property:    prop,
		RuleSet:     rs,
		Readiness:   readiness.Evaluate(readiness.Input{Case: c, ItemizationRequired: rs.ItemizationRequired, Now: now}),
		AuditTrail:  trail,
	}
	data, err := json.MarshalIndent(packet, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode proof packet")
	}

	doc, err := s.storeDocument(ctx, c, disposition.DocumentProofPacket, "json", jsonContentType, data,
		disposition.ActionProofPacketExported, userID, nil)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, doc, fmt.Sprintf("proof-packet-%s.json", c.ID))
}

// fullAuditTrail pages through every audit event of a case, oldest first.
func (s *caseServiceImpl) fullAuditTrail(ctx context.Context, caseID string) ([]*disposition.AuditEvent, error) {
	var all []*disposition.AuditEvent
	for offset := 0; ; offset += auditPageSize {
		page, total, err := s.repo.ListAuditEvents(ctx, caseID, auditPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < auditPageSize || int64(len(all)) >= total {
			break
		}
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (s *caseServiceImpl) link(ctx context.Context, doc *disposition.Document, filename string) (*DocumentLink, error) {
	u, err := s.store.PresignedURL(ctx, doc.ObjectKey, filename, s.presignExpiry)
	if err != nil {
		return nil, err
	}
	return &DocumentLink{Document: doc, URL: u, ExpiresAt: s.now().Add(s.presignExpiry).UTC()}, nil
}

func (s *caseServiceImpl) GetDocumentURL(ctx context.Context, userID, caseID, documentID string) (*DocumentLink, error) {
	c, err := loadOwned(ctx, s.repo, userID, caseID)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.GetDocument(ctx, c.ID, documentID)
	if err != nil {
		return nil, err
	}
	ext := "txt"
	if doc.ContentType == jsonContentType {
		ext = "json"
	}
	filename := fmt.Sprintf("%s-%s.%s", strings.ReplaceAll(strings.ToLower(string(doc.Type)), "_", "-"), c.ID[:min(8, len(c.ID))], ext)
	return s.link(ctx, doc, filename)
}
