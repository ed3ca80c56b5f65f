package disposition

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names what an audit event records.
type AuditAction string

const (
	ActionCaseCreated         AuditAction = "CASE_CREATED"
	ActionCaseUpdated         AuditAction = "CASE_UPDATED"
	ActionStatusChanged       AuditAction = "STATUS_CHANGED"
	ActionDeductionAdded      AuditAction = "DEDUCTION_ADDED"
	ActionDeductionRemoved    AuditAction = "DEDUCTION_REMOVED"
	ActionChecklistUpdated    AuditAction = "CHECKLIST_UPDATED"
	ActionDocumentGenerated   AuditAction = "DOCUMENT_GENERATED"
	ActionProofPacketExported AuditAction = "PROOF_PACKET_EXPORTED"
	ActionEmailRequested      AuditAction = "EMAIL_REQUESTED"
)

// AuditEvent is an append-only log entry. Once stored it is never changed.
type AuditEvent struct {
	ID          string         `json:"id"`
	CaseID      string         `json:"case_id"`
	Action      AuditAction    `json:"action"`
	Description string         `json:"description"`
	Actor       string         `json:"actor"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewAuditEvent stamps a new event for caseID.
func NewAuditEvent(caseID string, action AuditAction, description, actor string, metadata map[string]any, now time.Time) *AuditEvent {
	if actor == "" {
		actor = "system"
	}
	return &AuditEvent{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		Action:      action,
		Description: description,
		Actor:       actor,
		Metadata:    metadata,
		CreatedAt:   now.UTC(),
	}
}
