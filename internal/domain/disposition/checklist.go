package disposition

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChecklistItem is a labelled task. Incomplete items with BlocksExport set
// gate the PENDING_SEND and SENT transitions and proof packet export.
type ChecklistItem struct {
	ID           string     `json:"id"`
	CaseID       string     `json:"case_id"`
	Label        string     `json:"label"`
	BlocksExport bool       `json:"blocks_export"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	SortOrder    int        `json:"sort_order"`
}

// Default checklist labels.
const (
	LabelDocumentCondition = "Document move-out condition"
	LabelReviewDeductions  = "Review deductions and evidence"
	LabelNoticeLetter      = "Generate notice letter"
	LabelItemizedStatement = "Generate itemized statement"
	LabelForwardingAddress = "Confirm forwarding address"
	LabelDeliveryMethod    = "Select delivery method"
	LabelSendToTenant      = "Send to tenant"
	LabelProofOfDelivery   = "Record proof of delivery"
)

// sendTimeMarkers identify items the SENT transition itself satisfies.
var sendTimeMarkers = []string{"send to tenant", "record proof of delivery", "delivery method"}

// IsSendTimeItem reports whether label names a task completed by sending.
func IsSendTimeItem(label string) bool {
	l := strings.ToLower(label)
	for _, m := range sendTimeMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// IsOutstandingBlocker reports whether the item currently blocks export.
func (i *ChecklistItem) IsOutstandingBlocker() bool {
	return i.BlocksExport && !i.Completed
}

// Complete marks the item done at now. It is a no-op when already complete.
func (i *ChecklistItem) Complete(now time.Time) bool {
	if i.Completed {
		return false
	}
	i.Completed = true
	t := now
	i.CompletedAt = &t
	return true
}

// Reopen clears completion.
func (i *ChecklistItem) Reopen() bool {
	if !i.Completed {
		return false
	}
	i.Completed = false
	i.CompletedAt = nil
	return true
}

// DefaultChecklist builds the checklist a new case starts with. The
// itemized statement only blocks export where the jurisdiction requires one.
func DefaultChecklist(caseID string, itemizationRequired bool) []*ChecklistItem {
	specs := []struct {
		label  string
		blocks bool
	}{
		{LabelDocumentCondition, false},
		{LabelReviewDeductions, true},
		{LabelNoticeLetter, true},
		{LabelItemizedStatement, itemizationRequired},
		{LabelForwardingAddress, false},
		{LabelDeliveryMethod, true},
		{LabelSendToTenant, true},
		{LabelProofOfDelivery, true},
	}
	items := make([]*ChecklistItem, len(specs))
	for i, s := range specs {
		items[i] = &ChecklistItem{
			ID:           uuid.NewString(),
			CaseID:       caseID,
			Label:        s.label,
			BlocksExport: s.blocks,
			SortOrder:    i,
		}
	}
	return items
}

// Blockers returns the labels of outstanding blocking items. With
// excludeSendTime set, items satisfied by the SENT transition are skipped.
func Blockers(items []*ChecklistItem, excludeSendTime bool) []string {
	var labels []string
	for _, it := range items {
		if !it.IsOutstandingBlocker() {
			continue
		}
		if excludeSendTime && IsSendTimeItem(it.Label) {
			continue
		}
		labels = append(labels, it.Label)
	}
	return labels
}

// FindChecklistItem returns the first item whose label equals label,
// ignoring case, or nil.
func FindChecklistItem(items []*ChecklistItem, label string) *ChecklistItem {
	for _, it := range items {
		if strings.EqualFold(it.Label, label) {
			return it
		}
	}
	return nil
}
