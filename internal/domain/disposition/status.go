package disposition

import (
	"fmt"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// Status is the lifecycle state of a case.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusPendingSend Status = "PENDING_SEND"
	StatusSent        Status = "SENT"
	StatusClosed      Status = "CLOSED"
)

var validTransitions = map[Status][]Status{
	StatusActive:      {StatusPendingSend, StatusSent, StatusClosed},
	StatusPendingSend: {StatusActive, StatusSent, StatusClosed},
	StatusSent:        {StatusClosed},
	StatusClosed:      {},
}

func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(validTransitions[s]) == 0
}

// IsOpen reports whether the accounting is still owed to the tenant.
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusPendingSend
}

// ParseStatus accepts any casing.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", errors.InvalidParam("unknown case status").WithDetail(s)
	}
	return st, nil
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the targets reachable from s.
func AllowedTransitions(s Status) []Status {
	out := make([]Status, len(validTransitions[s]))
	copy(out, validTransitions[s])
	return out
}

// TransitionRequest carries the target state and the optional metadata the
// target state records.
type TransitionRequest struct {
	To              Status         `json:"to"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method,omitempty"`
	SentAt          *time.Time     `json:"sent_at,omitempty"`
	TrackingNumber  string         `json:"tracking_number,omitempty"`
	DeliveryAddress string         `json:"delivery_address,omitempty"`
	ProofIDs        []string       `json:"proof_ids,omitempty"`
	ClosureReason   string         `json:"closure_reason,omitempty"`
	Actor           string         `json:"-"`
}

// TransitionResult describes a successful transition.
type TransitionResult struct {
	From Status
	To   Status
	// Completed holds the checklist items the transition auto-completed.
	Completed []*ChecklistItem
	Event     *AuditEvent
}

// TransitionTo moves the case to req.To, validating in order: the edge
// exists, a delivery method is known when sending, and no blocking checklist
// item is outstanding. The case and its checklist are mutated only on
// success.
func (c *Case) TransitionTo(req TransitionRequest, now time.Time) (*TransitionResult, error) {
	from := c.Status
	if !CanTransition(from, req.To) {
		return nil, errors.Newf(errors.CodeInvalidTransition, "cannot transition case from %s to %s", from, req.To).
			WithField("from", string(from)).
			WithField("to", string(req.To))
	}

	method := req.DeliveryMethod
	if req.To == StatusSent {
		if method == "" {
			method = c.DeliveryMethod
		}
		if method == "" {
			return nil, errors.New(errors.CodeMissingPrecondition, "a delivery method is required to mark the case as sent").
				WithField("field", "delivery_method")
		}
		if !method.IsValid() {
			return nil, errors.InvalidParam("unknown delivery method").WithDetail(string(method))
		}
	}

	if req.To == StatusPendingSend || req.To == StatusSent {
		if labels := Blockers(c.Checklist, req.To == StatusSent); len(labels) > 0 {
			return nil, errors.Newf(errors.CodeBlocked, "%d checklist item(s) must be completed first", len(labels)).
				WithDetail(strings.Join(labels, "; ")).
				WithField("blockers", labels)
		}
	}

	meta := map[string]any{"from": string(from), "to": string(req.To)}
	res := &TransitionResult{From: from, To: req.To}

	switch req.To {
	case StatusSent:
		sentAt := now.UTC()
		if req.SentAt != nil {
			sentAt = req.SentAt.UTC()
		}
		c.DeliveryMethod = method
		c.SentAt = &sentAt
		if req.TrackingNumber != "" {
			c.TrackingNumber = req.TrackingNumber
		}
		if req.DeliveryAddress != "" {
			c.DeliveryAddress = req.DeliveryAddress
		}
		if len(req.ProofIDs) > 0 {
			c.ProofIDs = append([]string(nil), req.ProofIDs...)
		}
		for _, it := range c.Checklist {
			if IsSendTimeItem(it.Label) && it.Complete(now) {
				res.Completed = append(res.Completed, it)
			}
		}
		meta["delivery_method"] = string(method)
		meta["sent_at"] = sentAt.Format(time.RFC3339)
		if c.TrackingNumber != "" {
			meta["tracking_number"] = c.TrackingNumber
		}
		if len(c.ProofIDs) > 0 {
			meta["proof_ids"] = c.ProofIDs
		}
	case StatusClosed:
		closedAt := now.UTC()
		c.ClosedAt = &closedAt
		c.ClosureReason = req.ClosureReason
		if req.ClosureReason != "" {
			meta["closure_reason"] = req.ClosureReason
		}
	}

	c.Status = req.To
	c.UpdatedAt = now.UTC()
	res.Event = NewAuditEvent(c.ID, ActionStatusChanged,
		fmt.Sprintf("Status changed from %s to %s", from, req.To), req.Actor, meta, now)
	return res, nil
}
