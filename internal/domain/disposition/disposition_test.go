package disposition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	apperrors "github.com/landlordcomply/landlordcomply/pkg/errors"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func resolution(itemize bool, rate *float64) *jurisdiction.Resolution {
	return &jurisdiction.Resolution{
		Jurisdiction: &jurisdiction.Jurisdiction{ID: "wa", StateCode: "WA", Active: true},
		RuleSet: &jurisdiction.RuleSet{
			ID:                  "wa-1",
			JurisdictionID:      "wa",
			Version:             1,
			ReturnDeadlineDays:  21,
			InterestRequired:    rate != nil,
			InterestRate:        rate,
			ItemizationRequired: itemize,
		},
	}
}

func newTestCase(t *testing.T) *Case {
	t.Helper()
	prop := &Property{ID: "p1", UserID: "u1", StateCode: "WA"}
	c, _, err := NewCase(NewCaseParams{
		UserID:        "u1",
		Property:      prop,
		Resolution:    resolution(true, nil),
		MoveOutDate:   date("2024-02-15"),
		DepositAmount: 1500,
		TenantName:    "Jordan Reyes",
	}, now)
	require.NoError(t, err)
	return c
}

func completeAll(c *Case, except ...string) {
	skip := map[string]bool{}
	for _, e := range except {
		skip[e] = true
	}
	for _, it := range c.Checklist {
		if !skip[it.Label] {
			it.Complete(now)
		}
	}
}

func TestNewCase(t *testing.T) {
	rate := 0.01
	start := date("2023-01-01")
	end := date("2024-01-01")
	prop := &Property{ID: "p1", UserID: "u1"}

	c, ev, err := NewCase(NewCaseParams{
		UserID:         "u1",
		Property:       prop,
		Resolution:     resolution(false, &rate),
		MoveOutDate:    date("2024-02-15"),
		LeaseStartDate: &start,
		LeaseEndDate:   &end,
		DepositAmount:  2000,
		TenantName:     "  Jordan  ",
		Actor:          "u1",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, date("2024-03-07"), c.DueDate)
	assert.Equal(t, 20.0, c.DepositInterest)
	assert.Equal(t, ForwardingUnknown, c.ForwardingAddressStatus)
	require.NotNil(t, c.PrimaryTenant())
	assert.Equal(t, "Jordan", c.PrimaryTenant().Name)
	assert.Len(t, c.Checklist, 8)

	item := FindChecklistItem(c.Checklist, LabelItemizedStatement)
	require.NotNil(t, item)
	assert.False(t, item.BlocksExport, "itemization not required by these rules")

	assert.Equal(t, ActionCaseCreated, ev.Action)
	assert.Equal(t, c.ID, ev.CaseID)
	assert.Equal(t, "u1", ev.Actor)
}

func TestNewCase_Validation(t *testing.T) {
	prop := &Property{ID: "p1", UserID: "u1"}
	base := NewCaseParams{UserID: "u1", Property: prop, Resolution: resolution(true, nil), MoveOutDate: date("2024-02-15"), DepositAmount: 100, TenantName: "A"}

	tests := map[string]struct {
		mutate func(p *NewCaseParams)
		code   apperrors.ErrorCode
	}{
		"other owner":     {func(p *NewCaseParams) { p.UserID = "u2" }, apperrors.ErrCodePropertyNotFound},
		"no move out":     {func(p *NewCaseParams) { p.MoveOutDate = time.Time{} }, apperrors.CodeInvalidParam},
		"negative":        {func(p *NewCaseParams) { p.DepositAmount = -1 }, apperrors.CodeInvalidParam},
		"blank tenant":    {func(p *NewCaseParams) { p.TenantName = " " }, apperrors.CodeInvalidParam},
		"no rules":        {func(p *NewCaseParams) { p.Resolution = nil }, apperrors.CodeInvalidParam},
		"lease inverted": {func(p *NewCaseParams) {
			s, e := date("2024-01-01"), date("2023-01-01")
			p.LeaseStartDate, p.LeaseEndDate = &s, &e
		}, apperrors.CodeInvalidParam},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, _, err := NewCase(p, now)
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestCase_Totals(t *testing.T) {
	c := newTestCase(t)
	c.DepositAmount = 1000
	c.Deductions = []*Deduction{{Amount: 1000.10}, {Amount: 499.90}}
	assert.Equal(t, 1500.0, c.TotalDeductions())
	assert.Equal(t, -500.0, c.RefundAmount())
}

func TestTransition_InvalidEdges(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{StatusSent, StatusActive},
		{StatusSent, StatusPendingSend},
		{StatusClosed, StatusActive},
		{StatusClosed, StatusSent},
		{StatusActive, StatusActive},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			c := newTestCase(t)
			c.Status = tt.from
			_, err := c.TransitionTo(TransitionRequest{To: tt.to, DeliveryMethod: DeliveryEmail}, now)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
			assert.Contains(t, err.Error(), string(tt.from))
			assert.Contains(t, err.Error(), string(tt.to))
			assert.Equal(t, tt.from, c.Status)
		})
	}
}

func TestTransition_SentRequiresDeliveryMethod(t *testing.T) {
	c := newTestCase(t)
	completeAll(c)

	_, err := c.TransitionTo(TransitionRequest{To: StatusSent}, now)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMissingPrecondition))
	assert.Equal(t, StatusActive, c.Status)

	c.DeliveryMethod = DeliveryCertifiedMail
	res, err := c.TransitionTo(TransitionRequest{To: StatusSent}, now)
	require.NoError(t, err)
	assert.Equal(t, DeliveryCertifiedMail, c.DeliveryMethod)
	assert.Equal(t, StatusSent, res.To)
}

func TestTransition_PendingSendBlocked(t *testing.T) {
	c := newTestCase(t)
	completeAll(c, LabelNoticeLetter)

	_, err := c.TransitionTo(TransitionRequest{To: StatusPendingSend}, now)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBlocked))

	var ae *apperrors.AppError
	require.True(t, apperrors.As(err, &ae))
	assert.Equal(t, []string{LabelNoticeLetter}, ae.Fields["blockers"])
	assert.Equal(t, StatusActive, c.Status)
}

func TestTransition_PendingSendCountsSendTimeItems(t *testing.T) {
	c := newTestCase(t)
	completeAll(c, LabelSendToTenant)

	_, err := c.TransitionTo(TransitionRequest{To: StatusPendingSend}, now)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBlocked), "send-time items only excluded for SENT")
}

func TestTransition_SentExcludesAndCompletesSendTimeItems(t *testing.T) {
	c := newTestCase(t)
	completeAll(c, LabelDeliveryMethod, LabelSendToTenant, LabelProofOfDelivery)
	sentAt := date("2024-02-20")

	res, err := c.TransitionTo(TransitionRequest{
		To:             StatusSent,
		DeliveryMethod: DeliveryCertifiedMail,
		SentAt:         &sentAt,
		TrackingNumber: "9400 1000",
		ProofIDs:       []string{"receipt-1"},
		Actor:          "u1",
	}, now)
	require.NoError(t, err)

	assert.Len(t, res.Completed, 3)
	assert.Empty(t, Blockers(c.Checklist, false))
	assert.Equal(t, sentAt, *c.SentAt)
	assert.Equal(t, "9400 1000", c.TrackingNumber)
	assert.Equal(t, []string{"receipt-1"}, c.ProofIDs)

	require.NotNil(t, res.Event)
	assert.Equal(t, ActionStatusChanged, res.Event.Action)
	assert.Equal(t, "ACTIVE", res.Event.Metadata["from"])
	assert.Equal(t, "SENT", res.Event.Metadata["to"])
	assert.Equal(t, "CERTIFIED_MAIL", res.Event.Metadata["delivery_method"])
}

func TestTransition_SentStillBlockedByOtherItems(t *testing.T) {
	c := newTestCase(t)
	completeAll(c, LabelReviewDeductions, LabelSendToTenant)

	_, err := c.TransitionTo(TransitionRequest{To: StatusSent, DeliveryMethod: DeliveryEmail}, now)
	var ae *apperrors.AppError
	require.True(t, apperrors.As(err, &ae))
	assert.Equal(t, apperrors.CodeBlocked, ae.Code)
	assert.Equal(t, []string{LabelReviewDeductions}, ae.Fields["blockers"])
}

func TestTransition_CheckOrder(t *testing.T) {
	c := newTestCase(t)
	// Blockers and no delivery method: the missing method is reported first.
	_, err := c.TransitionTo(TransitionRequest{To: StatusSent}, now)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMissingPrecondition))

	c.Status = StatusClosed
	_, err = c.TransitionTo(TransitionRequest{To: StatusSent}, now)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
}

func TestTransition_Close(t *testing.T) {
	c := newTestCase(t)
	res, err := c.TransitionTo(TransitionRequest{To: StatusClosed, ClosureReason: "tenant abandoned deposit"}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, c.Status)
	require.NotNil(t, c.ClosedAt)
	assert.Equal(t, "tenant abandoned deposit", c.ClosureReason)
	assert.Equal(t, "tenant abandoned deposit", res.Event.Metadata["closure_reason"])
	assert.True(t, c.Status.IsTerminal())
	assert.Empty(t, AllowedTransitions(c.Status))
}

func TestTransition_PendingSendBackToActive(t *testing.T) {
	c := newTestCase(t)
	c.Status = StatusPendingSend
	_, err := c.TransitionTo(TransitionRequest{To: StatusActive}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)
}

func TestTransition_UnknownDeliveryMethod(t *testing.T) {
	c := newTestCase(t)
	completeAll(c)
	_, err := c.TransitionTo(TransitionRequest{To: StatusSent, DeliveryMethod: "PIGEON"}, now)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" pending_send ")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSend, s)

	_, err = ParseStatus("ARCHIVED")
	assert.Error(t, err)
}

func TestIsSendTimeItem(t *testing.T) {
	assert.True(t, IsSendTimeItem("Send to tenant"))
	assert.True(t, IsSendTimeItem("RECORD PROOF OF DELIVERY"))
	assert.True(t, IsSendTimeItem("Select delivery method"))
	assert.False(t, IsSendTimeItem("Generate notice letter"))
}

func TestDefaultChecklist(t *testing.T) {
	items := DefaultChecklist("c1", true)
	require.Len(t, items, 8)
	for i, it := range items {
		assert.Equal(t, i, it.SortOrder)
		assert.Equal(t, "c1", it.CaseID)
		assert.False(t, it.Completed)
	}
	assert.True(t, FindChecklistItem(items, LabelItemizedStatement).BlocksExport)
	assert.False(t, FindChecklistItem(items, LabelDocumentCondition).BlocksExport)
	assert.False(t, FindChecklistItem(items, LabelForwardingAddress).BlocksExport)
}

func TestChecklistItem_CompleteReopen(t *testing.T) {
	it := &ChecklistItem{Label: "x", BlocksExport: true}
	assert.True(t, it.IsOutstandingBlocker())
	assert.True(t, it.Complete(now))
	assert.False(t, it.Complete(now))
	assert.Equal(t, now, *it.CompletedAt)
	assert.True(t, it.Reopen())
	assert.Nil(t, it.CompletedAt)
	assert.False(t, it.Reopen())
}

func TestNewDeduction(t *testing.T) {
	age, life := 84.0, 120.0
	d, err := NewDeduction("c1", NewDeductionParams{
		Description:      "Carpet replacement",
		Category:         "Flooring",
		Amount:           1200,
		RiskLevel:        RiskMedium,
		ItemAgeMonths:    &age,
		UsefulLifeMonths: &life,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 360.0, d.Amount)
	assert.Equal(t, 1200.0, *d.OriginalAmount)
	assert.Equal(t, "flooring", d.Category)

	d, err = NewDeduction("c1", NewDeductionParams{Description: "Paint", Amount: 600, ItemAgeMonths: &age}, now)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Amount, "84 months exceeds the default 60-month life")
	assert.Equal(t, RiskLow, d.RiskLevel)

	_, err = NewDeduction("c1", NewDeductionParams{Description: " ", Amount: 1}, now)
	assert.Error(t, err)
	_, err = NewDeduction("c1", NewDeductionParams{Description: "x", Amount: 1, RiskLevel: "EXTREME"}, now)
	assert.Error(t, err)
}

func TestForwardingAddressStatus(t *testing.T) {
	assert.True(t, ForwardingRefused.IsDocumented())
	assert.True(t, ForwardingRequested.IsDocumented())
	assert.False(t, ForwardingUnknown.IsDocumented())
	assert.True(t, ForwardingUnknown.IsValid())
	assert.False(t, ForwardingAddressStatus("MAYBE").IsValid())
}

func TestApplyCaseOptions(t *testing.T) {
	o := ApplyCaseOptions(WithLimit(500), WithStatus(StatusSent), WithOffset(-1))
	assert.Equal(t, 100, o.Limit)
	assert.Equal(t, StatusSent, o.Status)
	assert.Equal(t, 0, o.Offset)
}
