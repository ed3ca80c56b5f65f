package cases

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/storage/minio"
	"github.com/landlordcomply/landlordcomply/internal/testutil"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

func TestRenderDocument(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	age, life := 24.0, 48.0
	original := 800.0
	c := &disposition.Case{
		ID:              "case-1",
		MoveOutDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		DepositAmount:   1000,
		DepositInterest: 12.5,
		DeliveryMethod:  disposition.DeliveryCertifiedMail,
		Tenants:         []*disposition.Tenant{{Name: "Jordan Lee", IsPrimary: true}},
		Deductions: []*disposition.Deduction{
			{Description: "Carpet", Category: "flooring", Amount: 400, OriginalAmount: &original, ItemAgeMonths: &age, UsefulLifeMonths: &life},
			{Description: "Cleaning", Category: "cleaning", Amount: 150},
		},
	}
	p := &disposition.Property{Name: "Maple #4", AddressLine: "12 Maple St", City: "Tacoma", StateCode: "WA", PostalCode: "98401"}
	rs := testutil.WARuleSet("j-wa")

	t.Run("notice letter", func(t *testing.T) {
		out, err := RenderDocument(disposition.DocumentNoticeLetter, c, p, rs, now)
		require.NoError(t, err)
		text := string(out)
		assert.Contains(t, text, "To: Jordan Lee")
		assert.Contains(t, text, "Maple #4, 12 Maple St, Tacoma, WA 98401")
		assert.Contains(t, text, "Amount refunded to tenant:  $462.50")
		assert.Contains(t, text, "30-day period required\nin Tacoma, WA (due March 31, 2024)")
		assert.Contains(t, text, "Authority: RCW 59.18.280")
		assert.Contains(t, text, "Delivered by: certified mail")
		assert.Contains(t, text, "2 deduction(s)")
	})

	t.Run("itemized statement", func(t *testing.T) {
		out, err := RenderDocument(disposition.DocumentItemizedStatement, c, p, rs, now)
		require.NoError(t, err)
		text := string(out)
		assert.Contains(t, text, "1. Carpet [flooring]")
		assert.Contains(t, text, "Prorated from $800.00 for an item 24 months old with a useful life of 48 months")
		assert.Contains(t, text, "2. Cleaning [cleaning]")
		assert.Contains(t, text, "Total deductions:           $550.00")
	})

	t.Run("balance owed", func(t *testing.T) {
		owing := *c
		owing.Deductions = []*disposition.Deduction{{Description: "Roof", Category: "other", Amount: 1500}}
		out, err := RenderDocument(disposition.DocumentNoticeLetter, &owing, p, rs, now)
		require.NoError(t, err)
		assert.Contains(t, string(out), "Balance owed by tenant:     $487.50")
		assert.NotContains(t, string(out), "refunded")
	})

	t.Run("proof packet is not a template", func(t *testing.T) {
		_, err := RenderDocument(disposition.DocumentProofPacket, c, p, rs, now)
		assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentTypeInvalid))
	})
}

func TestGenerateDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and completes the checklist item", func(t *testing.T) {
		f := newFixture(t)
		c := f.openCase(t)
		var stored *minio.PutRequest
		f.store.On("Put", mock.Anything, mock.Anything).Return(func(_ context.Context, obj *minio.PutRequest) *minio.ObjectInfo {
			stored = obj
			return &minio.ObjectInfo{Key: obj.Key, Size: int64(len(obj.Data))}
		}, nil).Once()

		doc, err := f.svc.GenerateDocument(ctx, owner, c.ID, "notice_letter")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, disposition.DocumentNoticeLetter, doc.Type)
		assert.Equal(t, stored.Key, doc.ObjectKey)
		assert.True(t, strings.HasPrefix(doc.ObjectKey, "cases/"+c.ID+"/"), doc.ObjectKey)
		assert.Equal(t, int64(len(stored.Data)), doc.Size)
		assert.Contains(t, string(stored.Data), "Jordan Lee")
		assert.Equal(t, c.ID, stored.Metadata["case-id"])

		got, err := f.svc.GetCase(ctx, owner, c.ID)
		require.NoError(t, err)
		assert.True(t, got.HasDocument(disposition.DocumentNoticeLetter))
		assert.True(t, disposition.FindChecklistItem(got.Checklist, disposition.LabelNoticeLetter).Completed)
		assert.Contains(t, f.repo.AuditActions(c.ID), disposition.ActionDocumentGenerated)
		f.store.AssertExpectations(t)
	})

	t.Run("unsupported type", func(t *testing.T) {
		f := newFixture(t)
		c := f.openCase(t)
		_, err := f.svc.GenerateDocument(ctx, owner, c.ID, "PROOF_PACKET")
		assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentTypeInvalid))
		_, err = f.svc.GenerateDocument(ctx, owner, c.ID, "lease")
		assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentTypeInvalid))
		f.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	})

	t.Run("storage failure records nothing", func(t *testing.T) {
		f := newFixture(t)
		c := f.openCase(t)
		f.store.On("Put", mock.Anything, mock.Anything).Return(nil, errors.New(errors.ErrCodeStorageError, "bucket unavailable")).Once()

		_, err := f.svc.GenerateDocument(ctx, owner, c.ID, disposition.DocumentNoticeLetter)
		assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))

		got, err := f.svc.GetCase(ctx, owner, c.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Documents)
	})

	t.Run("record failure removes the object", func(t *testing.T) {
		f := newFixture(t)
		c := f.openCase(t)
		f.store.AcceptPuts()
		f.store.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "cases/"+c.ID+"/")
		})).Return(nil).Once()
		f.repo.FailOn["AddDocument"] = errors.New(errors.ErrCodeDatabaseError, "insert failed")

		_, err := f.svc.GenerateDocument(ctx, owner, c.ID, disposition.DocumentItemizedStatement)
		assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
		f.store.AssertExpectations(t)

		got, err := f.svc.GetCase(ctx, owner, c.ID)
		require.NoError(t, err)
		assert.False(t, disposition.FindChecklistItem(got.Checklist, disposition.LabelItemizedStatement).Completed)
	})

	t.Run("stranger", func(t *testing.T) {
		f := newFixture(t)
		c := f.openCase(t)
		_, err := f.svc.GenerateDocument(ctx, stranger, c.ID, disposition.DocumentNoticeLetter)
		assert.True(t, errors.IsCode(err, errors.ErrCodeCaseNotFound))
	})
}

func TestExportProofPacket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.openCase(t)

	_, err := f.svc.ExportProofPacket(ctx, owner, c.ID)
	require.True(t, errors.IsCode(err, errors.ErrCodeBlocked))
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields["blockers"], disposition.LabelProofOfDelivery)

	f.completeAll(t, c.ID)

	var packet []byte
	f.store.On("Put", mock.Anything, mock.Anything).Return(func(_ context.Context, obj *minio.PutRequest) *minio.ObjectInfo {
		packet = obj.Data
		return &minio.ObjectInfo{Key: obj.Key, Size: int64(len(obj.Data))}
	}, nil).Once()
	f.store.On("PresignedURL", mock.Anything, mock.Anything, "proof-packet-"+c.ID+".json", defaultPresignExpiry).
		Return("https://minio.local/signed", nil).Once()

	link, err := f.svc.ExportProofPacket(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/signed", link.URL)
	assert.Equal(t, f.now.Add(defaultPresignExpiry), link.ExpiresAt)
	assert.Equal(t, disposition.DocumentProofPacket, link.Document.Type)
	assert.Equal(t, jsonContentType, link.Document.ContentType)

	var decoded struct {
		Case struct {
			ID string `json:"id"`
		} `json:"case"`
		AuditTrail []struct {
			Action string `json:"action"`
		} `json:"audit_trail"`
		Readiness struct {
			Total int `json:"total"`
		} `json:"readiness"`
	}
	require.NoError(t, json.Unmarshal(packet, &decoded))
	assert.Equal(t, c.ID, decoded.Case.ID)
	assert.Equal(t, 11, decoded.Readiness.Total)
	require.NotEmpty(t, decoded.AuditTrail)
	assert.Equal(t, string(disposition.ActionCaseCreated), decoded.AuditTrail[0].Action, "trail is oldest first")

	actions := f.repo.AuditActions(c.ID)
	assert.Equal(t, disposition.ActionProofPacketExported, actions[len(actions)-1])
	f.store.AssertExpectations(t)
}

func TestGetDocumentURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithPresignExpiry(time.Hour))
	c := f.openCase(t)
	f.store.AcceptPuts()

	doc, err := f.svc.GenerateDocument(ctx, owner, c.ID, disposition.DocumentNoticeLetter)
	require.NoError(t, err)

	f.store.On("PresignedURL", mock.Anything, doc.ObjectKey, "notice-letter-"+c.ID[:8]+".txt", time.Hour).
		Return("https://minio.local/letter", nil).Once()
	link, err := f.svc.GetDocumentURL(ctx, owner, c.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/letter", link.URL)
	assert.Equal(t, f.now.Add(time.Hour), link.ExpiresAt)

	_, err = f.svc.GetDocumentURL(ctx, owner, c.ID, "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentNotFound))

	_, err = f.svc.GetDocumentURL(ctx, stranger, c.ID, doc.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseNotFound))
}
