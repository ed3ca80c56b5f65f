package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/testutil"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

type mockJurisdictions struct {
	mock.Mock
	*testutil.StaticRules
}

func (m *mockJurisdictions) ListJurisdictions(ctx context.Context, opts ...jurisdiction.QueryOption) ([]*jurisdiction.Jurisdiction, int64, error) {
	o := jurisdiction.ApplyOptions(opts...)
	args := m.Called(o)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*jurisdiction.Jurisdiction), int64(args.Int(1)), args.Error(2)
}

func TestJurisdiction_List(t *testing.T) {
	svc := &mockJurisdictions{StaticRules: testutil.NewStaticRules()}
	wa := &jurisdiction.Jurisdiction{ID: "j-wa", StateCode: "WA", Coverage: jurisdiction.CoverageFull, Active: true}
	svc.On("ListJurisdictions", jurisdiction.QueryOptions{StateCode: "WA", ActiveOnly: true, Limit: 10, Offset: 5}).
		Return([]*jurisdiction.Jurisdiction{wa}, 6, nil)
	svc.On("ListJurisdictions", jurisdiction.QueryOptions{Limit: 50}).Return(nil, 0, nil)
	h := NewJurisdictionHandler(svc)

	w := perform(t, http.MethodGet, "/j", "/j?state=wa&active=true&limit=10&offset=5", h.List, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[JurisdictionList](t, w)
	assert.EqualValues(t, 6, resp.Total)
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Jurisdictions, 1)
	assert.Equal(t, "WA", resp.Jurisdictions[0].StateCode)

	w = perform(t, http.MethodGet, "/j", "/j", h.List, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"jurisdictions":[]`)

	w = perform(t, http.MethodGet, "/j", "/j?state=Washington", h.List, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJurisdiction_Resolve(t *testing.T) {
	h := NewJurisdictionHandler(&mockJurisdictions{StaticRules: testutil.NewStaticRules()})

	w := perform(t, http.MethodGet, "/r", "/r?state=WA&city=Tacoma", h.Resolve, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[jurisdiction.Resolution](t, w)
	assert.Equal(t, 30, res.RuleSet.ReturnDeadlineDays)

	w = perform(t, http.MethodGet, "/r", "/r?state=ID", h.Resolve, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeJurisdictionNotFound))

	w = perform(t, http.MethodGet, "/r", "/r", h.Resolve, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
