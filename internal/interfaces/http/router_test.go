package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/application/cases"
	"github.com/landlordcomply/landlordcomply/internal/application/notification"
	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/auth"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/handlers"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/internal/testutil"
	"github.com/landlordcomply/landlordcomply/internal/testutil/mocks"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type apiHarness struct {
	router *gin.Engine
	tokens *auth.TokenService
	store  *mocks.DocumentStore
	pub    *mocks.Publisher
}

func newAPIHarness(t *testing.T, limiter *middleware.FixedWindowLimiter) *apiHarness {
	t.Helper()
	log := logging.NewNopLogger()

	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		Issuer:    "landlordcomply",
		Audience:  "landlordcomply-api",
		TokenTTL:  time.Hour,
	})
	require.NoError(t, err)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, log)
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	h := &apiHarness{tokens: tokens, store: &mocks.DocumentStore{}, pub: mocks.NewRecordingPublisher()}
	repo := testutil.NewMemCaseRepo()
	rules := testutil.NewStaticRules()
	caseSvc := cases.NewService(repo, rules, h.store, log,
		cases.WithPublisher(h.pub), cases.WithClock(func() time.Time { return testNow }))

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rl := redis.NewRateLimiter(redis.NewClientFromUniversal(rdb, "test:", log))
	mailSvc := notification.NewService(caseSvc, repo, rl, h.pub, log, notification.WithLimit(2, time.Hour))

	h.router = NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler("test",
			handlers.NamedCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })),
		CalculatorHandler:   handlers.NewCalculatorHandler(rules, func() time.Time { return testNow }),
		JurisdictionHandler: nil,
		PropertyHandler:     handlers.NewPropertyHandler(caseSvc),
		CaseHandler:         handlers.NewCaseHandler(caseSvc),
		DocumentHandler:     handlers.NewDocumentHandler(caseSvc, mailSvc),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokens, log),
		RateLimiter:         limiter,
		CORS:                middleware.DefaultCORSConfig(),
		Logging:             middleware.DefaultLoggingConfig(),
		Logger:              log,
		Metrics:             metrics,
		MetricsCollector:    collector,
		Mode:                gin.TestMode,
	})
	return h
}

func (h *apiHarness) token(t *testing.T, userID string) string {
	t.Helper()
	raw, _, err := h.tokens.Issue(userID, userID+"@example.com", 0)
	require.NoError(t, err)
	return raw
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[middleware.ErrorResponse](t, w).Error.Code
}

func TestRouter_Probes(t *testing.T) {
	h := newAPIHarness(t, nil)

	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode[handlers.LivenessResponse](t, w).Status)

	w = h.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	ready := decode[handlers.ReadinessResponse](t, w)
	assert.Equal(t, "healthy", ready.Components["redis"].Status)

	w = h.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestRouter_Fallbacks(t *testing.T) {
	h := newAPIHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/v2/anything", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(errors.ErrCodeNotFound), errorCode(t, w))

	w = h.do(t, http.MethodDelete, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/jurisdictions", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "nil handlers register no routes")
}

func TestRouter_AuthenticatedRoutesRequireToken(t *testing.T) {
	h := newAPIHarness(t, nil)
	for _, path := range []string{"/api/v1/properties", "/api/v1/cases", "/api/v1/cases/c-1/readiness"} {
		w := h.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, string(errors.ErrCodeUnauthorized), errorCode(t, w))
	}

	w := h.do(t, http.MethodPost, "/api/v1/calculator/deadline", "", gin.H{"move_out_date": "2024-03-01", "deadline_days": 21})
	assert.Equal(t, http.StatusOK, w.Code, "calculators are public")
}

func TestRouter_CaseLifecycle(t *testing.T) {
	h := newAPIHarness(t, nil)
	owner := h.token(t, "user-1")

	w := h.do(t, http.MethodPost, "/api/v1/properties", owner, gin.H{
		"name": "Maple Apartments #4", "address_line": "12 Maple St", "city": "Tacoma", "state_code": "wa",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	propertyID := decode[map[string]any](t, w)["id"].(string)

	w = h.do(t, http.MethodPost, "/api/v1/cases", owner, gin.H{
		"property_id":    propertyID,
		"move_out_date":  "2024-03-01",
		"deposit_amount": 1500,
		"tenant_name":    "Jordan Lee",
		"tenant_email":   "jordan@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[cases.CaseDetail](t, w)
	caseID := created.ID
	assert.Equal(t, "2024-03-31", created.DueDate.Format("2006-01-02"))
	assert.Equal(t, 21, created.Deadline.DaysLeft)
	assert.Len(t, h.pub.Events("case.created"), 1)

	w = h.do(t, http.MethodGet, "/api/v1/cases?status=active", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[cases.CaseList](t, w).Total)

	w = h.do(t, http.MethodGet, "/api/v1/cases?status=bogus", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/cases/"+caseID+"/deductions", owner, gin.H{
		"description": "Carpet cleaning", "category": "cleaning", "amount": 150.255, "has_evidence": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/v1/cases/"+caseID, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[cases.CaseDetail](t, w)
	assert.Equal(t, 150.26, detail.TotalDeductions)
	assert.Equal(t, 1349.74, detail.RefundAmount)

	w = h.do(t, http.MethodPost, "/api/v1/cases/"+caseID+"/transitions", owner, gin.H{"to": "PENDING_SEND"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(errors.ErrCodeBlocked), errorCode(t, w))

	w = h.do(t, http.MethodPost, "/api/v1/cases/"+caseID+"/transitions", owner, gin.H{"to": "SENT"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(errors.ErrCodeMissingPrecondition), errorCode(t, w))

	w = h.do(t, http.MethodPost, "/api/v1/cases/"+caseID+"/transitions", owner, gin.H{"to": "SENT", "delivery_method": "pigeon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/cases/"+caseID+"/readiness", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[map[string]any](t, w)["ready"].(bool))

	w = h.do(t, http.MethodGet, "/api/v1/cases/"+caseID+"/audit", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[cases.AuditPage](t, w).Total)

	stranger := h.token(t, "user-2")
	w = h.do(t, http.MethodGet, "/api/v1/cases/"+caseID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_DocumentsAndEmail(t *testing.T) {
	h := newAPIHarness(t, nil)
	owner := h.token(t, "user-1")
	h.store.AcceptPuts()
	h.store.On("PresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://minio.local/signed", nil)

	w := h.do(t, http.MethodPost, "/api/v1/properties", owner, gin.H{"name": "Unit 2", "city": "Seattle", "state_code": "WA"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do(t, http.MethodPost, "/api/v1/cases", owner, gin.H{
		"property_id":    decode[map[string]any](t, w)["id"],
		"move_out_date":  "2024-03-01",
		"deposit_amount": 1000,
		"tenant_name":    "Sam Ortiz",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	caseID := decode[cases.CaseDetail](t, w).ID

	w = h.do(t, http.MethodPost, "/api/v1/cases/"+caseID+"/documents", owner, gin.H{"type": "notice_letter"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	docID := decode[map[string]any](t, w)["id"].(string)

	w = h.do(t, http.MethodPost, "/api/v1/cases/"+caseID+"/documents", owner, gin.H{"type": "brochure"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, fmt.Sprintf("/api/v1/cases/%s/documents/%s/url", caseID, docID), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://minio.local/signed", decode[cases.DocumentLink](t, w).URL)

	emailPath := fmt.Sprintf("/api/v1/cases/%s/documents/%s/email", caseID, docID)
	for i := 0; i < 2; i++ {
		w = h.do(t, http.MethodPost, emailPath, owner, gin.H{"email": "sam@example.com"})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	}
	w = h.do(t, http.MethodPost, emailPath, owner, gin.H{"email": "sam@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = h.do(t, http.MethodPost, emailPath, owner, gin.H{"email": "not an address"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Calculators(t *testing.T) {
	h := newAPIHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/calculator/deadline", "", gin.H{"move_out_date": "2024-03-01", "state": "WA"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dl := decode[handlers.DeadlineResponse](t, w)
	assert.Equal(t, 30, dl.DeadlineDays)
	assert.Equal(t, []string{"RCW 59.18.280"}, dl.Citations)

	w = h.do(t, http.MethodPost, "/api/v1/calculator/penalty", "", gin.H{"deposit_amount": 1200, "state": "WA"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pen := decode[handlers.PenaltyResponse](t, w)
	assert.Equal(t, 2400.0, pen.MaxAmount)
	assert.Equal(t, 1, pen.Unresolvable)

	w = h.do(t, http.MethodPost, "/api/v1/calculator/deadline", "", gin.H{"move_out_date": "2024-03-01", "state": "OR"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(errors.ErrCodeJurisdictionNotFound), errorCode(t, w))
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := middleware.NewFixedWindowLimiter(2, time.Minute, 0)
	h := newAPIHarness(t, limiter)

	body := gin.H{"amount": 1000, "age_months": 30}
	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodPost, "/api/v1/calculator/proration", "", body)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := h.do(t, http.MethodPost, "/api/v1/calculator/proration", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, "probes are not rate limited")
}
