package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, "test-token", opts...)
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}

type testLogger struct {
	count int32
}

func (l *testLogger) Debugf(string, ...interface{}) { atomic.AddInt32(&l.count, 1) }
func (l *testLogger) Infof(string, ...interface{})  { atomic.AddInt32(&l.count, 1) }
func (l *testLogger) Errorf(string, ...interface{}) { atomic.AddInt32(&l.count, 1) }

func TestNewClient(t *testing.T) {
	c, err := NewClient("https://api.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "landlordcomply-go/")

	for _, bad := range []string{"", "ftp://example.com", "not a url", "example.com"} {
		_, err := NewClient(bad, "t")
		assert.ErrorIs(t, err, ErrInvalidConfig, bad)
	}
}

func TestDo_SendsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Contains(t, r.Header.Get("User-Agent"), "landlordcomply-go/")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	require.NoError(t, c.get(context.Background(), "/ping", nil))
}

func TestDo_NoTokenOmitsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "")
	require.NoError(t, err)
	require.NoError(t, c.get(context.Background(), "ping", nil))
}

func TestDo_DecodesErrorEnvelope(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusNotFound, "CASE_004", "case not found")
	})

	err := c.get(context.Background(), "/api/v1/cases/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "CASE_004", apiErr.Code)
	assert.Equal(t, "case not found", apiErr.Message)
	assert.True(t, apiErr.IsNotFound())
	assert.NotEmpty(t, apiErr.RequestID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestDo_NonEnvelopeErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down\n")
	}, WithRetryMax(0))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.True(t, apiErr.IsServerError())
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls int32
	log := &testLogger{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeEnvelope(w, http.StatusServiceUnavailable, "COMMON_008", "unavailable")
			return
		}
		w.Write([]byte(`{"total":7}`))
	}, WithLogger(log))

	var out struct {
		Total int `json:"total"`
	}
	require.NoError(t, c.get(context.Background(), "/x", &out))
	assert.Equal(t, 7, out.Total)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Positive(t, atomic.LoadInt32(&log.count))
}

func TestDo_GivesUpAfterRetryMax(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusInternalServerError, "COMMON_001", "internal server error")
	}, WithRetryMax(2))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_RateLimitedWithRetryAfter(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeEnvelope(w, http.StatusTooManyRequests, "COMMON_007", "rate limit exceeded")
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.get(context.Background(), "/x", nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_RateLimitedWithoutRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusTooManyRequests, "COMMON_007", "rate limit exceeded")
	})
	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetryWait(time.Second, 2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateBackoff(t *testing.T) {
	c, err := NewClient("http://localhost", "", WithRetryWait(100*time.Millisecond, 300*time.Millisecond))
	require.NoError(t, err)

	b1 := c.calculateBackoff(1)
	assert.GreaterOrEqual(t, b1, 100*time.Millisecond)
	assert.Less(t, b1, 125*time.Millisecond)

	b5 := c.calculateBackoff(5)
	assert.GreaterOrEqual(t, b5, 300*time.Millisecond)
	assert.Less(t, b5, 375*time.Millisecond)
}

func TestCasesClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/cases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SENT", r.URL.Query().Get("status"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))
		w.Write([]byte(`{"cases":[{"id":"c1","status":"SENT","deadline":{"days_left":3,"urgency":"warning"}}],"total":1,"limit":5,"offset":0}`))
	})
	mux.HandleFunc("/api/v1/cases/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"c1","status":"ACTIVE","refund_amount":1349.74,"allowed_transitions":["PENDING_SEND","CLOSED"]}`))
	})
	mux.HandleFunc("/api/v1/cases/c1/transitions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body TransitionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CLOSED", body.To)
		assert.Equal(t, "tenant unreachable", body.ClosureReason)
		w.Write([]byte(`{"id":"c1","status":"CLOSED"}`))
	})
	c := newTestClient(t, mux.ServeHTTP)
	ctx := context.Background()

	list, err := c.Cases().List(ctx, ListCasesOptions{Status: "SENT", Limit: 5})
	require.NoError(t, err)
	require.Len(t, list.Cases, 1)
	assert.Equal(t, "warning", list.Cases[0].Deadline.Urgency)

	got, err := c.Cases().Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1349.74, got.RefundAmount)
	assert.Equal(t, []string{"PENDING_SEND", "CLOSED"}, got.AllowedTransitions)

	closed, err := c.Cases().Transition(ctx, "c1", TransitionRequest{To: "CLOSED", ClosureReason: "tenant unreachable"})
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", closed.Status)

	_, err = c.Cases().Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = c.Cases().Transition(ctx, "c1", TransitionRequest{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Same(t, c.Cases(), c.Cases())
}

func TestCalculatorClient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/calculator/deadline":
			w.Write([]byte(`{"move_out_date":"2024-03-01","deadline_days":14,"due_date":"2024-03-15T00:00:00Z","days_left":5,"urgency":"warning"}`))
		case "/api/v1/calculator/refund":
			w.Write([]byte(`{"total_deductions":150.26,"refund_amount":1349.74,"owes_balance":false,"skipped":1}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	days := 14

	dl, err := c.Calculator().Deadline(ctx, DeadlineRequest{MoveOutDate: "2024-03-01", DeadlineDays: &days})
	require.NoError(t, err)
	assert.Equal(t, 5, dl.DaysLeft)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), dl.DueDate)

	rf, err := c.Calculator().Refund(ctx, RefundRequest{DepositAmount: 1500, Deductions: []any{100, "50.255", "n/a"}})
	require.NoError(t, err)
	assert.Equal(t, 1349.74, rf.RefundAmount)
	assert.Equal(t, 1, rf.Skipped)
}
