package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
	"github.com/raaihank/mail-sentinel/internal/privacy"
	"github.com/raaihank/mail-sentinel/internal/store"
	"github.com/raaihank/mail-sentinel/internal/websocket"
)

type stubClassifier struct {
	category string
	err      error
	panics   bool
	seen     []string
	mu       sync.Mutex
}

func (c *stubClassifier) Predict(text string) (string, error) {
	if c.panics {
		panic("boom")
	}
	c.mu.Lock()
	c.seen = append(c.seen, text)
	c.mu.Unlock()
	return c.category, c.err
}

func (c *stubClassifier) Classes() []string {
	return []string{"Incident", "Request"}
}

type memoryCache struct {
	entries map[string]string
}

func (m *memoryCache) Get(_ context.Context, maskedText string) (string, bool) {
	category, ok := m.entries[maskedText]
	return category, ok
}

func (m *memoryCache) Set(_ context.Context, maskedText, category string) error {
	m.entries[maskedText] = category
	return nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }

type memoryStore struct {
	records []*store.Classification
}

func (m *memoryStore) InsertClassification(_ context.Context, c *store.Classification) error {
	m.records = append(m.records, c)
	return nil
}

func (m *memoryStore) Ping(context.Context) error { return errors.New("down") }

func newTestServer(t *testing.T, classifier Classifier, mutate func(*config.Config, *Deps)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	masker, err := privacy.New(cfg.Privacy, logger.NewNop())
	require.NoError(t, err)

	deps := Deps{Masker: masker, Classifier: classifier, Version: "test"}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	s, err := New(cfg, logger.NewNop(), deps)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleClassify(t *testing.T) {
	classifier := &stubClassifier{category: "Incident"}
	s := newTestServer(t, classifier, nil)

	rec := do(t, s, http.MethodPost, "/", `{"input_email_body": "Contact: John Doe, 1234-5678-9012-3456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.JSONEq(t, `{
		"input_email_body": "Contact: John Doe, 1234-5678-9012-3456",
		"list_of_masked_entities": [
			{"position": [9, 17], "classification": "full_name", "entity": "John Doe"},
			{"position": [19, 38], "classification": "credit_debit_no", "entity": "1234-5678-9012-3456"}
		],
		"masked_email": "Contact: [full_name], [credit_debit_no]",
		"category_of_the_email": "Incident"
	}`, rec.Body.String())

	// the model only ever sees masked text
	assert.Equal(t, []string{"Contact: [full_name], [credit_debit_no]"}, classifier.seen)
}

func TestHandleClassify_EmptyBody(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "Request"}, nil)

	rec := do(t, s, http.MethodPost, "/", `{"input_email_body": ""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "", resp.MaskedEmail)
	assert.NotNil(t, resp.ListOfMaskedEntities)
	assert.Empty(t, resp.ListOfMaskedEntities)
	assert.Contains(t, rec.Body.String(), `"list_of_masked_entities":[]`)
}

func TestHandleClassify_Errors(t *testing.T) {
	tests := []struct {
		name       string
		classifier *stubClassifier
		body       string
		status     int
		detail     string
	}{
		{"invalid json", &stubClassifier{category: "x"}, `{`, http.StatusBadRequest, "invalid JSON body"},
		{"missing field", &stubClassifier{category: "x"}, `{"email": "hi"}`, http.StatusBadRequest, "input_email_body is required"},
		{"prediction failure", &stubClassifier{err: errors.New("no model")}, `{"input_email_body": "hi"}`, http.StatusInternalServerError, "model prediction failed"},
		{"panic", &stubClassifier{panics: true}, `{"input_email_body": "hi"}`, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.classifier, nil)
			rec := do(t, s, http.MethodPost, "/", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, `{"detail": "`+tt.detail+`"}`, rec.Body.String())
		})
	}
}

func TestHandleClassify_MatchTimeout(t *testing.T) {
	classifier := &stubClassifier{category: "x"}
	s := newTestServer(t, classifier, func(cfg *config.Config, deps *Deps) {
		registry, err := privacy.NewRegistry(
			[]privacy.RuleDef{{Category: "runaway", Pattern: `^(a+)+$`}},
			privacy.WithMatchTimeout(time.Millisecond),
		)
		require.NoError(t, err)
		deps.Masker = privacy.NewWithRegistry(registry, cfg.Privacy, logger.NewNop())
	})

	rec := do(t, s, http.MethodPost, "/", `{"input_email_body": "`+strings.Repeat("a", 40)+`!"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"detail": "input too complex to mask"}`, rec.Body.String())
	assert.Empty(t, classifier.seen)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "x"}, func(cfg *config.Config, _ *Deps) {
		cfg.Server.MaxBodyBytes = 32
	})

	rec := do(t, s, http.MethodPost, "/", `{"input_email_body": "`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "x"}, func(cfg *config.Config, _ *Deps) {
		cfg.Security.RateLimit.RequestsPerMin = 1
		cfg.Security.RateLimit.Burst = 2
	})

	body := `{"input_email_body": "hi"}`
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/", body).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/", body).Code)

	rec := do(t, s, http.MethodPost, "/", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health checks are not rate limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestHandleClassify_CacheAndStore(t *testing.T) {
	classifier := &stubClassifier{category: "Request"}
	cache := &memoryCache{entries: map[string]string{}}
	audit := &memoryStore{}

	s := newTestServer(t, classifier, func(_ *config.Config, deps *Deps) {
		deps.Cache = cache
		deps.Store = audit
	})

	body := `{"input_email_body": "reach me at a.b@example.com today"}`
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/", body).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/", body).Code)

	assert.Len(t, classifier.seen, 1, "second request is served from the cache")
	assert.Equal(t, "Request", cache.entries["reach me at [email] today"])

	require.Len(t, audit.records, 2)
	record := audit.records[0]
	assert.Equal(t, "reach me at [email] today", record.MaskedEmail)
	assert.Equal(t, []string{"email"}, []string(record.Categories))
	assert.Equal(t, 1, record.EntityCount)
	assert.Len(t, record.TextHash, 64)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.JSONEq(t, `"degraded"`, mustField(t, rec.Body.Bytes(), "status"))
}

func TestHandleMask(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "x"}, nil)

	rec := do(t, s, http.MethodPost, "/mask", `{"text": "Call 9876543210"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"masked_text": "Call [phone_number]",
		"entities": [{"position": [5, 15], "classification": "phone_number", "entity": "9876543210"}]
	}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/mask", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInfoHealthMetrics(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "Request"}, nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"healthy"`, mustField(t, rec.Body.Bytes(), "status"))

	rec = do(t, s, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"test"`, mustField(t, rec.Body.Bytes(), "version"))
	assert.JSONEq(t, `["Incident", "Request"]`, mustField(t, rec.Body.Bytes(), "classes"))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/", `{"input_email_body": "Call 9876543210"}`).Code)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mail_sentinel_masked_entities_total{category="phone_number"} 1`)
	assert.Contains(t, string(body), `mail_sentinel_classifications_total{category="Request"} 1`)
	assert.Contains(t, string(body), `mail_sentinel_http_requests_total{route="/",status="200"} 1`)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "x"}, func(cfg *config.Config, deps *Deps) {
		cfg.WebSocket.Enabled = true
		cfg.WebSocket.Password = "secret"
		deps.Hub = websocket.NewHub(cfg.WebSocket, logger.NewNop(), nil)
	})

	rec := do(t, s, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mail-sentinel events")
}

func TestDashboard_DisabledWithoutHub(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "x"}, nil)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/dashboard", "").Code)
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, &stubClassifier{category: "x"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(config.GetDefaults(), logger.NewNop(), Deps{})
	assert.Error(t, err)
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &obj))
	return string(obj[field])
}
