package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/cashcard-core/internal/audit"
	"github.com/nerrad567/cashcard-core/internal/auth"
	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/config"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/database"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	"github.com/nerrad567/cashcard-core/internal/metrics"
	_ "github.com/nerrad567/cashcard-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// credentials of the seeded accounts.
var (
	sarah = [2]string{"sarah1", "abc123"}
	kumar = [2]string{"kumar2", "xyz789"}
	hank  = [2]string{"hank-owns-no-cards", "qrs456"}
)

// testEnv is a fully wired server over an in-memory SQLite database.
type testEnv struct {
	srv     *Server
	handler http.Handler
}

// trustedOrigin is the only foreign origin the test server accepts.
const trustedOrigin = "https://cards.example"

// newTestEnv seeds the three accounts and the cards
// 99 (123.45), 100 (1.00), 101 (150.00) for sarah1 and 102 (200.00) for kumar2.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	require.NoError(t, db.Migrate(ctx))

	log := logging.Nop()
	users := auth.NewUserRepository(db.DB)
	identities := auth.NewIdentityStore(users, log)
	_, err = auth.SeedUsers(ctx, identities, []auth.SeedUser{
		{Username: sarah[0], Password: sarah[1], Role: auth.RoleCardOwner},
		{Username: kumar[0], Password: kumar[1], Role: auth.RoleCardOwner},
		{Username: hank[0], Password: hank[1], Role: auth.RoleNonOwner},
	})
	require.NoError(t, err)

	store := card.NewSQLiteStore(db.DB)
	for _, c := range []card.Card{
		{ID: 99, Amount: decimal.RequireFromString("123.45"), Owner: "sarah1"},
		{ID: 100, Amount: decimal.RequireFromString("1.00"), Owner: "sarah1"},
		{ID: 101, Amount: decimal.RequireFromString("150.00"), Owner: "sarah1"},
		{ID: 102, Amount: decimal.RequireFromString("200.00"), Owner: "kumar2"},
	} {
		_, err := store.Save(ctx, c)
		require.NoError(t, err)
	}

	m, err := metrics.New(nil)
	require.NoError(t, err)

	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	svc := card.NewService(store, log, hub, audit.NewSink(auditRepo, log))

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:  "127.0.0.1",
			Realm: "cashcards",
			CORS:  config.CORSConfig{AllowedOrigins: []string{trustedOrigin}},
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:       wsCfg,
		Logger:   log,
		Cards:    svc,
		Verifier: auth.NewCachingVerifier(identities, time.Minute),
		Users:    identities,
		Tokens:   auth.NewTokenService(users, testSecret, 15*time.Minute),
		Audit:    auditRepo,
		Metrics:  m,
		Hub:      hub,
		Health:   map[string]HealthChecker{"database": db},
		Version:  "test",
	})
	require.NoError(t, err)

	return &testEnv{srv: srv, handler: srv.Handler()}
}

// do performs a request. creds may be nil for an anonymous call.
func (e *testEnv) do(t *testing.T, method, path string, creds *[2]string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if creds != nil {
		req.SetBasicAuth(creds[0], creds[1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), "body: %s", w.Body.String())
	return e
}

// ─── Retrieval ─────────────────────────────────────────────────────

func TestGetCard(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/cashcards/99", &sarah, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":99,"amount":123.45,"owner":"sarah1"}`, w.Body.String())
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestGetCard_NotFoundIsIndistinguishable(t *testing.T) {
	env := newTestEnv(t)

	missing := env.do(t, http.MethodGet, "/cashcards/1000", &sarah, "")
	foreign := env.do(t, http.MethodGet, "/cashcards/102", &sarah, "")
	malformed := env.do(t, http.MethodGet, "/cashcards/abc", &sarah, "")

	for _, w := range []*httptest.ResponseRecorder{missing, foreign, malformed} {
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	assert.Equal(t, missing.Body.String(), foreign.Body.String())
	assert.Equal(t, missing.Body.String(), malformed.Body.String())
	assert.Equal(t, Error{Status: 404, Code: ErrCodeNotFound, Message: "Not Found"}, decodeError(t, foreign))
}

// ─── Authorisation ─────────────────────────────────────────────────

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)
	badPassword := [2]string{"sarah1", "BAD-PASSWORD"}
	unknownUser := [2]string{"BAD-USER", "abc123"}

	tests := []struct {
		name      string
		method    string
		path      string
		creds     *[2]string
		body      string
		want      int
		challenge bool
	}{
		{"anonymous get", http.MethodGet, "/cashcards/99", nil, "", http.StatusUnauthorized, true},
		{"anonymous list", http.MethodGet, "/cashcards", nil, "", http.StatusUnauthorized, true},
		{"anonymous create", http.MethodPost, "/cashcards", nil, `{"amount":1}`, http.StatusUnauthorized, true},
		{"bad password", http.MethodGet, "/cashcards/99", &badPassword, "", http.StatusUnauthorized, true},
		{"unknown user", http.MethodGet, "/cashcards/99", &unknownUser, "", http.StatusUnauthorized, true},
		{"non-owner get", http.MethodGet, "/cashcards/99", &hank, "", http.StatusForbidden, false},
		{"non-owner list", http.MethodGet, "/cashcards", &hank, "", http.StatusForbidden, false},
		{"non-owner delete", http.MethodDelete, "/cashcards/99", &hank, "", http.StatusForbidden, false},
		{"anonymous token", http.MethodPost, "/token", nil, "", http.StatusUnauthorized, true},
		{"non-owner token", http.MethodPost, "/token", &hank, "", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.creds, tt.body)
			assert.Equal(t, tt.want, w.Code)
			if tt.challenge {
				assert.Equal(t, `Basic realm="cashcards"`, w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}

	// The refused delete left the card alone.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/cashcards/99", &sarah, "").Code)
}

func TestAuthGate_UnsupportedScheme(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/cashcards/99", nil)
	req.Header.Set("Authorization", "Digest username=sarah1")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/token", &sarah, "")
	require.Equal(t, http.StatusOK, w.Code)

	var tok tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Positive(t, tok.ExpiresIn)

	req := httptest.NewRequest(http.MethodGet, "/cashcards/99", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":99,"amount":123.45,"owner":"sarah1"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/cashcards/99", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken+"x")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ─── Creation ──────────────────────────────────────────────────────

func TestCreateCard(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/cashcards", &sarah, `{"id":null,"amount":250.00,"owner":"kumar2"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Body.String())

	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/cashcards/"), "Location = %q", location)

	w = env.do(t, http.MethodGet, location, &sarah, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotNil(t, got["id"])
	assert.Equal(t, 250.0, got["amount"])
	assert.Equal(t, "sarah1", got["owner"], "owner must come from the caller, not the body")

	// kumar2 cannot see it.
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, location, &kumar, "").Code)
}

func TestCreateCard_BadBody(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"owner":"sarah1"}`, `not json`, `{"amount":"lots"}`} {
		w := env.do(t, http.MethodPost, "/cashcards", &sarah, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

// ─── Listing ───────────────────────────────────────────────────────

func TestListCards(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name: "defaults sort by amount ascending",
			want: `[{"id":100,"amount":1.00,"owner":"sarah1"},
				{"id":99,"amount":123.45,"owner":"sarah1"},
				{"id":101,"amount":150.00,"owner":"sarah1"}]`,
		},
		{
			name:  "first page of one, amount descending",
			query: "?page=0&size=1&sort=amount,desc",
			want:  `[{"id":101,"amount":150.00,"owner":"sarah1"}]`,
		},
		{
			name:  "sort by id",
			query: "?sort=id,desc",
			want: `[{"id":101,"amount":150.00,"owner":"sarah1"},
				{"id":100,"amount":1.00,"owner":"sarah1"},
				{"id":99,"amount":123.45,"owner":"sarah1"}]`,
		},
		{
			name:  "page past the end",
			query: "?page=5&size=2",
			want:  `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/cashcards"+tt.query, &sarah, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
		})
	}
}

func TestListCards_BadPaging(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"?sort=bogus", "?page=-1", "?size=0", "?page=x", "?sort=amount,sideways"} {
		w := env.do(t, http.MethodGet, "/cashcards"+q, &sarah, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %s", q)
	}
}

func TestListCards_CardlessOwner(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/createuser", nil, `{"userName":"newbie","password":"secret1","role":"CARD-OWNER"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/cashcards", &[2]string{"newbie", "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

// ─── Update ────────────────────────────────────────────────────────

func TestUpdateCard(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/cashcards/99", &sarah, `{"amount":19.99,"owner":"kumar2","id":5}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))

	w = env.do(t, http.MethodGet, "/cashcards/99", &sarah, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":99,"amount":19.99,"owner":"sarah1"}`, w.Body.String())
}

func TestUpdateCard_NotFound(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/cashcards/99999", &sarah, `{"amount":19.99}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/cashcards/102", &sarah, `{"amount":333.33}`).Code)

	// kumar2's card is untouched.
	w := env.do(t, http.MethodGet, "/cashcards/102", &kumar, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":102,"amount":200.00,"owner":"kumar2"}`, w.Body.String())
}

func TestUpdateCard_IfMatch(t *testing.T) {
	env := newTestEnv(t)

	put := func(ifMatch, amount string) int {
		req := httptest.NewRequest(http.MethodPut, "/cashcards/100", strings.NewReader(`{"amount":`+amount+`}`))
		req.SetBasicAuth(sarah[0], sarah[1])
		if ifMatch != "" {
			req.Header.Set("If-Match", ifMatch)
		}
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, put(`"1"`, "2"))
	assert.Equal(t, http.StatusConflict, put(`"1"`, "3"), "stale version")
	assert.Equal(t, http.StatusConflict, put(`"garbage"`, "3"), "unparseable tag")
	assert.Equal(t, http.StatusNoContent, put("*", "4"))
	assert.Equal(t, http.StatusNoContent, put("", "5"), "no If-Match is last write wins")

	w := env.do(t, http.MethodGet, "/cashcards/100", &sarah, "")
	assert.JSONEq(t, `{"id":100,"amount":5,"owner":"sarah1"}`, w.Body.String())
	assert.Equal(t, `"4"`, w.Header().Get("ETag"))
}

// ─── Deletion ──────────────────────────────────────────────────────

func TestDeleteCard(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/cashcards/99", &sarah, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/cashcards/99", &sarah, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/cashcards/99", &sarah, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/cashcards/1000", &sarah, "").Code)
}

func TestDeleteCard_Foreign(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/cashcards/102", &sarah, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/cashcards/102", &kumar, "").Code)
}

// ─── Users ─────────────────────────────────────────────────────────

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"new owner", `{"userName":"alice","password":"pa55word","role":"CARD-OWNER"}`, http.StatusOK},
		{"duplicate", `{"userName":"sarah1","password":"whatever","role":"CARD-OWNER"}`, http.StatusConflict},
		{"unknown role", `{"userName":"bob","password":"pa55word","role":"ADMIN"}`, http.StatusBadRequest},
		{"bad username", `{"userName":"no spaces","password":"pa55word","role":"NON-OWNER"}`, http.StatusBadRequest},
		{"short password", `{"userName":"carol","password":"x","role":"NON-OWNER"}`, http.StatusBadRequest},
		{"not json", `userName=dave`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/createuser", nil, tt.body)
			assert.Equal(t, tt.want, w.Code, "body: %s", w.Body.String())
		})
	}

	// The open endpoint ignores even bad credentials.
	w := env.do(t, http.MethodPost, "/createuser", &[2]string{"nobody", "nope"},
		`{"userName":"erin","password":"pa55word","role":"NON-OWNER"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	// alice can use the card endpoints straight away.
	alice := [2]string{"alice", "pa55word"}
	w = env.do(t, http.MethodPost, "/cashcards", &alice, `{"amount":10}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

// ─── Audit, health and metrics ─────────────────────────────────────

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodPut, "/cashcards/99", &sarah, `{"amount":5}`).Code)
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/cashcards/102", &kumar, "").Code)

	w := env.do(t, http.MethodGet, "/audit?entity_type=cashcard", &sarah, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res audit.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Logs, 1, "sarah1 sees only her own entries")
	assert.Equal(t, "updated", res.Logs[0].Action)
	assert.Equal(t, "99", res.Logs[0].EntityID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/audit?limit=ten", &sarah, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/audit", nil, "").Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["version"])
	assert.Equal(t, map[string]any{"database": "ok"}, resp["checks"])
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return assert.AnError }

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t)
	env.srv.health["broker"] = failingCheck{}

	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/cashcards/99", &sarah, "")
	env.do(t, http.MethodGet, "/cashcards/99", &hank, "")

	w := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Regexp(t, `cashcard_http_requests_total\{method="GET",route="/cashcards/\{id\}/?",status="200"\} 1`, body)
	assert.Contains(t, body, `cashcard_auth_failures_total{reason="forbidden"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, w).Code)

	w = env.do(t, http.MethodPatch, "/cashcards/99", &sarah, `{"amount":1}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = env.do(t, http.MethodGet, "/cashcards/99/history", &sarah, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, w).Code)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	_, err = New(Deps{Logger: logging.Nop()})
	assert.Error(t, err)
}
