package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/persistence/sqlite"
)

var testTokens = auth.TokenConfig{Secret: "api-test-secret", Issuer: "footprint-test", TTL: time.Hour}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	repo   *sqlite.Repository
}

func newTestEnv(t *testing.T, requireLogin bool) *testEnv {
	t.Helper()

	repo, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "footprint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	service := domain.NewService(repo, emissions.DefaultFactors())
	accounts := domain.NewAuthService(repo, domain.WithHashCost(bcrypt.MinCost))
	sessions := auth.NewSessions("api-test-session-secret", false)

	handler, err := NewHandler(service, accounts, sessions, Options{
		RecentLimit:  5,
		RequireLogin: requireLogin,
		Tokens:       testTokens,
		Health:       repo,
	}, zerolog.Nop())
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(handler, sessions, accounts, zerolog.Nop()))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{server: server, client: &http.Client{Jar: jar}, repo: repo}
}

func (e *testEnv) postForm(t *testing.T, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, values)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) postJSON(t *testing.T, path, body, bearer string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) registerAndLogin(t *testing.T, username, email, password string) {
	t.Helper()
	resp, body := e.postForm(t, "/register", url.Values{"username": {username}, "email": {email}, "password": {password}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, flashRegistered)

	resp, _ = e.postForm(t, "/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/", resp.Request.URL.Path)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestAPICalculateAnonymousWhenLoginDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.postJSON(t, "/api/calculate", `{"car": 100, "bus": 0, "flight": 0, "electricity": 0, "gas": 0}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.InDelta(t, 21.0, out["total_emission_kgCO2"], 1e-9)
	assert.Equal(t, emissions.RecommendationLow, out["recommendation"])
	assert.Equal(t, map[string]any{"car": 100.0, "bus": 0.0, "flight": 0.0, "electricity": 0.0, "gas": 0.0}, out["input"])

	recent, _, err := env.repo.ListRecent(context.Background(), "", nil, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Empty(t, recent[0].OwnerID)
}

func TestAPICalculateIgnoresUnknownAndMalformed(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.postJSON(t, "/api/calculate", `{"car": "abc", "unknown": 999, "flight": "500"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out CalculateResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.InDelta(t, 125.0, out.TotalEmission, 1e-9)
	assert.Equal(t, emissions.TierHigh, out.Tier)
	assert.Equal(t, "abc", out.Input["car"])
}

func TestAPICalculateRejectsNonObject(t *testing.T) {
	env := newTestEnv(t, false)

	for _, body := range []string{`[1,2]`, `{"car":`, `"car"`} {
		resp, out := env.postJSON(t, "/api/calculate", body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, out, `"type":"invalid_request"`)
	}
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t, true)

	resp, body := env.get(t, "/")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "<h1>Log in</h1>")

	resp, _ = env.get(t, "/history")
	assert.Equal(t, "/login", resp.Request.URL.Path)

	resp, body = env.postJSON(t, "/api/calculate", `{"car": 1}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, `"type":"unauthorized"`)

	resp, _ = env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterLoginCalculateHistoryFlow(t *testing.T) {
	env := newTestEnv(t, true)
	env.registerAndLogin(t, "alice", "alice@example.com", "s3cret")

	resp, body := env.postForm(t, "/calculate", url.Values{"car": {"200"}, "flight": {"10"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<span id="total">44.50</span>`)
	assert.Contains(t, body, emissions.RecommendationLow)
	assert.Contains(t, body, `value="200"`)
	assert.Contains(t, body, "Signed in as alice")

	resp, _ = env.postForm(t, "/calculate", url.Values{"flight": {"500"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.get(t, "/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history domain.History
	require.NoError(t, json.Unmarshal([]byte(body), &history))
	require.Len(t, history.Dates, 2)
	assert.Equal(t, []float64{44.5, 125}, history.Totals)
	assert.Equal(t, time.Now().UTC().Format(domain.HistoryDateLayout), history.Dates[1])

	resp, _ = env.get(t, "/logout")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	resp, _ = env.get(t, "/")
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestRecordsAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t, true)
	env.registerAndLogin(t, "alice", "alice@example.com", "pw-alice")
	env.postForm(t, "/calculate", url.Values{"car": {"100"}})

	other := newClientFor(t, env)
	other.registerAndLogin(t, "bob", "bob@example.com", "pw-bob")

	resp, body := other.get(t, "/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"dates":[],"emissions":[]}`, body)

	_, body = env.get(t, "/history")
	assert.JSONEq(t, `{"dates":["`+time.Now().UTC().Format(domain.HistoryDateLayout)+`"],"emissions":[21]}`, body)
}

func newClientFor(t *testing.T, env *testEnv) *testEnv {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{server: env.server, client: &http.Client{Jar: jar}, repo: env.repo}
}

func TestDuplicateRegistrationShowsFlash(t *testing.T) {
	env := newTestEnv(t, true)
	env.postForm(t, "/register", url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "password": {"pw"}})

	resp, body := env.postForm(t, "/register", url.Values{"username": {"alice2"}, "email": {"ALICE@example.com"}, "password": {"pw"}})
	assert.Equal(t, "/register", resp.Request.URL.Path)
	assert.Contains(t, body, flashDuplicateIdentity)

	user, err := env.repo.FindUserByUsername(context.Background(), "alice2")
	require.NoError(t, err)
	assert.Nil(t, user)

	// Flashes are shown once.
	_, body = env.get(t, "/register")
	assert.NotContains(t, body, flashDuplicateIdentity)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, true)
	env.postForm(t, "/register", url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "password": {"pw"}})

	for _, form := range []url.Values{
		{"email": {"alice@example.com"}, "password": {"wrong"}},
		{"email": {"nobody@example.com"}, "password": {"pw"}},
	} {
		resp, body := env.postForm(t, "/login", form)
		assert.Equal(t, "/login", resp.Request.URL.Path)
		assert.Contains(t, body, flashInvalidCredentials)
	}
}

func TestTokenAndActivitiesPagination(t *testing.T) {
	env := newTestEnv(t, true)
	env.postForm(t, "/register", url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "password": {"pw"}})

	resp, body := env.postJSON(t, "/api/token", `{"email":"alice@example.com","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.postJSON(t, "/api/token", `{"email":"alice@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var token TokenResponse
	require.NoError(t, json.Unmarshal([]byte(body), &token))
	require.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)

	for i := 1; i <= 3; i++ {
		resp, body = env.postJSON(t, "/api/calculate", `{"car": 10}`, token.AccessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
	}

	list := func(query string) ListActivitiesResponse {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/activities"+query, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		resp, err := env.client.Do(req)
		require.NoError(t, err)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		var out ListActivitiesResponse
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		return out
	}

	first := list("?limit=2")
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.True(t, first.Items[0].ActivityID > first.Items[1].ActivityID)

	second := list("?limit=2&cursor=" + first.NextCursor)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.InDelta(t, 2.1, second.Items[0].TotalEmission, 1e-9)
}

func TestActivitiesRejectsBadQuery(t *testing.T) {
	env := newTestEnv(t, false)

	for _, query := range []string{"?limit=0", "?limit=abc", "?cursor=bm90LWEtY3Vyc29y"} {
		resp, body := env.get(t, "/api/activities"+query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.Contains(t, body, "validation_failed")
	}
}

func TestIndexShowsAtMostRecentLimit(t *testing.T) {
	env := newTestEnv(t, false)
	for i := 0; i < 7; i++ {
		env.postForm(t, "/calculate", url.Values{"bus": {"10"}})
	}

	_, body := env.get(t, "/")
	section := body[strings.Index(body, `<table id="recent">`):]
	assert.Equal(t, 5, strings.Count(section, "<td>10</td>"))
}

func TestHealthzReportsStore(t *testing.T) {
	env := newTestEnv(t, true)

	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	require.NoError(t, env.repo.Close())
	resp, body = env.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "unavailable")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, false)
	resp, body := env.get(t, "/api/calculate")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, body, "method_not_allowed")
}
