package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/latchkey/api"
	"github.com/jmcleod/latchkey/auth"
	"github.com/jmcleod/latchkey/crypto"
	"github.com/jmcleod/latchkey/storage/memory"
)

func testKDFParams() crypto.KDFParams {
	p := crypto.DefaultKDFParams()
	p.Iterations = 1000
	return p
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.DiscardHandler)
	mgr := auth.NewManager(store,
		auth.WithKDFParams(testKDFParams()),
		auth.WithLogger(logger),
	)
	a := api.New(mgr, api.WithLogger(logger))
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func setupAccount(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/setup", map[string]any{
		"password":       "hunter22",
		"default_target": 2000,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSetupAndStatus(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/status", nil)
	status := decodeBody[api.StatusResponse](t, resp)
	assert.Equal(t, "authenticated", status.State)
	assert.Equal(t, float64(2000), status.DefaultTarget)
	assert.False(t, status.HasSecret)
}

func TestSetup_AlreadyInitialized(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/setup", map[string]any{
		"password": "other",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLogin_NotInitialized(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"password": "hunter22",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSecretRoundTrip(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPut, srv.URL+"/api/v1/auth/secret", map[string]string{
		"secret": "sk-abc123",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Lock, log back in, and read the secret again.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/lock", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/secret", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"password": "hunter22",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/secret", nil)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "sk-abc123", body["secret"])
}

func TestLogin_WrongPasswordReportsAttempts(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/lock", nil)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errBody := decodeBody[api.ErrorResponse](t, resp)
	require.NotNil(t, errBody.AttemptsRemaining)
	assert.Equal(t, 4, *errBody.AttemptsRemaining)
}

func TestLogin_LockoutReportsCountdown(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/lock", nil)
	resp.Body.Close()

	for i := 0; i < 5; i++ {
		resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
			"password": "wrong",
		})
		resp.Body.Close()
	}

	// Even the correct password is refused while locked out.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"password": "hunter22",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	errBody := decodeBody[api.ErrorResponse](t, resp)
	require.NotNil(t, errBody.RetryAfterSeconds)
	assert.InDelta(t, 30, *errBody.RetryAfterSeconds, 1)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/secret", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPut, srv.URL+"/api/v1/auth/target", map[string]any{
		"default_target": 1800,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWipe(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/wipe", map[string]string{
		"password": "wrong",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/wipe", map[string]string{
		"password": "hunter22",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/status", nil)
	status := decodeBody[api.StatusResponse](t, resp)
	assert.Equal(t, "uninitialized", status.State)
}

func TestVisibilitySignals(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	for _, state := range []string{"background", "foreground"} {
		resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/visibility", map[string]string{
			"state": state,
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/visibility", map[string]string{
		"state": "sideways",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBiometricEndpointsUnconfigured(t *testing.T) {
	srv := setupServer(t)
	client := newClient(t)
	setupAccount(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/biometric/register/begin", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/biometric/login/begin", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
