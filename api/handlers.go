package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/latchkey/auth"
)

const sessionCookieName = "latchkey_session"

// newSessionToken installs a fresh session token and returns it. There is
// exactly one UI session; issuing a new token invalidates the previous one.
func (a *API) newSessionToken() string {
	token := uuid.NewString()
	a.sessionMu.Lock()
	a.sessionToken = token
	a.sessionMu.Unlock()
	return token
}

func (a *API) clearSessionToken() {
	a.sessionMu.Lock()
	a.sessionToken = ""
	a.sessionMu.Unlock()
}

func (a *API) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	return a.sessionToken != "" && cookie.Value == a.sessionToken
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// RequireSession gates handlers on an active authenticated session. Every
// request passing the gate counts as user activity and resets the idle
// timer.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.validSession(r) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		st, err := a.manager.Status(r.Context())
		if err != nil || st.State != auth.StateAuthenticated {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		a.manager.Touch()
		next.ServeHTTP(w, r)
	})
}

// Setup handles POST /auth/setup.
func (a *API) Setup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password      string  `json:"password"`
		DefaultTarget float64 `json:"default_target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := a.manager.Setup(r.Context(), req.Password, req.DefaultTarget); err != nil {
		mapError(w, err)
		return
	}

	token := a.newSessionToken()
	a.setSessionCookie(w, token)
	a.audit.log(AuditSetup, r)
	writeJSON(w, http.StatusCreated, a.statusResponse(r))
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := a.manager.Login(r.Context(), req.Password); err != nil {
		var lerr *auth.LockoutError
		if errors.As(err, &lerr) {
			a.audit.log(AuditLoginLockedOut, r,
				slog.Duration("remaining", lerr.Remaining))
		} else {
			a.audit.log(AuditLoginFailure, r)
		}
		mapError(w, err)
		return
	}

	token := a.newSessionToken()
	a.setSessionCookie(w, token)
	a.audit.log(AuditLoginSuccess, r)
	writeJSON(w, http.StatusOK, a.statusResponse(r))
}

// Lock handles POST /auth/lock. Idempotent.
func (a *API) Lock(w http.ResponseWriter, r *http.Request) {
	a.manager.Lock()
	a.clearSessionToken()
	a.clearSessionCookie(w)
	a.audit.log(AuditLock, r)
	w.WriteHeader(http.StatusNoContent)
}

// Wipe handles POST /auth/wipe. The password is verified, with the lockout
// in force, before any state is deleted.
func (a *API) Wipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := a.manager.Wipe(r.Context(), req.Password); err != nil {
		mapError(w, err)
		return
	}

	a.clearSessionToken()
	a.clearSessionCookie(w)
	a.audit.log(AuditWipe, r)
	w.WriteHeader(http.StatusNoContent)
}

// UnlockSecret handles POST /auth/unlock-secret: password re-entry after a
// biometric login, to decrypt the secret without restarting the session.
func (a *API) UnlockSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := a.manager.UnlockSecret(r.Context(), req.Password); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditSecretUnlocked, r)
	writeJSON(w, http.StatusOK, a.statusResponse(r))
}

// GetSecret handles GET /auth/secret.
func (a *API) GetSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := a.manager.Secret()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Secret string `json:"secret"`
	}{Secret: string(secret)})
}

// PutSecret handles PUT /auth/secret.
func (a *API) PutSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required")
		return
	}

	if err := a.manager.SaveSecret(r.Context(), []byte(req.Secret)); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditSecretUpdated, r)
	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultTarget handles PUT /auth/target.
func (a *API) SetDefaultTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DefaultTarget float64 `json:"default_target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := a.manager.SetDefaultTarget(r.Context(), req.DefaultTarget); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Visibility handles POST /auth/visibility: the UI reports foreground
// transitions so the background timer and the absolute expiry check run.
func (a *API) Visibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch req.State {
	case "background":
		a.manager.EnterBackground()
	case "foreground":
		a.manager.EnterForeground()
	default:
		writeError(w, http.StatusBadRequest, "state must be background or foreground")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusResponse reports the externally visible authentication state.
type StatusResponse struct {
	State            string    `json:"state"`
	SecretLocked     bool      `json:"secret_locked,omitempty"`
	SecretAvailable  bool      `json:"secret_available"`
	HasSecret        bool      `json:"has_secret"`
	BiometricEnabled bool      `json:"biometric_enabled"`
	ExpiresAt        time.Time `json:"expires_at,omitzero"`
	DefaultTarget    float64   `json:"default_target"`
}

// Status handles GET /auth/status.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.statusResponse(r))
}

func (a *API) statusResponse(r *http.Request) StatusResponse {
	st, err := a.manager.Status(r.Context())
	if err != nil {
		return StatusResponse{State: "unknown"}
	}
	return StatusResponse{
		State:            st.State.String(),
		SecretLocked:     st.SecretLocked,
		SecretAvailable:  st.SecretAvailable,
		HasSecret:        st.HasSecret,
		BiometricEnabled: st.BiometricEnabled,
		ExpiresAt:        st.ExpiresAt,
		DefaultTarget:    st.DefaultTarget,
	}
}
