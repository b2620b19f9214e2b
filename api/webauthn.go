package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jmcleod/latchkey/auth"
)

// BiometricGate bridges the two-round-trip WebAuthn ceremony onto the
// Manager's one-shot Biometric interface. Handlers deposit the outcome of
// a finished ceremony; the Manager consumes it within the same request.
// The gate never sees key material; it carries a yes/no signal only.
type BiometricGate struct {
	mu                sync.Mutex
	pendingCredential []byte
	verified          bool
}

var _ auth.Biometric = (*BiometricGate)(nil)

// NewBiometricGate creates an empty gate. The same instance must be given
// to both auth.WithBiometric and api.WithBiometricGate.
func NewBiometricGate() *BiometricGate {
	return &BiometricGate{}
}

func (g *BiometricGate) Available(ctx context.Context) bool { return true }

// Register consumes the credential deposited by a finished registration
// ceremony. The user handle is already bound into the credential by the
// ceremony itself.
func (g *BiometricGate) Register(ctx context.Context, userHandle []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pendingCredential == nil {
		return nil, auth.ErrBiometricUnavailable
	}
	cred := g.pendingCredential
	g.pendingCredential = nil
	return cred, nil
}

// Authenticate consumes the verification outcome deposited by a finished
// login ceremony.
func (g *BiometricGate) Authenticate(ctx context.Context, credentialID []byte) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.verified
	g.verified = false
	return ok, nil
}

func (g *BiometricGate) depositCredential(cred []byte) {
	g.mu.Lock()
	g.pendingCredential = cred
	g.mu.Unlock()
}

func (g *BiometricGate) depositVerified() {
	g.mu.Lock()
	g.verified = true
	g.mu.Unlock()
}

// storedCredential is the opaque biometric credential reference persisted
// on the record: the WebAuthn credential plus the user handle it was
// registered under.
type storedCredential struct {
	UserHandle []byte              `json:"user_handle"`
	Credential webauthn.Credential `json:"credential"`
}

// webauthnUser adapts the single account to the webauthn.User interface.
type webauthnUser struct {
	id          []byte
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte                         { return u.id }
func (u *webauthnUser) WebAuthnName() string                       { return "latchkey" }
func (u *webauthnUser) WebAuthnDisplayName() string                { return "latchkey" }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// BeginBiometricRegistration handles POST /auth/biometric/register/begin.
// Starts the WebAuthn registration ceremony and returns the credential
// creation options.
func (a *API) BeginBiometricRegistration(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil || a.gate == nil {
		writeError(w, http.StatusNotFound, "biometric unlock not configured")
		return
	}

	handle := uuid.New()
	user := &webauthnUser{id: handle[:]}
	options, sessionData, err := a.webauthn.BeginRegistration(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to begin registration: "+err.Error())
		return
	}

	sessionJSON, err := json.Marshal(sessionData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to serialize ceremony state")
		return
	}

	a.ceremonyMu.Lock()
	a.pendingRegistration = &ceremonyState{
		UserHandle:  handle[:],
		SessionData: string(sessionJSON),
		ExpiresAt:   time.Now().Add(webauthnCeremonyTTL),
	}
	a.ceremonyMu.Unlock()

	writeJSON(w, http.StatusOK, options)
}

// FinishBiometricRegistration handles POST /auth/biometric/register/finish.
// Completes the ceremony and persists the credential reference through the
// Manager.
func (a *API) FinishBiometricRegistration(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil || a.gate == nil {
		writeError(w, http.StatusNotFound, "biometric unlock not configured")
		return
	}

	a.ceremonyMu.Lock()
	ceremony := a.pendingRegistration
	a.pendingRegistration = nil
	a.ceremonyMu.Unlock()

	if ceremony == nil || time.Now().After(ceremony.ExpiresAt) {
		writeError(w, http.StatusBadRequest, "registration ceremony expired; start again")
		return
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal([]byte(ceremony.SessionData), &sessionData); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt ceremony state")
		return
	}

	user := &webauthnUser{id: ceremony.UserHandle}
	credential, err := a.webauthn.FinishRegistration(user, sessionData, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "registration failed: "+err.Error())
		return
	}

	stored, err := json.Marshal(storedCredential{
		UserHandle: ceremony.UserHandle,
		Credential: *credential,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to serialize credential")
		return
	}

	a.gate.depositCredential(stored)
	if err := a.manager.EnableBiometric(r.Context()); err != nil {
		mapError(w, err)
		return
	}

	a.audit.log(AuditBiometricRegistered, r)
	writeJSON(w, http.StatusOK, struct {
		CredentialID string `json:"credential_id"`
	}{
		CredentialID: protocol.URLEncodedBase64(credential.ID).String(),
	})
}

// DisableBiometric handles DELETE /auth/biometric.
func (a *API) DisableBiometric(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.DisableBiometric(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditBiometricDisabled, r)
	w.WriteHeader(http.StatusNoContent)
}

// BeginBiometricLogin handles POST /auth/biometric/login/begin. Starts the
// WebAuthn login ceremony against the registered credential.
func (a *API) BeginBiometricLogin(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil || a.gate == nil {
		writeError(w, http.StatusNotFound, "biometric unlock not configured")
		return
	}

	stored, err := a.loadStoredCredential(r)
	if err != nil {
		mapError(w, err)
		return
	}

	user := &webauthnUser{
		id:          stored.UserHandle,
		credentials: []webauthn.Credential{stored.Credential},
	}
	options, sessionData, err := a.webauthn.BeginLogin(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to begin login: "+err.Error())
		return
	}

	sessionJSON, err := json.Marshal(sessionData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to serialize ceremony state")
		return
	}

	a.ceremonyMu.Lock()
	a.pendingLogin = &ceremonyState{
		UserHandle:  stored.UserHandle,
		SessionData: string(sessionJSON),
		ExpiresAt:   time.Now().Add(webauthnCeremonyTTL),
	}
	a.ceremonyMu.Unlock()

	writeJSON(w, http.StatusOK, options)
}

// FinishBiometricLogin handles POST /auth/biometric/login/finish. Completes
// the ceremony and opens a session with the secret still locked.
func (a *API) FinishBiometricLogin(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil || a.gate == nil {
		writeError(w, http.StatusNotFound, "biometric unlock not configured")
		return
	}

	a.ceremonyMu.Lock()
	ceremony := a.pendingLogin
	a.pendingLogin = nil
	a.ceremonyMu.Unlock()

	if ceremony == nil || time.Now().After(ceremony.ExpiresAt) {
		writeError(w, http.StatusBadRequest, "login ceremony expired; start again")
		return
	}

	stored, err := a.loadStoredCredential(r)
	if err != nil {
		mapError(w, err)
		return
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal([]byte(ceremony.SessionData), &sessionData); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt ceremony state")
		return
	}

	user := &webauthnUser{
		id:          ceremony.UserHandle,
		credentials: []webauthn.Credential{stored.Credential},
	}
	if _, err := a.webauthn.FinishLogin(user, sessionData, r); err != nil {
		writeError(w, http.StatusUnauthorized, "login failed: "+err.Error())
		return
	}

	a.gate.depositVerified()
	if err := a.manager.LoginWithBiometric(r.Context()); err != nil {
		mapError(w, err)
		return
	}

	token := a.newSessionToken()
	a.setSessionCookie(w, token)
	a.audit.log(AuditBiometricLogin, r)
	writeJSON(w, http.StatusOK, a.statusResponse(r))
}

func (a *API) loadStoredCredential(r *http.Request) (*storedCredential, error) {
	raw, err := a.manager.BiometricCredential(r.Context())
	if err != nil {
		return nil, err
	}
	var stored storedCredential
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, auth.ErrBiometricUnavailable
	}
	return &stored, nil
}
