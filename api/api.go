// Package api exposes the authentication core to the host application's
// local UI over HTTP, including the WebAuthn ceremonies that back the
// platform biometric unlock.
package api

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jmcleod/latchkey/auth"
)

const webauthnCeremonyTTL = 5 * time.Minute

// API holds the dependencies needed by the REST handlers.
type API struct {
	manager  *auth.Manager
	gate     *BiometricGate
	webauthn *webauthn.WebAuthn
	audit    *auditLogger

	sessionMu    sync.Mutex
	sessionToken string

	ceremonyMu          sync.Mutex
	pendingRegistration *ceremonyState
	pendingLogin        *ceremonyState
}

type ceremonyState struct {
	UserHandle  []byte
	SessionData string
	ExpiresAt   time.Time
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithWebAuthn enables the biometric unlock endpoints using the given
// relying-party configuration.
func WithWebAuthn(w *webauthn.WebAuthn) Option {
	return func(a *API) {
		a.webauthn = w
	}
}

// WithBiometricGate wires the ceremony gate shared with the Manager. The
// same gate instance must be passed to auth.WithBiometric.
func WithBiometricGate(gate *BiometricGate) Option {
	return func(a *API) {
		a.gate = gate
	}
}

// New creates a new API instance over the authentication manager.
func New(manager *auth.Manager, opts ...Option) *API {
	a := &API{
		manager: manager,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/setup", a.Setup)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/lock", a.Lock)
	r.Post("/auth/wipe", a.Wipe)
	r.Get("/auth/status", a.Status)
	r.Post("/auth/visibility", a.Visibility)

	r.Group(func(r chi.Router) {
		r.Use(a.RequireSession)
		r.Post("/auth/unlock-secret", a.UnlockSecret)
		r.Get("/auth/secret", a.GetSecret)
		r.Put("/auth/secret", a.PutSecret)
		r.Put("/auth/target", a.SetDefaultTarget)
		r.Post("/auth/biometric/register/begin", a.BeginBiometricRegistration)
		r.Post("/auth/biometric/register/finish", a.FinishBiometricRegistration)
		r.Delete("/auth/biometric", a.DisableBiometric)
	})

	r.Post("/auth/biometric/login/begin", a.BeginBiometricLogin)
	r.Post("/auth/biometric/login/finish", a.FinishBiometricLogin)

	return r
}
