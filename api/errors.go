package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/latchkey/auth"
	"github.com/jmcleod/latchkey/crypto"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates core errors into HTTP outcomes. Lockouts carry the
// countdown and wrong-password attempts carry the remaining count, so the
// UI can display both.
func mapError(w http.ResponseWriter, err error) {
	var verr *auth.VerificationError
	var lerr *auth.LockoutError
	switch {
	case errors.As(err, &lerr):
		retry := int(lerr.Remaining.Seconds() + 0.5)
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:             lerr.Error(),
			RetryAfterSeconds: &retry,
		})
	case errors.As(err, &verr):
		remaining := verr.AttemptsRemaining
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:             verr.Error(),
			AttemptsRemaining: &remaining,
		})
	case errors.Is(err, auth.ErrNotInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrSecretLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrNoSecret):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrPasswordUnavailable):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrBiometricUnavailable):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrBiometricRejected):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, crypto.ErrAuthenticationFailure):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
