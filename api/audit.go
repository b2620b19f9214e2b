package api

import (
	"log/slog"
	"net/http"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditSetup               AuditEvent = "setup"
	AuditLoginSuccess        AuditEvent = "login_success"
	AuditLoginFailure        AuditEvent = "login_failure"
	AuditLoginLockedOut      AuditEvent = "login_locked_out"
	AuditLock                AuditEvent = "lock"
	AuditWipe                AuditEvent = "wipe"
	AuditSecretUnlocked      AuditEvent = "secret_unlocked"
	AuditSecretUpdated       AuditEvent = "secret_updated"
	AuditBiometricRegistered AuditEvent = "biometric_registered"
	AuditBiometricDisabled   AuditEvent = "biometric_disabled"
	AuditBiometricLogin      AuditEvent = "biometric_login"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Passwords and secret material never reach the log.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}
