package auth

import "context"

// Biometric is the interface to a platform authenticator. It is an opaque
// yes/no gate to the UI: it never derives or touches the encryption key,
// and a biometric login leaves the stored secret locked until the password
// is entered.
type Biometric interface {
	// Available reports whether a platform authenticator can be used.
	Available(ctx context.Context) bool
	// Register enrolls the user with the authenticator and returns an
	// opaque credential reference to persist.
	Register(ctx context.Context, userHandle []byte) (credentialID []byte, err error)
	// Authenticate asks the authenticator to verify the user against a
	// previously registered credential.
	Authenticate(ctx context.Context, credentialID []byte) (bool, error)
}
