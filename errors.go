package linkauthn

import "errors"

var (
	// ErrInvalidAddress is returned if the email address is malformed or is
	// not in one of the accepted domains.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrUnknownUser is returned if no account is registered with the email.
	ErrUnknownUser = errors.New("unknown user")

	// ErrTokenInvalid is returned for malformed, unknown, already used or
	// identity-mismatched tokens.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrIdentityMismatch is wrapped by ErrTokenInvalid errors if the uid in
	// the token is not the uid of the account holding the secret.
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrTokenExpired is returned if a token is redeemed after Config.TokenTTL.
	ErrTokenExpired = errors.New("token expired")

	// ErrDelivery is returned if the login email could not be sent.
	// The issued secret remains valid in this case.
	ErrDelivery = errors.New("email delivery failed")

	// ErrDecode is returned by DecodeToken for inputs that do not decode to
	// an AuthToken.
	ErrDecode = errors.New("malformed token")

	// ErrNotFound is returned by stores if the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoSession is returned if there is no session for a reference.
	ErrNoSession = errors.New("no session")

	// ErrSessionExpired is returned if a session is older than SessionConfig.TTL.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthenticated is returned by AccessGate if the request may not
	// access protected resources.
	ErrUnauthenticated = errors.New("unauthenticated")
)
