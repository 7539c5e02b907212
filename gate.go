package linkauthn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SessionCookieName is the name of the cookie carrying the session ID.
const SessionCookieName = "sid"

// AccessGate decides whether a request may access protected resources.
// It is the only place session expiry is checked.
type AccessGate struct {
	sessions *SessionManager
}

// NewAccessGate creates a new AccessGate.
// This function panics if sessions is nil.
func NewAccessGate(sessions *SessionManager) *AccessGate {
	if sessions == nil {
		panic("sessions must be provided")
	}
	return &AccessGate{sessions: sessions}
}

// Authorize returns the identity of the owner of the session with the given ID.
// If there is no such session or it has expired, an error wrapping
// ErrUnauthenticated is returned; expired sessions are destroyed and the
// error also wraps ErrSessionExpired.
func (g *AccessGate) Authorize(ctx context.Context, sessionID string) (Identity, error) {
	sess, err := g.sessions.Validate(ctx, sessionID)
	switch {
	case err == nil:
		return sess.Identity(), nil
	case errors.Is(err, ErrNoSession):
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	case errors.Is(err, ErrSessionExpired):
		if derr := g.sessions.Destroy(ctx, sessionID); derr != nil {
			return Identity{}, fmt.Errorf("%w: %w (%v)", ErrUnauthenticated, err, derr)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	default:
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
}

// Middleware returns a middleware that lets requests through only if they
// carry the cookie of an active session. The Identity of the user is added to
// the request context, see IdentityFromContext().
// Rejected requests are handed to onFail with the error of Authorize().
func (g *AccessGate) Middleware(onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(SessionCookieName); err == nil {
				sessionID = c.Value
			}

			id, err := g.Authorize(r.Context(), sessionID)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

type ctxKey string

const identityContextKey ctxKey = "linkauthn.identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the Identity added by AccessGate.Middleware().
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}
