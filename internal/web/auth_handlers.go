package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/icza/linkauthn"
	"github.com/icza/linkauthn/internal/metrics"
)

// Messages shown on the login page.
const (
	msgInvalidAddress  = "Please enter a valid HKU or Connect email address."
	msgUnknownUserFmt  = "Unknown user - we don't have the record for %s in the system."
	msgCheckEmail      = "Please check your email to get the URL to access the course info page"
	msgDeliveryFailed  = "We could not send the login email. Please try again later."
	msgInternal        = "Something went wrong. Please try again later."
	msgBadToken        = "Fail to authenticate - Invalid token!"
	msgIncorrectSecret = "Fail to authenticate - incorrect secret!"
	msgUnknownStudent  = "Unknown user - cannot identify the student."
	msgTokenExpired    = "Fail to authenticate - OTP expired!"
	msgSessionExpired  = "Session expired. Please login again."
)

type loginPage struct {
	Message string
	// Info marks Message as a notice rather than an error.
	Info bool
}

// handleLoginPage shows the login form. Login links of the form
// /login?token=... are redeemed too.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != "" {
		s.handleRedeem(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginPage{})
}

// handleLogin issues a login token for the posted email address.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	id, err := s.auth.Issue(r.Context(), email)
	switch {
	case err == nil:
		s.metrics.TokensIssuedTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		s.log(r).WithField("uid", id.UID).Info("Login token issued")
		s.render(w, r, http.StatusOK, "login.html", loginPage{Message: msgCheckEmail, Info: true})

	case errors.Is(err, linkauthn.ErrInvalidAddress):
		s.metrics.TokensIssuedTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		s.render(w, r, http.StatusBadRequest, "login.html", loginPage{Message: msgInvalidAddress})

	case errors.Is(err, linkauthn.ErrUnknownUser):
		s.metrics.TokensIssuedTotal.WithLabelValues(metrics.OutcomeUnknown).Inc()
		s.log(r).Info("Login requested for unknown user")
		s.render(w, r, http.StatusNotFound, "login.html", loginPage{Message: fmt.Sprintf(msgUnknownUserFmt, email)})

	case errors.Is(err, linkauthn.ErrDelivery):
		s.metrics.TokensIssuedTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.log(r).WithError(err).WithField("uid", id.UID).Error("Failed to send login email")
		s.render(w, r, http.StatusServiceUnavailable, "login.html", loginPage{Message: msgDeliveryFailed})

	default:
		s.metrics.TokensIssuedTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.log(r).WithError(err).Error("Failed to issue login token")
		s.render(w, r, http.StatusInternalServerError, "login.html", loginPage{Message: msgInternal})
	}
}

// handleRedeem redeems the token of a login link and opens a session.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	id, err := s.auth.Redeem(r.Context(), token)
	if err != nil {
		msg, status, outcome := redeemFailure(err)
		s.metrics.TokensRedeemedTotal.WithLabelValues(outcome).Inc()
		entry := s.log(r).WithField("outcome", outcome)
		if status == http.StatusInternalServerError {
			entry.WithError(err).Error("Failed to redeem login token")
		} else {
			entry.Info("Login token rejected")
		}
		s.render(w, r, status, "login.html", loginPage{Message: msg})
		return
	}
	s.metrics.TokensRedeemedTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	// Redeem succeeded, so the token decodes.
	t, _ := linkauthn.DecodeToken(token)
	client := &linkauthn.Client{UserAgent: r.UserAgent(), IP: clientIP(r)}

	sess, err := s.sessions.Open(r.Context(), s.sessionID(r), id, t.Secret, client)
	if err != nil {
		s.log(r).WithError(err).WithField("uid", id.UID).Error("Failed to open session")
		s.render(w, r, http.StatusInternalServerError, "login.html", loginPage{Message: msgInternal})
		return
	}
	s.metrics.SessionsOpenedTotal.Inc()
	s.log(r).WithField("uid", id.UID).Info("Session opened")

	s.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, "/courseinfo/mylist", http.StatusSeeOther)
}

// redeemFailure maps a Redeem error to the message, status and metric outcome.
func redeemFailure(err error) (msg string, status int, outcome string) {
	switch {
	case errors.Is(err, linkauthn.ErrTokenExpired):
		return msgTokenExpired, http.StatusUnauthorized, metrics.OutcomeExpired
	case errors.Is(err, linkauthn.ErrDecode):
		return msgBadToken, http.StatusBadRequest, metrics.OutcomeInvalid
	case errors.Is(err, linkauthn.ErrIdentityMismatch):
		return msgUnknownStudent, http.StatusUnauthorized, metrics.OutcomeInvalid
	case errors.Is(err, linkauthn.ErrTokenInvalid):
		return msgIncorrectSecret, http.StatusUnauthorized, metrics.OutcomeInvalid
	default:
		return msgInternal, http.StatusInternalServerError, metrics.OutcomeError
	}
}

// handleLogout destroys the session of the client.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), s.sessionID(r)); err != nil {
		s.log(r).WithError(err).Error("Failed to destroy session")
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// denyAccess handles requests rejected by the access gate.
func (s *Server) denyAccess(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, linkauthn.ErrSessionExpired):
		s.metrics.GateDecisionsTotal.WithLabelValues("expired").Inc()
		s.clearSessionCookie(w)
		s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{Message: msgSessionExpired})
	case errors.Is(err, linkauthn.ErrNoSession):
		s.metrics.GateDecisionsTotal.WithLabelValues("deny").Inc()
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		s.metrics.GateDecisionsTotal.WithLabelValues("error").Inc()
		s.log(r).WithError(err).Error("Failed to authorize request")
		s.render(w, r, http.StatusInternalServerError, "login.html", loginPage{Message: msgInternal})
	}
}

// allowAccess counts requests let through by the access gate.
func (s *Server) allowAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.GateDecisionsTotal.WithLabelValues("allow").Inc()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionID(r *http.Request) string {
	if c, err := r.Cookie(linkauthn.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     linkauthn.SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessions.Config().TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     linkauthn.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
