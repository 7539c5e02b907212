package linkauthn

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultBaseURL is the default for Config.BaseURL.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultSiteName is the default for Config.SiteName.
	DefaultSiteName = "the course info system"

	// DefaultSecretBytes is the default for Config.SecretBytes.
	DefaultSecretBytes = 16

	// MinSecretBytes is the minimum for Config.SecretBytes (64 bits).
	MinSecretBytes = 8

	// DefaultTokenTTL is the default for Config.TokenTTL.
	DefaultTokenTTL = 60 * time.Second

	// RedeemPath is the path of login links relative to Config.BaseURL.
	RedeemPath = "/redeem"
)

// DefaultAllowedDomains is the default for Config.AllowedDomains.
var DefaultAllowedDomains = []string{"cs.hku.hk", "connect.hku.hk"}

// Config holds Authenticator configuration.
// A zero value is a valid configuration, see constants for default values.
type Config struct {
	// BaseURL is the external URL of the site, login links point under it.
	BaseURL string `yaml:"base_url"`

	// SiteName is presented in login emails.
	SiteName string `yaml:"site_name"`

	// AllowedDomains lists the email domains users may log in from.
	AllowedDomains []string `yaml:"allowed_domains"`

	// SecretBytes tells how many random bytes to use for secrets.
	// The actual secret is a hex string, will be twice as many hex digits.
	// Values below MinSecretBytes are raised to MinSecretBytes.
	SecretBytes int `yaml:"secret_bytes"`

	// TokenTTL tells how long an issued token remains redeemable.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// EmailSubject is the subject of login emails.
	EmailSubject string `yaml:"email_subject"`

	// EmailTemplate is the html/template text of login emails,
	// executed with EmailParams.
	EmailTemplate string `yaml:"email_template"`

	// Clock is the source of time for expiry checks.
	Clock clockwork.Clock `yaml:"-"`
}

// Authenticator issues and redeems login tokens.
// It's safe to use it concurrently from multiple goroutines.
type Authenticator struct {
	// store of the pending secrets.
	store SecretStore

	// mailer to send login links with.
	mailer Mailer

	// cfg to use
	cfg Config

	// emailTempl is the parsed Config.EmailTemplate.
	emailTempl *template.Template
}

// NewAuthenticator creates a new Authenticator.
// This function panics if store or mailer are nil, or if Config.EmailTemplate
// is invalid.
func NewAuthenticator(store SecretStore, mailer Mailer, cfg Config) *Authenticator {
	if store == nil {
		panic("store must be provided")
	}
	if mailer == nil {
		panic("mailer must be provided")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}
	if len(cfg.AllowedDomains) == 0 {
		cfg.AllowedDomains = DefaultAllowedDomains
	}
	if cfg.SecretBytes == 0 {
		cfg.SecretBytes = DefaultSecretBytes
	}
	if cfg.SecretBytes < MinSecretBytes {
		cfg.SecretBytes = MinSecretBytes
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.EmailSubject == "" {
		cfg.EmailSubject = DefaultEmailSubject
	}
	if cfg.EmailTemplate == "" {
		cfg.EmailTemplate = DefaultEmailTemplate
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Authenticator{
		store:      store,
		mailer:     mailer,
		cfg:        cfg,
		emailTempl: template.Must(template.New("email").Parse(cfg.EmailTemplate)),
	}
}

// Config returns the effective configuration (with defaults applied).
func (a *Authenticator) Config() Config {
	return a.cfg
}

// NormalizeEmail validates the given email address and returns its
// lowercased form. ErrInvalidAddress is returned if the address is malformed
// or its domain is not allowed.
func (a *Authenticator) NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidAddress
	}

	email = strings.ToLower(email)
	domain := email[strings.LastIndexByte(email, '@')+1:]
	for _, d := range a.cfg.AllowedDomains {
		if strings.EqualFold(domain, d) {
			return email, nil
		}
	}
	return "", ErrInvalidAddress
}

// Issue issues a new login token for the given email address, and emails
// the login link to the address. Should be called when a user wants to login.
//
// A pending token of the same user is invalidated. The secret is persisted
// before the email is sent; if sending fails, an error wrapping ErrDelivery
// is returned and the persisted secret is left in place.
func (a *Authenticator) Issue(ctx context.Context, email string) (Identity, error) {
	email, err := a.NormalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}

	secret, err := a.newSecret()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to generate secret: %w", err)
	}

	account, err := a.store.IssueSecret(ctx, email, secret, a.cfg.Clock.Now())
	if err != nil {
		return Identity{}, err
	}

	link := a.Link(EncodeToken(account.UID, secret))
	body := &bytes.Buffer{}
	params := &EmailParams{
		Email:    account.Email,
		SiteName: a.cfg.SiteName,
		Link:     link,
		TokenTTL: a.cfg.TokenTTL,
	}
	if err := a.emailTempl.Execute(body, params); err != nil {
		return account.Identity(), fmt.Errorf("%w: failed to execute email template: %v", ErrDelivery, err)
	}

	if err := a.mailer.Send(ctx, account.Email, a.cfg.EmailSubject, body.String()); err != nil {
		return account.Identity(), fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	return account.Identity(), nil
}

// Link returns the login link for the given token.
func (a *Authenticator) Link(token string) string {
	return a.cfg.BaseURL + RedeemPath + "?" + url.Values{"token": {token}}.Encode()
}

// Redeem verifies the given token and consumes its secret.
// Should be called when a user follows a login link.
//
// Possible failures are ErrTokenInvalid (malformed, unknown, already used or
// identity-mismatched token) and ErrTokenExpired. Malformed tokens also wrap
// ErrDecode, mismatched ones ErrIdentityMismatch. An identity mismatch is
// reported even if the token is also expired.
func (a *Authenticator) Redeem(ctx context.Context, token string) (Identity, error) {
	t, err := DecodeToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	account, err := a.store.FindBySecret(ctx, t.Secret)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrTokenInvalid
		}
		return Identity{}, err
	}

	if account.UID != t.UID {
		return Identity{}, fmt.Errorf("%w: %w", ErrTokenInvalid, ErrIdentityMismatch)
	}

	if account.SecretIssuedAt == nil || a.cfg.Clock.Since(account.IssuedAt()) > a.cfg.TokenTTL {
		return Identity{}, ErrTokenExpired
	}

	if err := a.store.Consume(ctx, account.UID, t.Secret); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: already used", ErrTokenInvalid)
		}
		return Identity{}, err
	}

	return account.Identity(), nil
}

// newSecret returns a new random, hex encoded secret.
func (a *Authenticator) newSecret() (string, error) {
	b := make([]byte, a.cfg.SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
