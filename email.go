package linkauthn

import (
	"context"
	"time"
)

// Mailer sends emails.
type Mailer interface {
	// Send sends an email with the given subject and HTML body to the given address.
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc is an adapter to use ordinary functions as a Mailer.
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send implements Mailer by calling f.
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// EmailParams is passed as data when executing the email template.
type EmailParams struct {
	Email    string
	SiteName string
	Link     string
	TokenTTL time.Duration
}

// DefaultEmailSubject is the default for Config.EmailSubject.
const DefaultEmailSubject = "Your Authentication Token"

// DefaultEmailTemplate is the default for Config.EmailTemplate.
const DefaultEmailTemplate = `<p>Hi {{.Email}},</p>
<p>You can log on to {{.SiteName}} via the following link:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This token will expire in {{printf "%.f" .TokenTTL.Seconds}} seconds.</p>
<p>If you did not request a login link, you can ignore this email.</p>
`
