package onboard

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// VerificationEmail renders the subject and HTML body for a code delivery.
// The code rides in the subject so it shows up in notification previews.
func VerificationEmail(code int64) (subject, body string) {
	subject = fmt.Sprintf("%06d is your verification code", code)
	body = fmt.Sprintf(`<html>
<body style="font-family: sans-serif;">
	<p>Use this code to verify your email address:</p>
	<p style="font-size: 28px; letter-spacing: 4px;"><strong>%06d</strong></p>
	<p>The code expires in 2 hours. If you did not request it, ignore this email.</p>
</body>
</html>`, code)
	return subject, body
}

// SMTPNotifier delivers HTML email over a plain SMTP relay.
type SMTPNotifier struct {
	addr   string
	from   string
	auth   smtp.Auth
	logger Logger
}

// NewSMTPNotifier points the notifier at host:port, sending as from.
func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{
		addr:   addr,
		from:   from,
		logger: defLogger{},
	}
}

// WithPlainAuth configures PLAIN authentication against the relay.
func (n *SMTPNotifier) WithPlainAuth(username, password string) *SMTPNotifier {
	host := n.addr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	n.auth = smtp.PlainAuth("", username, password, host)
	return n
}

func (n *SMTPNotifier) WithLogger(logger Logger) *SMTPNotifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// Send delivers a single HTML message. smtp.SendMail has no context hook, so
// cancellation is only checked up front.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "send cancelled")
	}

	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n")

	if err := smtp.SendMail(n.addr, n.auth, n.from, []string{to}, []byte(msg)); err != nil {
		n.logger.Error("smtp delivery to %s failed: %v", to, err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp delivery failed")
	}

	return nil
}
