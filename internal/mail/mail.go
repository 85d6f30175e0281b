package mail

import (
	"context"
	"fmt"
	"html"
	"time"
)

type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func PasswordResetMessage(to string, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your portal password",
		HTMLBody: fmt.Sprintf(
			`<p>A password reset was requested for your account.</p>`+
				`<p><a href="%s">Reset your password</a></p>`+
				`<p>This link expires in %d minutes. If you did not request it, ignore this email.</p>`,
			html.EscapeString(link), int(ttl.Minutes()),
		),
	}
}

func EmailOTPMessage(to string, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your email verification code",
		HTMLBody: fmt.Sprintf(
			`<p>Your verification code is <strong>%s</strong>.</p>`+
				`<p>It expires in %d minutes.</p>`,
			html.EscapeString(code), int(ttl.Minutes()),
		),
	}
}
