package notify

import (
	"gopkg.in/mail.v2"
)

// EmailPusher sends notifications as plain-text mail over SMTP.
type EmailPusher struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailPusher creates an SMTP pusher.
func NewEmailPusher(host string, port int, username, password, from string) *EmailPusher {
	return &EmailPusher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers one message over a fresh SMTP session.
func (p *EmailPusher) Send(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(p.host, p.port, p.username, p.password)
	return d.DialAndSend(m)
}
