package mailer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

const mailerSendTimeout = 10 * time.Second

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey string, from Address) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && from.Email != "",
		from:    mailersend.From{Name: from.Name, Email: from.Email},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSendClient) Send(ctx context.Context, to, subject, text, html string) error {
	if !m.enabled {
		return deliveryErr(errors.New("mailersend not configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, mailerSendTimeout)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: to}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}
	_, err := m.client.Email.Send(ctx, msg)
	return deliveryErr(err)
}
