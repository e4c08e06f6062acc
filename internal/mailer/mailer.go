package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fortirent-auth/internal/core/config"
)

// ErrDelivery 所有驱动的发送失败都包一层，调用方用 errors.Is 判断
var ErrDelivery = errors.New("mail delivery failed")

// Sender 发信契约：纯文本 + HTML 两个版本
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// New 按 mail.driver 选择实现
func New(c config.Mail, l *zap.Logger) (Sender, error) {
	from := Address{Name: c.FromName, Email: c.FromEmail}
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "dev":
		return NewDevMailer(l), nil
	case "smtp":
		if c.SMTP.Host == "" {
			return nil, errors.New("mail.smtp.host is required")
		}
		return NewSMTPMailer(c.SMTP.Host, c.SMTP.Port, from, c.SMTP.User, c.SMTP.Pass, c.SMTP.UseTLS), nil
	case "mailersend":
		m := NewMailerSend(c.MailerSendAPIKey, from)
		if !m.enabled {
			return nil, errors.New("mailersend requires mail.mailersend_api_key and mail.from_email")
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", c.Driver)
	}
}

type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%q <%s>", a.Name, a.Email)
}

func deliveryErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDelivery, err)
}
