package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type SMTPMailer struct {
	Host   string
	Port   int
	From   Address
	User   string
	Pass   string
	UseTLS bool // 本地 Mailpit(1025) 用 false
}

func NewSMTPMailer(host string, port int, from Address, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		Host:   strings.TrimSpace(host),
		Port:   port,
		From:   Address{Name: strings.TrimSpace(from.Name), Email: strings.TrimSpace(from.Email)},
		User:   strings.TrimSpace(user),
		Pass:   strings.TrimSpace(pass),
		UseTLS: useTLS,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, to, subject, text, html string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return deliveryErr(errors.New("empty recipient email"))
	}
	if err := ctx.Err(); err != nil {
		return deliveryErr(err)
	}
	msg := buildMIME(s.From, to, subject, text, html, "alt-"+uuid.NewString())
	return deliveryErr(s.deliver(to, msg))
}

func (s *SMTPMailer) deliver(to string, msg []byte) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	// Mailpit：无认证、无 TLS
	if !s.UseTLS && s.User == "" {
		return smtp.SendMail(addr, nil, s.From.Email, []string{to}, msg)
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	// 先走 SendMail（服务端支持时自动 STARTTLS）
	err := smtp.SendMail(addr, auth, s.From.Email, []string{to}, msg)
	if err == nil || !s.UseTLS {
		return err
	}

	// 隐式 TLS（465）兜底
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return err
	}
	defer conn.Close()
	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer c.Quit()
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.From.Email); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// buildMIME multipart/alternative：先 text 后 html
func buildMIME(from Address, to, subject, text, html, boundary string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", text)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", html)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}
