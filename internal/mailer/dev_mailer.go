package mailer

import (
	"context"

	"go.uber.org/zap"
)

// DevMailer 不真正发信，只把邮件打到日志里；本地联调用
type DevMailer struct{ log *zap.Logger }

func NewDevMailer(l *zap.Logger) *DevMailer { return &DevMailer{log: l.Named("mail")} }

func (d *DevMailer) Send(ctx context.Context, to, subject, text, _ string) error {
	if err := ctx.Err(); err != nil {
		return deliveryErr(err)
	}
	d.log.Info("[DEV MAIL]",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("text", text),
	)
	return nil
}
