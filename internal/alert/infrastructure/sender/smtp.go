// Package sender 邮件出站实现
package sender

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/wyfcoding/microfinance/internal/alert/domain"
	"github.com/wyfcoding/microfinance/pkg/logger"
)

// SMTPConfig SMTP 连接配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender 标准 SMTP 协议的邮件发送器
type SMTPSender struct {
	cfg  SMTPConfig
	addr string
}

func NewSMTPSender(cfg SMTPConfig) domain.Sender {
	return &SMTPSender{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	logger.Debug(ctx, "sending email", "to", to, "subject", subject)

	msg := []byte("From: " + s.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(s.addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
