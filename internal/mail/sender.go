package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// Sender 抽象外部邮件投递通道。
// 实现方接收完整的 MIME 报文，不保证送达确认。
type Sender interface {
	Send(ctx context.Context, from string, to []string, raw []byte) error
}

// MailgunSender 通过 Mailgun API 投递邮件
type MailgunSender struct {
	mg     mailgun.Mailgun
	domain string
}

// NewMailgunSender 创建 Mailgun 投递通道。
// domain 为发信域名（如 emailthing.dev），apiKey 为邮件网关的认证令牌。
func NewMailgunSender(domain, apiKey string) (*MailgunSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mail auth token is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("mail sender domain is required")
	}

	return &MailgunSender{
		mg:     mailgun.NewMailgun(domain, apiKey),
		domain: domain,
	}, nil
}

// Send 投递一封已构建好的 MIME 邮件
func (s *MailgunSender) Send(ctx context.Context, from string, to []string, raw []byte) error {
	message := mailgun.NewMIMEMessage(io.NopCloser(bytes.NewReader(raw)), to...)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, _, err := s.mg.Send(ctx, message)
	if err != nil {
		if strings.Contains(err.Error(), "401") {
			return fmt.Errorf("unauthorized: please verify the mail auth token and domain settings")
		}
		return fmt.Errorf("failed to send email to %s: %w", strings.Join(to, ","), err)
	}

	return nil
}

// LogSender 只记录日志不真实投递，用于未配置邮件网关的环境。
type LogSender struct {
	log *zap.Logger
}

// NewLogSender 创建日志投递通道
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

// Send 记录投递意图并丢弃邮件内容
func (s *LogSender) Send(_ context.Context, from string, to []string, raw []byte) error {
	s.log.Info("mail delivery disabled, dropping message",
		zap.String("from", from),
		zap.Strings("to", to),
		zap.Int("size", len(raw)),
	)
	return nil
}
