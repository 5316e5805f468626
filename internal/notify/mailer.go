// Package notify はアカウント関連メールの組み立てと非同期送信を提供する。
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// Message は送信するメール1通を表す。
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig はSMTPMailerの設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendMailFunc はsmtp.SendMailのシグネチャ。テスト時に差し替える。
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer はSMTPサーバー経由でメールを送信する。
type SMTPMailer struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewSMTPMailer はSMTPMailerを生成する。
// Usernameが空の場合は認証なしで送信する。
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Send はメールを送信する。smtp.SendMailはコンテキストを受け取らないため、
// 送信開始前にキャンセル済みかどうかのみ確認する。
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.sendMail(m.addr, m.auth, m.from, []string{msg.To}, buildMIME(m.from, msg)); err != nil {
		return fmt.Errorf("failed to send mail via smtp: %w", err)
	}
	return nil
}

// buildMIME はUTF-8プレーンテキストのメール本文を組み立てる。
func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer はメールを送信せずログに記録する。開発環境向け。
// OTPを含む本文は出力しない。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send は宛先と件名をログに出力する。
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("メール送信をスキップしました（SMTP未設定）",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
