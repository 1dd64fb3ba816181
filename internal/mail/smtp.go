package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Config holds SMTP connection parameters for one user's transport.
// Secure selects implicit TLS on connect; otherwise the connection is
// upgraded with STARTTLS when the server advertises it.
type Config struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
}

// SMTPSender implements Sender over the standard SMTP protocol.
type SMTPSender struct {
	config Config
	auth   smtp.Auth
}

// NewSMTPSender validates the connection parameters and builds a transport.
// All fields are required so misconfiguration fails at construction rather
// than mid-campaign.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidConfig)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidConfig)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidConfig)
	}

	return &SMTPSender{
		config: cfg,
		auth:   smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
	}, nil
}

// Send delivers one message over a fresh SMTP session.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	client, err := s.dial()
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	defer func() { _ = client.Close() }()

	if err := s.transact(client, msg); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}

// Verify dials and authenticates without sending mail, backing the
// settings test endpoint.
func (s *SMTPSender) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrVerifyFailed, err)
	}

	client, err := s.dial()
	if err != nil {
		return errors.Join(ErrVerifyFailed, err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Auth(s.auth); err != nil {
		return errors.Join(ErrVerifyFailed, fmt.Errorf("authentication failed: %w", err))
	}
	return client.Quit()
}

func (s *SMTPSender) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	if s.config.Secure {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
		if err != nil {
			return nil, fmt.Errorf("failed to connect with TLS: %w", err)
		}
		client, err := smtp.NewClient(conn, s.config.Host)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create smtp client: %w", err)
		}
		return client, nil
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	return client, nil
}

func (s *SMTPSender) transact(client *smtp.Client, msg Message) error {
	if err := client.Auth(s.auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := writer.Write(buildMessage(msg, s.config.Host)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// Some servers drop the connection right after DATA; the message is
	// already accepted at that point, so Quit errors are not fatal.
	_ = client.Quit()
	return nil
}

func buildMessage(msg Message, host string) []byte {
	contentType := "text/plain; charset=\"UTF-8\""
	body := msg.Text
	if msg.HTML != "" {
		contentType = "text/html; charset=\"UTF-8\""
		body = msg.HTML
	}

	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString(fmt.Sprintf("Message-ID: <%d@%s>\r\n", time.Now().UnixNano(), host))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return []byte(b.String())
}
