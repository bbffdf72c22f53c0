package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// SMTPConfig configures direct SMTP delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
	Links    Links
}

// SMTPGateway renders an HTML message and delivers it over SMTP with
// STARTTLS when the server offers it.
type SMTPGateway struct {
	cfg  SMTPConfig
	tmpl *template.Template
}

var subjects = map[Kind]string{
	KindVerification:  "Confirm your account",
	KindPasswordReset: "Reset your password",
}

// NewSMTPGateway validates cfg and parses the embedded templates.
func NewSMTPGateway(cfg SMTPConfig) (*SMTPGateway, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.Host == "" {
		return nil, errors.New("notify: smtp host required")
	}
	if cfg.From == "" || strings.ContainsAny(cfg.From, "\r\n") {
		return nil, errors.New("notify: smtp from address required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("notify: parse templates: %w", err)
	}
	return &SMTPGateway{cfg: cfg, tmpl: tmpl}, nil
}

func (g *SMTPGateway) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := g.buildMessage(msg)
	if err != nil {
		return err
	}
	return g.deliver(ctx, msg.Address, body)
}

func (g *SMTPGateway) buildMessage(msg Message) ([]byte, error) {
	var html bytes.Buffer
	err := g.tmpl.ExecuteTemplate(&html, string(msg.Kind)+".html", map[string]any{
		"Link":      g.cfg.Links.For(msg),
		"Token":     msg.Token,
		"ExpiresAt": msg.ExpiresAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: render %s: %w", msg.Kind, err)
	}

	from := g.cfg.From
	if name := strings.TrimSpace(g.cfg.FromName); name != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), g.cfg.From)
	}

	headers := []string{
		"From: " + from,
		"To: " + msg.Address,
		"Subject: " + mime.QEncoding.Encode("utf-8", subjects[msg.Kind]),
		"Date: " + time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		"",
	}
	return append([]byte(strings.Join(headers, "\r\n")), html.Bytes()...), nil
}

func (g *SMTPGateway) deliver(ctx context.Context, to string, body []byte) error {
	addr := net.JoinHostPort(g.cfg.Host, strconv.Itoa(g.cfg.Port))

	d := net.Dialer{Timeout: g.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: smtp dial: %w", err)
	}
	deadline := time.Now().Add(g.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, g.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: g.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("notify: smtp starttls: %w", err)
		}
	}
	if g.cfg.Username != "" {
		auth := smtp.PlainAuth("", g.cfg.Username, g.cfg.Password, g.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("notify: smtp auth: %w", err)
		}
	}

	if err := c.Mail(g.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
