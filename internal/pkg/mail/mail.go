package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// ErrNoRecipients is returned when a message has no To addresses.
var ErrNoRecipients = errors.New("mail: no recipients")

// Config holds mail provider settings.
type Config struct {
	Enable    bool
	Host      string
	Port      int
	User      string
	Pass      string
	From      string
	ReplyTo   string
	UseResend bool
	ResendKey string
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Transport sends emails via SMTP or Resend.
type Transport struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Transport {
	return &Transport{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}}
}

// Enabled reports whether messages actually leave the process.
func (t *Transport) Enabled() bool { return t.cfg.Enable }

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
// A disabled transport accepts and drops every message.
func (t *Transport) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if !t.cfg.Enable {
		return nil
	}
	if t.cfg.UseResend && t.cfg.ResendKey != "" {
		return t.sendResend(ctx, msg)
	}
	return t.sendSMTP(msg)
}

func (t *Transport) from() string {
	if t.cfg.From != "" {
		return t.cfg.From
	}
	return t.cfg.User
}

func (t *Transport) sendSMTP(msg Message) error {
	port := t.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, port)
	from := t.from()

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if t.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", t.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	var auth smtp.Auth
	if t.cfg.User != "" {
		auth = smtp.PlainAuth("", t.cfg.User, t.cfg.Pass, t.cfg.Host)
	}
	return smtp.SendMail(addr, auth, from, msg.To, body.Bytes())
}

func (t *Transport) sendResend(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"from":    t.from(),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp) //nolint:errcheck
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}
