package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/iliria/erp-backend/pkg/config"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

const (
	defaultBaseURL        = "https://api.sendgrid.com"
	sendPath              = "/v3/mail/send"
	responseBodyReadLimit = 1024
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Attachment is an inline file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single HTML email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTML        string
	Text        string
	ReplyTo     string
	Attachments []Attachment
}

// Validate checks the recipient and required content.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient email")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	if m.HTML == "" && m.Text == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}
	return nil
}

// Client sends mail through the SendGrid v3 API.
type Client struct {
	api     *rest.Client
	baseURL string
	apiKey  string
	from    *sgmail.Email
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.api = &rest.Client{HTTPClient: client}
		}
	}
}

func NewClient(cfg config.SendgridConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sendgrid from email is required")
	}

	client := &Client{
		api:     &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		from:    sgmail.NewEmail(cfg.FromName, strings.TrimSpace(cfg.DefaultFrom)),
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *Client) build(msg Message) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)

	if msg.ReplyTo != "" {
		m.SetReplyTo(sgmail.NewEmail("", msg.ReplyTo))
	}
	// text/plain must precede text/html
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	for _, a := range msg.Attachments {
		att := sgmail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}
	return m
}

// Send posts msg to SendGrid. Non-2xx responses map to CodeDependency.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.api == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "mail client not configured")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(c.apiKey, sendPath, c.baseURL)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(c.build(msg))

	resp, err := c.api.SendWithContext(ctx, req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute mail request")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := strings.TrimSpace(resp.Body)
		if len(body) > responseBodyReadLimit {
			body = body[:responseBodyReadLimit]
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, body), "mail request failed")
	}
	return nil
}

// LogSender records messages instead of delivering them. Used when email is
// disabled by feature flag.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if s.Logger != nil {
		ctx = s.Logger.WithFields(ctx, map[string]any{
			"mail_to":      msg.To,
			"mail_subject": msg.Subject,
		})
		s.Logger.Info(ctx, "email delivery disabled; message logged only")
	}
	return nil
}
