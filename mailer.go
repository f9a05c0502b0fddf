package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Mailer delivers a rendered notification email.
type Mailer interface {
	Send(ctx context.Context, subject, html string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, subject, html string) error

func (f MailerFunc) Send(ctx context.Context, subject, html string) error {
	return f(ctx, subject, html)
}

// ResendMailer delivers through the Resend transactional email API.
type ResendMailer struct {
	apiKey  string
	from    string
	to      string
	baseURL string
	client  *http.Client
	logger  Logger
}

// ResendMailerOption customizes mailer construction.
type ResendMailerOption func(*ResendMailer)

// WithMailerBaseURL overrides the API endpoint (tests).
func WithMailerBaseURL(baseURL string) ResendMailerOption {
	return func(m *ResendMailer) {
		if baseURL != "" {
			m.baseURL = baseURL
		}
	}
}

// WithMailerHTTPClient overrides the transport.
func WithMailerHTTPClient(client *http.Client) ResendMailerOption {
	return func(m *ResendMailer) {
		if client != nil {
			m.client = client
		}
	}
}

// WithMailerLogger overrides the default logger.
func WithMailerLogger(logger Logger) ResendMailerOption {
	return func(m *ResendMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewResendMailer(apiKey, from, to string, opts ...ResendMailerOption) *ResendMailer {
	m := &ResendMailer{
		apiKey:  apiKey,
		from:    from,
		to:      to,
		baseURL: "https://api.resend.com",
		client:  http.DefaultClient,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

type resendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (m *ResendMailer) Send(ctx context.Context, subject, html string) error {
	body, err := json.Marshal(resendPayload{
		From:    m.from,
		To:      m.to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode email payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build email request")
	}

	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "email request failed")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		m.logger.Error("mail delivery failed: status %d: %s", res.StatusCode, string(detail))
		return ErrDeliveryFailed.Clone().WithMetadata(map[string]any{
			"status":   res.StatusCode,
			"response": string(detail),
		})
	}

	return nil
}

// Email is a rendered notification ready for delivery.
type Email struct {
	Subject string
	HTML    string
}

// BuildEmail renders the admin notification for the given type. Unknown
// types fall through to a generic event log entry.
func BuildEmail(typ NotificationType, data *NotificationData) Email {
	if data == nil {
		data = &NotificationData{}
	}

	name := data.Name
	if name == "" {
		name = "Someone"
	}

	switch typ {
	case TypeContact:
		return Email{
			Subject: fmt.Sprintf("[Contact] %s — %s", name, data.Email),
			HTML: fmt.Sprintf(`<h2>New contact form submission</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Message:</strong></p>
<p>%s</p>`, esc(data.Name), esc(data.Email), esc(data.Message)),
		}
	case TypeAccessRequest:
		return Email{
			Subject: fmt.Sprintf("[Access Request] %s → %s", name, data.Product),
			HTML: fmt.Sprintf(`<h2>New access request</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Occupation:</strong> %s</p>
<p><strong>System:</strong> %s</p>`, esc(data.Name), esc(data.Email), esc(data.Occupation), esc(data.Product)),
		}
	case TypeSignup:
		return Email{
			Subject: fmt.Sprintf("[Signup] %s — %s", name, data.Email),
			HTML: fmt.Sprintf(`<h2>New signup + access request</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Occupation:</strong> %s</p>
<p><strong>System:</strong> %s</p>`, esc(data.Name), esc(data.Email), esc(data.Occupation), esc(data.Product)),
		}
	default:
		return Email{
			Subject: "[Butlerian] Notification",
			HTML:    "<p>Event logged.</p>",
		}
	}
}

var escReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func esc(val string) string {
	return escReplacer.Replace(val)
}
