package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// NotificationType routes a relay payload to the right email template.
// TypeLoginVerify is verification-only and never produces an email.
type NotificationType = string

const (
	TypeContact       NotificationType = "contact"
	TypeAccessRequest NotificationType = "access_request"
	TypeSignup        NotificationType = "signup"
	TypeLoginVerify   NotificationType = "login_verify"
)

// NotificationData is the typed payload forwarded to the notify endpoint.
type NotificationData struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Message    string `json:"message,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Company    string `json:"company,omitempty"`
	Product    string `json:"product,omitempty"`
}

// RelayResult is the normalized success response from the notify endpoint.
type RelayResult struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
}

// DefaultRelayTimeout bounds how long a relay call may wait for the notify
// endpoint. Edge functions can hang well past any transport default, so the
// window is enforced client-side with cancellation.
var DefaultRelayTimeout = 20 * time.Second

// Relay delivers (type, token, payload) to the verify-and-notify endpoint
// and maps its responses into the fixed error taxonomy.
type Relay struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   Logger
}

// RelayOption customizes Relay construction.
type RelayOption func(*Relay)

// WithRelayTimeout overrides the bounded response window.
func WithRelayTimeout(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRelayHTTPClient overrides the transport (useful for tests).
func WithRelayHTTPClient(client *http.Client) RelayOption {
	return func(r *Relay) {
		if client != nil {
			r.client = client
		}
	}
}

// WithRelayLogger overrides the default logger.
func WithRelayLogger(logger Logger) RelayOption {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRelay builds a Relay for the given endpoint. The apiKey rides along as
// the bearer credential the endpoint expects.
func NewRelay(endpoint, apiKey string, opts ...RelayOption) *Relay {
	r := &Relay{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  DefaultRelayTimeout,
		client:   http.DefaultClient,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

type relayRequest struct {
	Type           NotificationType  `json:"type"`
	RecaptchaToken string            `json:"recaptchaToken"`
	Data           *NotificationData `json:"data,omitempty"`
}

type relayResponse struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
	Error   string  `json:"error"`
}

// Send posts the payload and normalizes the outcome. The timeout is wired
// through the request context, so hitting the window aborts the in-flight
// request rather than racing past it.
func (r *Relay) Send(ctx context.Context, typ NotificationType, token string, data *NotificationData) (*RelayResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(relayRequest{
		Type:           typ,
		RecaptchaToken: token,
		Data:           data,
	})
	if err != nil {
		return nil, ErrUnknownResponse
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ErrUnknownResponse
	}

	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
		req.Header.Set("apikey", r.apiKey)
	}

	res, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.logger.Warn("relay %s timed out after %s", typ, r.timeout)
			return nil, ErrRelayTimeout
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			r.logger.Info("relay %s aborted by caller", typ)
			return nil, ctx.Err()
		}
		r.logger.Error("relay %s transport error: %v", typ, err)
		return nil, ErrUnknownResponse
	}
	defer res.Body.Close()

	var parsed relayResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&parsed)

	if res.StatusCode == http.StatusForbidden {
		return nil, ErrVerificationFailed
	}

	if res.StatusCode == http.StatusRequestTimeout || res.StatusCode == http.StatusGatewayTimeout {
		return nil, ErrRelayTimeout
	}

	if res.StatusCode >= 400 {
		if decodeErr == nil && parsed.Error != "" {
			return nil, ErrDeliveryFailed.Clone().WithMetadata(map[string]any{
				"response": parsed.Error,
			})
		}
		return nil, ErrDeliveryFailed
	}

	if decodeErr != nil {
		return nil, ErrUnknownResponse
	}

	if parsed.Error != "" {
		return nil, ErrDeliveryFailed.Clone().WithMetadata(map[string]any{
			"response": parsed.Error,
		})
	}

	return &RelayResult{
		Success: parsed.Success,
		Score:   parsed.Score,
	}, nil
}
