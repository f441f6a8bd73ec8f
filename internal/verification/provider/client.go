// Package provider holds the HTTP client for the external identity
// verification provider and the wire shapes of its session API. The client
// only moves bytes; response validation order (parse, status, authenticity)
// is owned by the verification service.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "attest/pkg/domain-errors"
)

const sessionsPath = "sessions"

// SignatureHeader is the authenticity tag header on provider responses and
// webhook deliveries. Lookup through http.Header is case-insensitive.
const SignatureHeader = "signature"

// DefaultTimeout bounds the outbound call when the config leaves it unset.
const DefaultTimeout = 10 * time.Second

// SessionRequest is the session-creation payload.
type SessionRequest struct {
	Verification VerificationRequest `json:"verification"`
}

// VerificationRequest carries the fixed flow flags, the document sub-object,
// merged instructions, and the optional callback/redirect URLs.
type VerificationRequest struct {
	Callback     string         `json:"callback,omitempty"`
	Redirect     string         `json:"redirect,omitempty"`
	VendorData   string         `json:"vendorData"`
	Lang         string         `json:"lang"`
	Features     []string       `json:"features"`
	AutoStart    bool           `json:"autoStart"`
	Document     Document       `json:"document"`
	Instructions map[string]any `json:"instructions,omitempty"`
	Timestamp    string         `json:"timestamp"`
}

type Document struct {
	Type    string `json:"type"`
	Country string `json:"country,omitempty"`
}

// SessionEnvelope is the parsed body of a session-creation response.
type SessionEnvelope struct {
	Status       string `json:"status"`
	Verification struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Status string `json:"status"`
	} `json:"verification"`
}

// Response is the raw outcome of a provider call: status, body bytes, and the
// authenticity tag header. Raw bytes are kept because the tag covers them
// exactly as received.
type Response struct {
	StatusCode int
	Body       []byte
	Signature  string
}

// Config configures the provider client. BaseURL is expected to be
// normalized (http(s), trailing slash) by platform config.
type Config struct {
	BaseURL   string
	ClientID  string
	SecretKey string
	Timeout   time.Duration
}

// Client calls the verification provider's session API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authHeader string
	logger     *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying transport, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.ClientID+":"+cfg.SecretKey)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession posts the session payload and returns the raw response. Any
// failure to reach the provider or read its body, including a timeout, is a
// transport error and nothing should be persisted by the caller.
func (c *Client) CreateSession(ctx context.Context, payload SessionRequest) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode session payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "verification provider unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "failed to read provider response")
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "provider session response",
			"status_code", resp.StatusCode,
			"body_bytes", len(raw),
		)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		Signature:  resp.Header.Get(SignatureHeader),
	}, nil
}
