package rspc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/hangar/internal/apierr"
)

// Kind is the procedure kind.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
)

// ErrSubscriptionUnsupported is returned for subscription calls. It signals a
// caller mistake and is deliberately not an *apierr.Error.
var ErrSubscriptionUnsupported = errors.New("subscriptions are not supported by the HTTP transport")

// Guard supplies the CSRF token and runs the retry-once-on-401 protocol.
// *session.Coordinator implements it.
type Guard interface {
	CSRFToken() string
	EnsureCSRFToken(ctx context.Context) (string, error)
	Do(ctx context.Context, send SendFunc) (*Reply, error)
}

// Caller is the procedure-call surface used by the domain services.
type Caller interface {
	Call(ctx context.Context, kind Kind, key string, input any) (json.RawMessage, error)
	Query(ctx context.Context, key string, input any, dest any) error
	Mutate(ctx context.Context, key string, input any, dest any) error
}

// Ensure Client implements Caller at compile time.
var _ Caller = (*Client)(nil)

// Client issues procedure calls against /rspc.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	guard     Guard
	userAgent string
	logger    *slog.Logger
}

const (
	defaultAPIURL    = "127.0.0.1:8080"
	defaultUserAgent = "hangar/0.1"
	requestTimeout   = 15 * time.Second
	procedurePrefix  = "rspc"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client (its jar carries the session cookie).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithGuard installs the session guard.
func WithGuard(g Guard) Option {
	return func(c *Client) { c.guard = g }
}

// WithLogger sets the logger used for per-call debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the control-plane at apiURL.
func NewClient(apiURL string, opts ...Option) (*Client, error) {
	base, err := ParseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns a copy of the control-plane base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Query runs a query and decodes its data into dest (ignored when nil).
func (c *Client) Query(ctx context.Context, key string, input any, dest any) error {
	return c.callInto(ctx, KindQuery, key, input, dest)
}

// Mutate runs a mutation and decodes its data into dest (ignored when nil).
func (c *Client) Mutate(ctx context.Context, key string, input any, dest any) error {
	return c.callInto(ctx, KindMutation, key, input, dest)
}

func (c *Client) callInto(ctx context.Context, kind Kind, key string, input any, dest any) error {
	data, err := c.Call(ctx, kind, key, input)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return apierr.InvalidResponse(fmt.Sprintf("decode %s result: %v", key, err), http.StatusOK, "")
	}
	return nil
}

// Call issues one procedure call and returns result.data unchanged. Runtime
// failures are always *apierr.Error; caller mistakes (subscriptions, empty key,
// unencodable input) are plain errors.
func (c *Client) Call(ctx context.Context, kind Kind, key string, input any) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	key = strings.TrimSpace(key)
	switch kind {
	case KindQuery, KindMutation:
	case KindSubscription:
		return nil, fmt.Errorf("%s %q: %w", kind, key, ErrSubscriptionUnsupported)
	default:
		return nil, fmt.Errorf("unknown procedure kind %q", kind)
	}
	if key == "" {
		return nil, fmt.Errorf("procedure key required")
	}

	payload, err := encodeInput(kind, input)
	if err != nil {
		return nil, fmt.Errorf("encode %s input: %w", key, err)
	}

	if kind == KindMutation && c.guard != nil && c.guard.CSRFToken() == "" {
		// A mutation goes out even without a token; the server decides.
		if _, err := c.guard.EnsureCSRFToken(ctx); err != nil {
			c.logger.Warn("csrf token unavailable", "key", key, "error", err)
		}
	}

	clientID := uuid.NewString()
	send := func(ctx context.Context) (*Reply, error) {
		req, err := c.newRequest(ctx, kind, key, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set(HeaderClientRequestID, clientID)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		return ReadReply(resp)
	}

	var reply *Reply
	if c.guard != nil {
		reply, err = c.guard.Do(ctx, send)
	} else {
		reply, err = send(ctx)
	}
	if err != nil {
		c.logger.Debug("procedure call failed", "kind", kind, "key", key, "client_request_id", clientID, "error", err)
		return nil, apierr.HTTP(fmt.Sprintf("%s %s: %v", kind, key, err), 0, "", err)
	}

	c.logger.Debug("procedure call",
		"kind", kind,
		"key", key,
		"status", reply.StatusCode,
		"request_id", reply.RequestID(),
		"client_request_id", clientID,
	)
	return decodeEnvelope(kind, key, reply)
}

func (c *Client) newRequest(ctx context.Context, kind Kind, key string, payload []byte) (*http.Request, error) {
	reqURL := c.baseURL.JoinPath(procedurePrefix, key)

	var (
		method = http.MethodGet
		body   io.Reader
	)
	if kind == KindQuery {
		if payload != nil {
			reqURL.RawQuery = url.Values{"input": []string{string(payload)}}.Encode()
		}
	} else {
		method = http.MethodPost
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.guard != nil {
		if token := c.guard.CSRFToken(); token != "" {
			req.Header.Set(HeaderCSRF, token)
		}
	}
	return req, nil
}

// encodeInput returns nil for an absent query input and {} for an absent
// mutation input.
func encodeInput(kind Kind, input any) ([]byte, error) {
	if input == nil {
		if kind == KindMutation {
			return []byte("{}"), nil
		}
		return nil, nil
	}
	if raw, ok := input.(json.RawMessage); ok {
		if len(raw) == 0 {
			return encodeInput(kind, nil)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("input is not valid JSON")
		}
		return raw, nil
	}
	return json.Marshal(input)
}
