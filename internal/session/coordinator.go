package session

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
	"sync"
	"time"

	"github.com/five82/hangar/internal/rspc"
	"github.com/five82/hangar/internal/syncx"
)

const (
	pathCSRF    = "auth/csrf"
	pathRefresh = "auth/refresh"
	pathLogin   = "auth/login"
	pathLogout  = "auth/logout"
	pathWhoAmI  = "auth/whoami"

	defaultUserAgent = "hangar/0.1"
)

var (
	// ErrNoToken means /auth/csrf answered without a usable token.
	ErrNoToken = errors.New("server returned no csrf token")
	// ErrRefreshRejected means /auth/refresh answered 401; the user must sign in again.
	ErrRefreshRejected = errors.New("session could not be refreshed")
)

// NetworkError reports a failed session-level exchange (csrf, refresh, auth).
type NetworkError struct {
	Op     string
	Status int // zero when no response arrived
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status > 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	case e.Status > 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": failed"
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExpiredEvent is broadcast when the session can no longer be used.
type ExpiredEvent struct {
	Reason    string
	RequestID string
	At        time.Time
}

// Options configure a Coordinator.
type Options struct {
	BaseURL    *url.URL
	HTTPClient *http.Client // its cookie jar holds the session cookie
	Logger     *slog.Logger
	// AuthExpired is the channel expiry is published on. A private one is
	// created when nil; pass a shared one to let other components subscribe
	// before the coordinator exists.
	AuthExpired *syncx.Broadcast[ExpiredEvent]
	UserAgent   string
	Now         func() time.Time
}

// Coordinator owns the CSRF token, the single in-flight refresh, and the
// auth-expired channel. Create one per process.
type Coordinator struct {
	baseURL   *url.URL
	http      *http.Client
	logger    *slog.Logger
	expired   *syncx.Broadcast[ExpiredEvent]
	userAgent string
	now       func() time.Time

	mu    sync.RWMutex
	token string

	csrf    syncx.SingleFlight[string]
	refresh syncx.SingleFlight[struct{}]
}

// Ensure Coordinator implements rspc.Guard at compile time.
var _ rspc.Guard = (*Coordinator)(nil)

// New builds a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.BaseURL == nil {
		return nil, fmt.Errorf("session: base url required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	expired := opts.AuthExpired
	if expired == nil {
		expired = &syncx.Broadcast[ExpiredEvent]{}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	base := *opts.BaseURL
	return &Coordinator{
		baseURL:   &base,
		http:      hc,
		logger:    logger.With("component", "session"),
		expired:   expired,
		userAgent: ua,
		now:       now,
	}, nil
}

// CSRFToken returns the cached token without any network call.
func (c *Coordinator) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// InvalidateCSRF drops the cached token; the next EnsureCSRFToken fetches again.
func (c *Coordinator) InvalidateCSRF() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// EnsureCSRFToken returns the cached token or fetches one. Concurrent callers
// share a single fetch.
func (c *Coordinator) EnsureCSRFToken(ctx context.Context) (string, error) {
	if token := c.CSRFToken(); token != "" {
		return token, nil
	}
	return c.csrf.Run(ctx, c.fetchCSRF)
}

// dropCSRF clears the cached token only while it is still token, so a token
// fetched concurrently by another caller survives.
func (c *Coordinator) dropCSRF(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
}

func (c *Coordinator) fetchCSRF(ctx context.Context) (string, error) {
	const op = "fetch csrf token"
	reply, err := c.exchange(ctx, http.MethodGet, pathCSRF, nil, "")
	if err != nil {
		return "", &NetworkError{Op: op, Err: err}
	}
	if !reply.OK() {
		return "", &NetworkError{Op: op, Status: reply.StatusCode}
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(reply.Body, &payload); err != nil {
		return "", &NetworkError{Op: op, Status: reply.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		return "", &NetworkError{Op: op, Status: reply.StatusCode, Err: ErrNoToken}
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.logger.Debug("csrf token acquired")
	return token, nil
}

// WarmUp fetches a CSRF token in the background. Failure is logged only.
func (c *Coordinator) WarmUp(ctx context.Context) {
	go func() {
		if _, err := c.EnsureCSRFToken(ctx); err != nil {
			c.logger.Warn("csrf warm-up failed", "error", err)
		}
	}()
}

// RefreshSession rotates the session. Concurrent callers share one refresh;
// the memo clears when it settles, whatever the outcome.
func (c *Coordinator) RefreshSession(ctx context.Context) error {
	_, err := c.refresh.Run(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.doRefresh(ctx)
	})
	return err
}

// RefreshRuns reports how many refresh exchanges have started.
func (c *Coordinator) RefreshRuns() int64 {
	return c.refresh.Runs()
}

func (c *Coordinator) doRefresh(ctx context.Context) error {
	const op = "refresh session"
	// Fetch a new token even when one is cached. The old token stays in place
	// until the new one replaces it, so concurrent sends never go out bare.
	token, err := c.csrf.Run(ctx, c.fetchCSRF)
	if err != nil {
		return err
	}
	reply, err := c.exchange(ctx, http.MethodPost, pathRefresh, struct{}{}, token)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if reply.StatusCode == http.StatusUnauthorized {
		return &NetworkError{Op: op, Status: reply.StatusCode, Err: ErrRefreshRejected}
	}
	if !reply.OK() {
		return &NetworkError{Op: op, Status: reply.StatusCode}
	}
	c.logger.Info("session refreshed")
	return nil
}

// OnAuthExpired subscribes fn to expiry events.
func (c *Coordinator) OnAuthExpired(fn func(ExpiredEvent)) (unsubscribe func()) {
	return c.expired.Subscribe(fn)
}

// AuthExpired returns the channel expiry is published on.
func (c *Coordinator) AuthExpired() *syncx.Broadcast[ExpiredEvent] {
	return c.expired
}

// Do runs send and applies the retry-once-on-401 protocol: on a 401 it
// refreshes once and resends once. If the refresh fails or the resend is
// still 401, expiry is broadcast and the 401 reply is returned for normal
// error handling. There is never a second retry.
func (c *Coordinator) Do(ctx context.Context, send rspc.SendFunc) (*rspc.Reply, error) {
	reply, err := send(ctx)
	if err != nil || reply.StatusCode != http.StatusUnauthorized {
		return reply, err
	}

	if err := c.RefreshSession(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("session refresh failed", "error", err, "request_id", reply.RequestID())
		c.expire("session refresh failed", reply)
		return reply, nil
	}

	used := c.CSRFToken()
	retried, err := send(ctx)
	if err != nil {
		return nil, err
	}
	if retried.StatusCode == http.StatusUnauthorized {
		c.dropCSRF(used)
		c.logger.Warn("request still unauthorized after refresh", "request_id", retried.RequestID())
		c.expire("unauthorized after refresh", retried)
	}
	return retried, nil
}

func (c *Coordinator) expire(reason string, reply *rspc.Reply) {
	c.expired.Publish(ExpiredEvent{
		Reason:    reason,
		RequestID: reply.RequestID(),
		At:        c.now(),
	})
}

// exchange performs one plain JSON request against an /auth endpoint.
func (c *Coordinator) exchange(ctx context.Context, method, path string, body any, token string) (*rspc.Reply, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(rspc.HeaderCSRF, token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return rspc.ReadReply(resp)
}
