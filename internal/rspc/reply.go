package rspc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/five82/hangar/internal/apierr"
)

const (
	// HeaderCSRF carries the cached CSRF token on outgoing requests.
	HeaderCSRF = "x-csrf-token"
	// HeaderRequestID is the server-assigned id read back for error correlation.
	HeaderRequestID = "x-request-id"
	// HeaderClientRequestID is a per-call id generated locally for log correlation.
	HeaderClientRequestID = "x-client-request-id"

	maxResponseSize = 10 * 1024 * 1024
	snippetLimit    = 240
)

// Reply is a fully read HTTP response. Bodies are buffered so a 401 reply can
// be handed back to the caller after a failed refresh.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SendFunc issues one attempt of a request. It is called again for a retry,
// so it must build a fresh request each time.
type SendFunc func(ctx context.Context) (*Reply, error)

// ReadReply buffers resp and closes its body.
func ReadReply(resp *http.Response) (*Reply, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Reply{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// RequestID returns the server-supplied request id, if any.
func (r *Reply) RequestID() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(HeaderRequestID))
}

// OK reports a 2xx status.
func (r *Reply) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Failure converts a non-envelope error reply (the /auth endpoints) into an
// *apierr.Error, normalizing a JSON body when there is one.
func (r *Reply) Failure(operation, key string) *apierr.Error {
	ctx := apierr.Context{Operation: operation, Key: key, Status: r.StatusCode, RequestID: r.RequestID()}
	if len(strings.TrimSpace(string(r.Body))) == 0 {
		return apierr.Normalize(nil, ctx)
	}
	var decoded any
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		return apierr.HTTP(fmt.Sprintf("HTTP %d: %s", r.StatusCode, Snippet(r.Body)), r.StatusCode, ctx.RequestID, err)
	}
	return apierr.Normalize(decoded, ctx)
}

// Snippet returns at most 240 characters of body for diagnostics.
func Snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	if utf8.RuneCountInString(text) <= snippetLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetLimit-1]) + "…"
}
