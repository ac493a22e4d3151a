package rspc

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/five82/hangar/internal/apierr"
)

const (
	resultData  = "data"
	resultError = "error"
)

// Envelope is the response wrapper for every procedure call.
type Envelope struct {
	Result *Result `json:"result"`
}

// Result distinguishes a data payload from a structured error.
type Result struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// DataEnvelope wraps v as a successful envelope. Test servers use it.
func DataEnvelope(v any) Envelope {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Envelope{Result: &Result{Type: resultData, Data: raw}}
}

// ErrorEnvelope wraps v as an error envelope.
func ErrorEnvelope(v any) Envelope {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Envelope{Result: &Result{Type: resultError, Error: raw}}
}

// decodeEnvelope parses reply into result.data or an *apierr.Error. A
// present-but-null data field is a valid empty result; an absent one is not.
func decodeEnvelope(kind Kind, key string, reply *Reply) (json.RawMessage, error) {
	requestID := reply.RequestID()
	status := reply.StatusCode

	var env Envelope
	if err := json.Unmarshal(reply.Body, &env); err != nil {
		return nil, apierr.HTTP(fmt.Sprintf("HTTP %d: %s", status, Snippet(reply.Body)), status, requestID, err)
	}
	if env.Result == nil {
		return nil, apierr.InvalidResponse(fmt.Sprintf("%s %s: response has no result", kind, key), status, requestID)
	}

	switch env.Result.Type {
	case resultData:
		if env.Result.Data == nil {
			return nil, apierr.InvalidResponse(fmt.Sprintf("%s %s: result.data missing", kind, key), status, requestID)
		}
		return env.Result.Data, nil
	case resultError:
		if env.Result.Error == nil {
			return nil, apierr.InvalidResponse(fmt.Sprintf("%s %s: result.error missing", kind, key), status, requestID)
		}
		return nil, apierr.NormalizeJSON(env.Result.Error, apierr.Context{
			Operation: string(kind),
			Key:       key,
			Status:    status,
			RequestID: requestID,
		})
	default:
		return nil, apierr.InvalidResponse(fmt.Sprintf("%s %s: unknown result type %q", kind, key, env.Result.Type), status, requestID)
	}
}

// ParseBaseURL normalizes a host:port or URL into a base URL without query or
// fragment. A path prefix is kept so the control-plane can sit behind a proxy.
func ParseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
