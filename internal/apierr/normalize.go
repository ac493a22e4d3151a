package apierr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sentinel prefixes a serialized Error embedded inside a plain message string.
// The server emits the same literal.
const Sentinel = "HANGAR_API_ERROR:"

const internalMessage = "The server hit an unexpected error. Try again, and contact an administrator if it keeps happening."

// opaqueMarkers identify raw backend failure text that must never reach the user.
var opaqueMarkers = []string{
	"panicked at",
	"stack backtrace",
	"resolver error",
	"Resolver(",
	"goroutine ",
	"SQLSTATE",
}

// Context describes the call that produced a failure payload.
type Context struct {
	Operation string // query or mutation
	Key       string
	Status    int
	RequestID string // observed on the response, used when the payload has none
}

// Rule extracts a string from a structured payload.
type Rule func(obj map[string]any) (string, bool)

// Field returns a Rule that reads a non-empty string stored under name.
func Field(name string) Rule {
	return func(obj map[string]any) (string, bool) {
		value, ok := obj[name].(string)
		if !ok || strings.TrimSpace(value) == "" {
			return "", false
		}
		return value, true
	}
}

// First applies rules in order; the first match wins.
func First(obj map[string]any, rules ...Rule) (string, bool) {
	for _, rule := range rules {
		if value, ok := rule(obj); ok {
			return value, true
		}
	}
	return "", false
}

var (
	codeRules      = []Rule{Field("code"), Field("error"), Field("type")}
	messageRules   = []Rule{Field("message"), Field("error")}
	requestIDRules = []Rule{Field("request_id"), Field("requestId")}
	hintRules      = []Rule{Field("hint")}
	fieldErrorKeys = []string{"field_errors", "fieldErrors"}
)

// Normalize maps a raw failure payload into an *Error. It performs no I/O.
// raw is a decoded JSON value (object, string, or nil) or a json.RawMessage.
func Normalize(raw any, ctx Context) *Error {
	switch v := raw.(type) {
	case json.RawMessage:
		return NormalizeJSON(v, ctx)
	case map[string]any:
		return normalizeObject(v, ctx)
	case string:
		if strings.TrimSpace(v) != "" {
			return normalizeString(v, ctx)
		}
	}
	return generic(ctx)
}

// NormalizeJSON decodes raw and normalizes the result.
func NormalizeJSON(raw json.RawMessage, ctx Context) *Error {
	if len(raw) == 0 {
		return generic(ctx)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return generic(ctx)
	}
	return Normalize(decoded, ctx)
}

// Embed serializes e behind the sentinel prefix, the legacy form some
// servers place in a plain message field.
func Embed(e *Error) string {
	payload, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return Sentinel + string(payload)
}

func normalizeObject(obj map[string]any, ctx Context) *Error {
	outer := fromObject(obj, &Error{Code: CodeFallback, RequestID: ctx.RequestID})
	outer.Status = ctx.Status

	if inner, ok := unwrapSentinel(outer.Message); ok {
		merged := fromObject(inner, outer)
		merged.Status = ctx.Status
		return merged
	}
	if isOpaque(outer.Message) {
		return opaque(outer.Message, outer.RequestID, ctx.Status)
	}
	return outer
}

func normalizeString(value string, ctx Context) *Error {
	if inner, ok := unwrapSentinel(value); ok {
		out := fromObject(inner, &Error{Code: CodeFallback, RequestID: ctx.RequestID})
		out.Status = ctx.Status
		return out
	}
	if isOpaque(value) {
		return opaque(value, ctx.RequestID, ctx.Status)
	}
	return &Error{
		Code:      CodeFallback,
		Message:   value,
		RequestID: ctx.RequestID,
		Status:    ctx.Status,
	}
}

// fromObject extracts every field from obj, taking missing ones from fallback.
// The message falls back to the serialized object, never to fallback.Message.
func fromObject(obj map[string]any, fallback *Error) *Error {
	out := &Error{}

	if code, ok := First(obj, codeRules...); ok {
		out.Code = code
	} else {
		out.Code = fallback.Code
	}
	if message, ok := First(obj, messageRules...); ok {
		out.Message = message
	} else {
		out.Message = stringify(obj)
	}
	if id, ok := First(obj, requestIDRules...); ok {
		out.RequestID = id
	} else {
		out.RequestID = fallback.RequestID
	}
	if fields := fieldErrors(obj); fields != nil {
		out.FieldErrors = fields
	} else {
		out.FieldErrors = fallback.FieldErrors
	}
	if hint, ok := First(obj, hintRules...); ok {
		out.Hint = hint
	} else {
		out.Hint = fallback.Hint
	}
	return out
}

// fieldErrors keeps only string-valued entries; an empty result is nil.
func fieldErrors(obj map[string]any) map[string]string {
	for _, key := range fieldErrorKeys {
		nested, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		out := make(map[string]string, len(nested))
		for field, value := range nested {
			if msg, ok := value.(string); ok {
				out[field] = msg
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func unwrapSentinel(message string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, Sentinel) {
		return nil, false
	}
	var inner map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(trimmed, Sentinel)), &inner); err != nil {
		return nil, false
	}
	if inner == nil {
		return nil, false
	}
	return inner, true
}

func isOpaque(message string) bool {
	for _, marker := range opaqueMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func opaque(raw, requestID string, status int) *Error {
	return &Error{
		Code:      CodeInternal,
		Message:   internalMessage,
		RequestID: requestID,
		Hint:      raw,
		Status:    status,
	}
}

func generic(ctx Context) *Error {
	op := strings.TrimSpace(ctx.Operation)
	if op == "" {
		op = "request"
	}
	message := fmt.Sprintf("%s %q failed", op, ctx.Key)
	if ctx.Status > 0 {
		message = fmt.Sprintf("%s (HTTP %d)", message, ctx.Status)
	}
	return &Error{
		Code:      CodeFallback,
		Message:   message,
		RequestID: ctx.RequestID,
		Status:    ctx.Status,
	}
}

func stringify(value any) string {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(payload)
}
