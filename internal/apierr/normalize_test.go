package apierr

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestFirst_RuleOrderWins(t *testing.T) {
	tests := []struct {
		name  string
		obj   map[string]any
		rules []Rule
		want  string
		found bool
	}{
		{"first present", map[string]any{"code": "a", "error": "b"}, codeRules, "a", true},
		{"falls through blank", map[string]any{"code": "  ", "error": "b"}, codeRules, "b", true},
		{"falls through non-string", map[string]any{"code": 7, "type": "c"}, codeRules, "c", true},
		{"none", map[string]any{"other": "x"}, codeRules, "", false},
		{"message prefers message", map[string]any{"message": "m", "error": "e"}, messageRules, "m", true},
		{"request id camel", map[string]any{"requestId": "r1"}, requestIDRules, "r1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := First(tt.obj, tt.rules...)
			if got != tt.want || ok != tt.found {
				t.Fatalf("First = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestNormalize_StructuredObject(t *testing.T) {
	raw := map[string]any{
		"code":    "validation_failed",
		"message": "check the form",
		"field_errors": map[string]any{
			"name":  "required",
			"port":  42,
			"label": "too long",
		},
		"hint": "names are unique per node",
	}
	got := Normalize(raw, Context{Operation: "mutation", Key: "instance.create", Status: 400, RequestID: "hdr-1"})

	if got.Code != "validation_failed" || got.Message != "check the form" {
		t.Fatalf("code/message = %q/%q", got.Code, got.Message)
	}
	if got.RequestID != "hdr-1" {
		t.Fatalf("RequestID = %q, want transport fallback hdr-1", got.RequestID)
	}
	want := map[string]string{"name": "required", "label": "too long"}
	if !reflect.DeepEqual(got.FieldErrors, want) {
		t.Fatalf("FieldErrors = %#v, want %#v", got.FieldErrors, want)
	}
	if got.Hint != "names are unique per node" {
		t.Fatalf("Hint = %q", got.Hint)
	}
	if got.Status != 400 {
		t.Fatalf("Status = %d, want 400", got.Status)
	}
}

func TestNormalize_ObjectFallbacks(t *testing.T) {
	got := Normalize(map[string]any{"error": "conflict"}, Context{})
	if got.Code != "conflict" || got.Message != "conflict" {
		t.Fatalf("got %q/%q, want conflict/conflict", got.Code, got.Message)
	}

	got = Normalize(map[string]any{"detail": 1}, Context{})
	if got.Code != CodeFallback {
		t.Fatalf("Code = %q, want %q", got.Code, CodeFallback)
	}
	if got.Message != `{"detail":1}` {
		t.Fatalf("Message = %q, want stringified payload", got.Message)
	}

	got = Normalize(map[string]any{"code": "x", "request_id": "payload-id"}, Context{RequestID: "hdr"})
	if got.RequestID != "payload-id" {
		t.Fatalf("RequestID = %q, want payload id to win", got.RequestID)
	}
}

func TestNormalize_EmptyFieldErrorsAreAbsent(t *testing.T) {
	got := Normalize(map[string]any{"code": "x", "field_errors": map[string]any{"a": 1}}, Context{})
	if got.FieldErrors != nil {
		t.Fatalf("FieldErrors = %#v, want nil", got.FieldErrors)
	}
}

func TestNormalize_SentinelRoundTrip(t *testing.T) {
	direct := &Error{
		Code:        "conflict",
		Message:     "instance name already taken",
		FieldErrors: map[string]string{"name": "taken"},
	}
	outer := map[string]any{"code": "rspc_error", "message": Embed(direct)}

	got := Normalize(outer, Context{RequestID: "hdr-9"})
	if got.Code != direct.Code || got.Message != direct.Message {
		t.Fatalf("got %q/%q, want %q/%q", got.Code, got.Message, direct.Code, direct.Message)
	}
	if !reflect.DeepEqual(got.FieldErrors, direct.FieldErrors) {
		t.Fatalf("FieldErrors = %#v, want %#v", got.FieldErrors, direct.FieldErrors)
	}
	if got.RequestID != "hdr-9" {
		t.Fatalf("RequestID = %q, want transport fallback hdr-9", got.RequestID)
	}

	direct.RequestID = "inner-1"
	got = Normalize(map[string]any{"message": Embed(direct), "request_id": "outer-1"}, Context{RequestID: "hdr-9"})
	if got.RequestID != "inner-1" {
		t.Fatalf("RequestID = %q, want inner id", got.RequestID)
	}

	direct.RequestID = ""
	got = Normalize(map[string]any{"message": Embed(direct), "request_id": "outer-1"}, Context{RequestID: "hdr-9"})
	if got.RequestID != "outer-1" {
		t.Fatalf("RequestID = %q, want outer payload id", got.RequestID)
	}
}

func TestNormalize_SentinelInPlainString(t *testing.T) {
	direct := &Error{Code: "not_found", Message: "no such node"}
	got := Normalize(Embed(direct), Context{RequestID: "hdr"})
	if got.Code != "not_found" || got.Message != "no such node" || got.RequestID != "hdr" {
		t.Fatalf("got %#v", got)
	}
}

func TestNormalize_BrokenSentinelFallsThrough(t *testing.T) {
	got := Normalize(map[string]any{"code": "bad", "message": Sentinel + "{not-json"}, Context{})
	if got.Code != "bad" {
		t.Fatalf("Code = %q, want bad", got.Code)
	}
	if !strings.HasPrefix(got.Message, Sentinel) {
		t.Fatalf("Message = %q, want raw message kept", got.Message)
	}
}

func TestNormalize_OpaqueBackendFailure(t *testing.T) {
	raw := "thread 'tokio-runtime-worker' panicked at src/instances.rs:88:14"

	for name, payload := range map[string]any{
		"object": map[string]any{"code": "rspc_error", "message": raw},
		"string": raw,
	} {
		t.Run(name, func(t *testing.T) {
			got := Normalize(payload, Context{RequestID: "hdr"})
			if got.Code != CodeInternal {
				t.Fatalf("Code = %q, want internal", got.Code)
			}
			if strings.Contains(got.Message, "panicked") {
				t.Fatalf("Message leaks raw text: %q", got.Message)
			}
			if got.Hint != raw {
				t.Fatalf("Hint = %q, want raw text", got.Hint)
			}
			if got.RequestID != "hdr" {
				t.Fatalf("RequestID = %q, want hdr", got.RequestID)
			}
		})
	}
}

func TestNormalize_PlainString(t *testing.T) {
	got := Normalize("node offline", Context{RequestID: "r"})
	if got.Code != CodeFallback || got.Message != "node offline" || got.RequestID != "r" {
		t.Fatalf("got %#v", got)
	}
}

func TestNormalize_AbsentPayload(t *testing.T) {
	for name, payload := range map[string]any{
		"nil":    nil,
		"blank":  "   ",
		"number": 12.0,
		"empty":  json.RawMessage(nil),
	} {
		t.Run(name, func(t *testing.T) {
			got := Normalize(payload, Context{Operation: "query", Key: "instance.list", Status: 502})
			if got.Code != CodeFallback {
				t.Fatalf("Code = %q, want %q", got.Code, CodeFallback)
			}
			if !strings.Contains(got.Message, "instance.list") || !strings.Contains(got.Message, "502") || !strings.Contains(got.Message, "query") {
				t.Fatalf("Message = %q, want operation, key and status", got.Message)
			}
		})
	}
}

func TestNormalizeJSON(t *testing.T) {
	got := NormalizeJSON(json.RawMessage(`{"code":"conflict","message":"busy"}`), Context{})
	if got.Code != "conflict" || got.Message != "busy" {
		t.Fatalf("got %#v", got)
	}
	got = NormalizeJSON(json.RawMessage(`{oops`), Context{Key: "k"})
	if got.Code != CodeFallback {
		t.Fatalf("Code = %q, want fallback", got.Code)
	}
}

func TestError_UnwrapAndAs(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(HTTP("request failed", 0, "", cause))

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	apiErr, ok := As(err)
	if !ok || apiErr.Code != CodeHTTP {
		t.Fatalf("As = %#v, %v", apiErr, ok)
	}
	if !IsCode(err, CodeHTTP) || IsCode(err, CodeInternal) {
		t.Fatalf("IsCode mismatch")
	}
	if msg, ok := New("x", "y").FieldError("name"); ok || msg != "" {
		t.Fatalf("FieldError on empty map = (%q, %v)", msg, ok)
	}
}
