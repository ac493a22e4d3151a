// Package rspc implements the procedure-call transport to the control-plane.
//
// # Wire format
//
//	GET  /rspc/<key>?input=<url-encoded JSON>   query (input omitted when absent)
//	POST /rspc/<key>   body: input JSON or {}   mutation
//
// Both return an envelope:
//
//	{"result": {"type": "data",  "data":  ...}}
//	{"result": {"type": "error", "error": ...}}
//
// Subscriptions are not carried over HTTP; Call rejects them with
// ErrSubscriptionUnsupported.
//
// # Errors
//
// Every runtime failure is an *apierr.Error:
//
//   - network failure or a non-JSON body: http_error (body snippet ≤ 240 chars)
//   - JSON that is not an envelope: invalid_response
//   - result.type == "error": the payload run through apierr.Normalize
//
// The x-request-id response header is attached to every error produced for
// the call unless the error payload carries its own id.
//
// # Session
//
// When a Guard is installed (session.Coordinator), the cached CSRF token is
// sent as x-csrf-token and each attempt runs through Guard.Do, which owns the
// retry-once-on-401 protocol. A mutation with no cached token first asks the
// Guard for one; if that fails it is sent without the header. Queries never
// wait for a token.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package rspc
