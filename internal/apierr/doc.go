// Package apierr defines the single error type returned across the procedure
// call boundary and the normalizer that maps raw failure payloads into it.
//
// Field extraction is an ordered list of rules per field, first match wins:
//
//	code:       code → error → type → "rspc_error"
//	message:    message → error → serialized payload
//	request_id: request_id → requestId → transport-observed id
//
// Messages carrying the Sentinel prefix are unwrapped and their fields take
// precedence. Messages that look like raw backend failures become a generic
// "internal" error with the raw text kept only in Hint.
package apierr
