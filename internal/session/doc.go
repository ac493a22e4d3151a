// Package session manages the control-plane session: the cached CSRF token,
// a single shared refresh, and the auth-expired broadcast.
//
// The Coordinator implements rspc.Guard. A request that answers 401 triggers
// one refresh (shared by every concurrent caller) and exactly one resend. If
// the refresh fails, or the resend is still 401, subscribers of AuthExpired
// are notified and the 401 reply flows back to the caller as a normal error.
// The refresh replaces the cached CSRF token in place, so a concurrent send
// never goes out with the token missing.
//
// Identity layers whoami/login/logout on top, discarding results of checks
// that were overtaken by a newer one. CookieStore persists the session cookie
// between CLI invocations.
package session
