package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// User is the identity returned by /auth/whoami and /auth/login.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

// Label returns the best human-facing name for u.
func (u User) Label() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	return u.ID
}

// Credentials are posted to /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// WhoAmI returns the signed-in user, or nil without error when the server
// answers 401 (not signed in).
func (c *Coordinator) WhoAmI(ctx context.Context) (*User, error) {
	reply, err := c.exchange(ctx, http.MethodGet, pathWhoAmI, nil, c.CSRFToken())
	if err != nil {
		return nil, &NetworkError{Op: "whoami", Err: err}
	}
	if reply.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if !reply.OK() {
		return nil, reply.Failure("auth", "whoami")
	}
	return decodeUser(reply.Body)
}

// Login posts credentials. A rejected login returns an *apierr.Error so field
// errors can bind to the form; a transport failure returns a *NetworkError.
func (c *Coordinator) Login(ctx context.Context, creds Credentials) (*User, error) {
	if strings.TrimSpace(creds.Username) == "" {
		return nil, fmt.Errorf("username required")
	}
	token, err := c.EnsureCSRFToken(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := c.exchange(ctx, http.MethodPost, pathLogin, creds, token)
	if err != nil {
		return nil, &NetworkError{Op: "login", Err: err}
	}
	if !reply.OK() {
		return nil, reply.Failure("auth", "login")
	}
	user, err := decodeUser(reply.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Info("signed in", "user", user.Username)
	return user, nil
}

// Logout ends the session and drops the cached token. A 401 counts as
// already logged out.
func (c *Coordinator) Logout(ctx context.Context) error {
	token, err := c.EnsureCSRFToken(ctx)
	if err != nil {
		return err
	}
	reply, err := c.exchange(ctx, http.MethodPost, pathLogout, struct{}{}, token)
	if err != nil {
		return &NetworkError{Op: "logout", Err: err}
	}
	c.InvalidateCSRF()
	if !reply.OK() && reply.StatusCode != http.StatusUnauthorized {
		return reply.Failure("auth", "logout")
	}
	c.logger.Info("signed out")
	return nil
}

// decodeUser accepts either a bare user object or {"user": {...}}.
func decodeUser(body []byte) (*User, error) {
	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}
