package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const cookieFile = "session.json"

// ErrStoreLocked means another hangar process holds the cookie file lock.
var ErrStoreLocked = errors.New("session store is locked by another process")

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitzero"`
	Secure  bool      `json:"secure,omitempty"`
}

type storedSession struct {
	BaseURL string         `json:"base_url"`
	Cookies []storedCookie `json:"cookies"`
}

// CookieStore persists the session cookies so CLI invocations share a login.
// The file is written with mode 0600 and guarded by an advisory lock.
type CookieStore struct {
	path string
	base *url.URL
}

// NewCookieStore returns a store under stateDir for the control-plane at base.
func NewCookieStore(stateDir string, base *url.URL) *CookieStore {
	u := *base
	return &CookieStore{path: filepath.Join(stateDir, cookieFile), base: &u}
}

// Path returns the cookie file location.
func (s *CookieStore) Path() string { return s.path }

// NewJar returns a cookie jar seeded from disk. A missing or unreadable file
// yields an empty jar; a file saved for another base URL is ignored.
func (s *CookieStore) NewJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if err := s.Load(jar); err != nil {
		return jar, err
	}
	return jar, nil
}

// Load copies stored cookies into jar.
func (s *CookieStore) Load(jar http.CookieJar) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if stored.BaseURL != s.base.String() {
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(stored.Cookies))
	for _, c := range stored.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Expires: c.Expires,
			Secure:  c.Secure,
		})
	}
	jar.SetCookies(s.base, cookies)
	return nil
}

// Save writes the jar's cookies for the base URL. The write goes through a
// temporary file and a rename.
func (s *CookieStore) Save(jar http.CookieJar) error {
	stored := storedSession{BaseURL: s.base.String()}
	for _, c := range jar.Cookies(s.base) {
		stored.Cookies = append(stored.Cookies, storedCookie{
			Name:  c.Name,
			Value: c.Value,
			Path:  "/",
		})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.withLock(func() error {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
		tmp := s.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, s.path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("replace %s: %w", s.path, err)
		}
		return nil
	})
}

// Clear removes the stored session.
func (s *CookieStore) Clear() error {
	return s.withLock(func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.path, err)
		}
		return nil
	})
}

func (s *CookieStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return ErrStoreLocked
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}
