package session

import (
	"context"
	"errors"
	"sync"

	"github.com/five82/hangar/internal/syncx"
)

// ErrSuperseded is returned by Identity.Check when a newer check (or an
// expiry, login, or logout) happened while the request was in flight. Its
// result was discarded.
var ErrSuperseded = errors.New("identity check superseded")

// Identity tracks who is signed in. Every check is tagged with a generation
// token so a slow stale whoami can never overwrite a fresher answer.
type Identity struct {
	coord *Coordinator
	gen   syncx.Generation

	mu       sync.RWMutex
	user     *User
	checked  bool
	onChange func(*User)

	unsubscribe func()
}

// NewIdentity builds an Identity that clears itself on auth expiry.
func NewIdentity(coord *Coordinator) *Identity {
	id := &Identity{coord: coord}
	id.unsubscribe = coord.OnAuthExpired(func(ExpiredEvent) {
		id.set(id.gen.Issue(), nil)
	})
	return id
}

// Close stops listening for expiry.
func (i *Identity) Close() {
	if i.unsubscribe != nil {
		i.unsubscribe()
	}
}

// OnChange registers fn to receive every recorded user, nil on sign-out. fn
// runs under the identity lock, so calls arrive in generation order and a
// superseded answer never reaches it. fn must not call back into Identity.
func (i *Identity) OnChange(fn func(*User)) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

// Check asks the server who is signed in.
func (i *Identity) Check(ctx context.Context) (*User, error) {
	token := i.gen.Issue()
	user, err := i.coord.WhoAmI(ctx)
	if !i.gen.IsCurrent(token) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	if !i.set(token, user) {
		return nil, ErrSuperseded
	}
	return user, nil
}

// Login signs in and records the user.
func (i *Identity) Login(ctx context.Context, creds Credentials) (*User, error) {
	token := i.gen.Issue()
	user, err := i.coord.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	i.set(token, user)
	return user, nil
}

// Logout signs out and clears the user even if the server call fails.
func (i *Identity) Logout(ctx context.Context) error {
	err := i.coord.Logout(ctx)
	i.set(i.gen.Issue(), nil)
	return err
}

// Current returns the known user. ok is false when signed out or unknown.
func (i *Identity) Current() (User, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.user == nil {
		return User{}, false
	}
	return *i.user, true
}

// Authenticated reports whether a user is known to be signed in.
func (i *Identity) Authenticated() bool {
	_, ok := i.Current()
	return ok
}

// Checked reports whether any check has completed.
func (i *Identity) Checked() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.checked
}

// set stores user when token is still current and reports whether it did.
func (i *Identity) set(token syncx.Token, user *User) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.gen.IsCurrent(token) {
		return false
	}
	if user != nil {
		dup := *user
		user = &dup
	}
	i.user = user
	i.checked = true
	if i.onChange != nil {
		var notify *User
		if user != nil {
			dup := *user
			notify = &dup
		}
		i.onChange(notify)
	}
	return true
}
