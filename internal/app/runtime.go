package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/five82/hangar/internal/config"
	"github.com/five82/hangar/internal/downloads"
	"github.com/five82/hangar/internal/instances"
	"github.com/five82/hangar/internal/logging"
	"github.com/five82/hangar/internal/prefs"
	"github.com/five82/hangar/internal/rspc"
	"github.com/five82/hangar/internal/session"
	"github.com/five82/hangar/internal/state"
	"github.com/five82/hangar/internal/syncx"
)

// Options configure a Runtime.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/hangar/prefs.toml
	APIURL     string // overrides api_url from the config file
	LogLevel   string // overrides log_level
	// LogOutput receives logs. Nil means stderr; the console passes the log
	// file so output does not corrupt the screen.
	LogOutput io.Writer
	UserAgent string
}

// Runtime is the wired object graph shared by the CLI and the console.
type Runtime struct {
	Config    config.Config
	PrefsPath string
	Logger    *slog.Logger

	Client      *rspc.Client
	Session     *session.Coordinator
	Identity    *session.Identity
	Cookies     *session.CookieStore
	AuthExpired *syncx.Broadcast[session.ExpiredEvent]

	Instances *instances.Service
	Downloads *downloads.Service
	Store     *state.Store

	jar http.CookieJar

	mu      sync.Mutex
	pollers []*Poller
	unsub   func()
}

// New loads configuration and wires the runtime. Nothing touches the network.
func New(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: opts.LogOutput})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	base, err := rspc.ParseBaseURL(cfg.APIURL)
	if err != nil {
		return nil, err
	}

	cookies := session.NewCookieStore(cfg.StateDir, base)
	jar, err := cookies.NewJar()
	if err != nil {
		logger.Warn("stored session unreadable; starting signed out", "path", cookies.Path(), "error", err)
	}
	hc := &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}

	expired := &syncx.Broadcast[session.ExpiredEvent]{}
	coord, err := session.New(session.Options{
		BaseURL:     base,
		HTTPClient:  hc,
		Logger:      logger,
		AuthExpired: expired,
		UserAgent:   opts.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}

	client, err := rspc.NewClient(cfg.APIURL,
		rspc.WithHTTPClient(hc),
		rspc.WithGuard(coord),
		rspc.WithLogger(logger.With("component", "rspc")),
		rspc.WithUserAgent(opts.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("init rspc client: %w", err)
	}

	rt := &Runtime{
		Config:      cfg,
		PrefsPath:   opts.PrefsPath,
		Logger:      logger,
		Client:      client,
		Session:     coord,
		Identity:    session.NewIdentity(coord),
		Cookies:     cookies,
		AuthExpired: expired,
		Instances:   instances.NewService(client),
		Downloads:   downloads.NewService(client),
		Store:       &state.Store{},
		jar:         jar,
	}
	rt.Identity.OnChange(rt.Store.SetUser)
	rt.unsub = expired.Subscribe(rt.onExpired)
	return rt, nil
}

func (r *Runtime) onExpired(ev session.ExpiredEvent) {
	r.Logger.Warn("session expired", "reason", ev.Reason, "request_id", ev.RequestID)
	r.Store.MarkExpired(ev)
	if err := r.Cookies.Clear(); err != nil {
		r.Logger.Warn("clear stored session failed", "error", err)
	}
	r.WakePollers()
}

// Close releases subscriptions and persists the session cookie.
func (r *Runtime) Close() {
	if r.unsub != nil {
		r.unsub()
	}
	r.Identity.Close()
	if r.Store.Snapshot().SignedIn {
		if err := r.SaveSession(); err != nil {
			r.Logger.Warn("persist session failed", "error", err)
		}
	}
}

// SaveSession writes the session cookie to the state directory.
func (r *Runtime) SaveSession() error {
	if r.jar == nil {
		return nil
	}
	return r.Cookies.Save(r.jar)
}

// CheckIdentity asks the server who is signed in. Identity records the
// answer in the store; a superseded check changes nothing and is not an
// error.
func (r *Runtime) CheckIdentity(ctx context.Context) (*session.User, error) {
	user, err := r.Identity.Check(ctx)
	if errors.Is(err, session.ErrSuperseded) {
		current, ok := r.Identity.Current()
		if !ok {
			return nil, nil
		}
		return &current, nil
	}
	if err != nil {
		return nil, err
	}
	r.WakePollers()
	return user, nil
}

// Login signs in, records the user, and persists the session.
func (r *Runtime) Login(ctx context.Context, creds session.Credentials) (*session.User, error) {
	user, err := r.Identity.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := r.SaveSession(); err != nil {
		r.Logger.Warn("persist session failed", "error", err)
	}
	if err := prefs.Update(r.PrefsPath, func(p *prefs.Prefs) { p.Username = creds.Username }); err != nil {
		r.Logger.Warn("save preferences failed", "error", err)
	}
	r.WakePollers()
	return user, nil
}

// Logout signs out and forgets the stored session even when the server
// call fails.
func (r *Runtime) Logout(ctx context.Context) error {
	err := r.Identity.Logout(ctx)
	if clearErr := r.Cookies.Clear(); clearErr != nil {
		r.Logger.Warn("clear stored session failed", "error", clearErr)
	}
	r.WakePollers()
	return err
}

// StartPollers launches one poller per live view. It returns immediately.
func (r *Runtime) StartPollers(ctx context.Context) []*Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pollers) > 0 {
		return r.pollers
	}
	for _, src := range []Source{InstancesSource(r.Instances), DownloadsSource(r.Downloads)} {
		p := NewPoller(src, r.Config.Poll, r.Store, r.Logger)
		r.pollers = append(r.pollers, p)
		go p.Run(ctx)
	}
	return r.pollers
}

// WakePollers makes every poller re-check eligibility now.
func (r *Runtime) WakePollers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pollers {
		p.Wake()
	}
}

// RefreshView fetches view immediately, outside the poll schedule.
func (r *Runtime) RefreshView(ctx context.Context, view state.View) {
	r.mu.Lock()
	pollers := append([]*Poller(nil), r.pollers...)
	r.mu.Unlock()
	for _, p := range pollers {
		if p.View() == view {
			p.Refresh(ctx)
			return
		}
	}
}
