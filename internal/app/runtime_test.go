package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/hangar/internal/apierr"
	"github.com/five82/hangar/internal/instances"
	"github.com/five82/hangar/internal/prefs"
	"github.com/five82/hangar/internal/rspc"
	"github.com/five82/hangar/internal/session"
	"github.com/five82/hangar/internal/state"
)

const sessionCookie = "hangar_session"

type controlPlane struct {
	server  *httptest.Server
	revoked atomic.Bool

	// holdWhoami makes whoami wait until whoamiGate is closed.
	holdWhoami atomic.Bool
	whoamiGate chan struct{}
	whoamiHits atomic.Int32
}

func newControlPlane(t *testing.T) *controlPlane {
	t.Helper()
	cp := &controlPlane{whoamiGate: make(chan struct{})}
	signedIn := func(r *http.Request) bool {
		c, err := r.Cookie(sessionCookie)
		return err == nil && c.Value == "s1" && !cp.revoked.Load()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "s1", Path: "/"})
		_ = json.NewEncoder(w).Encode(session.User{ID: "u1", Username: "ada"})
	})
	mux.HandleFunc("GET /auth/whoami", func(w http.ResponseWriter, r *http.Request) {
		cp.whoamiHits.Add(1)
		if cp.holdWhoami.Load() {
			<-cp.whoamiGate
		}
		if !signedIn(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(session.User{ID: "u1", Username: "ada"})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(r) {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /rspc/instance.list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !signedIn(r) {
			w.Header().Set(rspc.HeaderRequestID, "req-denied")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(rspc.ErrorEnvelope(map[string]string{"code": "unauthorized", "message": "sign in"}))
			return
		}
		_ = json.NewEncoder(w).Encode(rspc.DataEnvelope([]instances.Instance{{ID: "i-1", Status: instances.StatusRunning}}))
	})
	cp.server = httptest.NewServer(mux)
	t.Cleanup(cp.server.Close)
	return cp
}

func testOptions(t *testing.T, apiURL string) (Options, string) {
	t.Helper()
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	cfgPath := filepath.Join(dir, "config.toml")
	body := "api_url = \"" + apiURL + "\"\nstate_dir = \"" + stateDir + "\"\nlog_format = \"json\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return Options{
		ConfigPath: cfgPath,
		PrefsPath:  filepath.Join(dir, "prefs.toml"),
		LogOutput:  io.Discard,
	}, stateDir
}

func TestRuntime_LoginPersistsAcrossInvocations(t *testing.T) {
	cp := newControlPlane(t)
	opts, stateDir := testOptions(t, cp.server.URL)

	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	user, err := rt.Login(context.Background(), session.Credentials{Username: "ada", Password: "pw"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.Username != "ada" || !rt.Store.Snapshot().SignedIn {
		t.Fatalf("after login user=%+v signedIn=%v", user, rt.Store.Snapshot().SignedIn)
	}
	rt.Close()

	if _, err := os.Stat(filepath.Join(stateDir, "session.json")); err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if p := prefs.Load(opts.PrefsPath); p.Username != "ada" {
		t.Fatalf("prefs username = %q, want ada", p.Username)
	}

	// A second invocation reuses the stored cookie.
	rt2, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt2.Close()
	who, err := rt2.CheckIdentity(context.Background())
	if err != nil || who == nil || who.Username != "ada" {
		t.Fatalf("CheckIdentity = %+v, %v; want ada", who, err)
	}
	list, err := rt2.Instances.List(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %+v, %v; want one instance", list, err)
	}
}

func TestRuntime_ExpiryMarksStoreAndClearsSession(t *testing.T) {
	cp := newControlPlane(t)
	opts, stateDir := testOptions(t, cp.server.URL)

	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Login(context.Background(), session.Credentials{Username: "ada", Password: "pw"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	cp.revoked.Store(true)
	_, err = rt.Instances.List(context.Background())
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("List error = %v, want a 401 api error", err)
	}

	snap := rt.Store.Snapshot()
	if snap.SignedIn || !snap.Expired {
		t.Fatalf("snapshot signedIn=%v expired=%v, want signed out and expired", snap.SignedIn, snap.Expired)
	}
	if _, err := os.Stat(filepath.Join(stateDir, "session.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("session file still present after expiry: %v", err)
	}
	if rt.Identity.Authenticated() {
		t.Fatalf("identity still authenticated after expiry")
	}
}

func TestRuntime_LogoutSignsOut(t *testing.T) {
	cp := newControlPlane(t)
	opts, _ := testOptions(t, cp.server.URL)

	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Login(context.Background(), session.Credentials{Username: "ada", Password: "pw"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := rt.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if rt.Store.Snapshot().SignedIn {
		t.Fatalf("store still signed in after logout")
	}
}

func TestRuntime_APIURLOverride(t *testing.T) {
	opts, _ := testOptions(t, "http://127.0.0.1:1")
	opts.APIURL = "http://example.test:9000"
	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close()
	if got := rt.Client.BaseURL().Host; got != "example.test:9000" {
		t.Fatalf("base host = %q, want override", got)
	}
}

func TestRuntime_RefreshViewUsesPoller(t *testing.T) {
	cp := newControlPlane(t)
	opts, _ := testOptions(t, cp.server.URL)
	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Login(context.Background(), session.Credentials{Username: "ada", Password: "pw"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.StartPollers(ctx)
	rt.RefreshView(ctx, state.ViewInstances)

	if snap := rt.Store.Snapshot(); len(snap.Instances) != 1 || !snap.InstancesFeed.HasData {
		t.Fatalf("instances = %+v, want the refreshed list", snap.Instances)
	}
}

func TestRuntime_ExpiryDuringIdentityCheckStaysSignedOut(t *testing.T) {
	cp := newControlPlane(t)
	opts, _ := testOptions(t, cp.server.URL)
	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Login(context.Background(), session.Credentials{Username: "ada", Password: "pw"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	rt.Store.ApplyInstances(rt.Store.Begin(state.ViewInstances), []instances.Instance{{ID: "i-1"}}, nil)

	cp.holdWhoami.Store(true)
	type result struct {
		user *session.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := rt.CheckIdentity(context.Background())
		done <- result{user, err}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for cp.whoamiHits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rt.AuthExpired.Publish(session.ExpiredEvent{Reason: "refresh rejected"})
	close(cp.whoamiGate)
	got := <-done

	if got.err != nil || got.user != nil {
		t.Fatalf("CheckIdentity = %+v, %v; want no user once expired", got.user, got.err)
	}
	snap := rt.Store.Snapshot()
	if snap.SignedIn || !snap.Expired {
		t.Fatalf("snapshot signedIn=%v expired=%v, want signed out and expired", snap.SignedIn, snap.Expired)
	}
	if len(snap.Instances) != 0 {
		t.Fatalf("instances from the expired session survived: %+v", snap.Instances)
	}
}
