package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/hangar/internal/downloads"
	"github.com/five82/hangar/internal/instances"
	"github.com/five82/hangar/internal/session"
	"github.com/five82/hangar/internal/syncx"
)

// View names a live read model.
type View string

const (
	ViewInstances View = "instances"
	ViewDownloads View = "downloads"
)

// Views lists every live view.
func Views() []View { return []View{ViewInstances, ViewDownloads} }

// Feed is the health of one live query.
type Feed struct {
	HasData             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the query has failed for multiple polls.
func (f Feed) IsOffline() bool {
	return f.ConsecutiveFailures >= 2
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Instances     []instances.Instance
	InstancesFeed Feed
	Jobs          []downloads.Job
	JobsFeed      Feed

	User     session.User
	SignedIn bool
	// Expired is set by the auth-expired broadcast and cleared on sign-in.
	Expired       bool
	ExpiredReason string
}

// Feed returns the feed of view.
func (s Snapshot) Feed(view View) Feed {
	if view == ViewDownloads {
		return s.JobsFeed
	}
	return s.InstancesFeed
}

// Store coordinates concurrent updates to the snapshot. Updates for a view
// are tagged with a generation token from Begin; an update whose token has
// been superseded is dropped.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	visible  map[View]bool

	instancesGen syncx.Generation
	jobsGen      syncx.Generation
}

func (s *Store) gen(view View) *syncx.Generation {
	if view == ViewDownloads {
		return &s.jobsGen
	}
	return &s.instancesGen
}

// Begin issues the token for a fetch of view that is about to start.
func (s *Store) Begin(view View) syncx.Token {
	return s.gen(view).Issue()
}

// ApplyInstances records the outcome of an instance fetch. It reports false
// when token was superseded and nothing changed. When err is non-nil the
// previous data is kept but the error is recorded for visibility.
func (s *Store) ApplyInstances(token syncx.Token, list []instances.Instance, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instancesGen.IsCurrent(token) {
		return false
	}
	if err == nil {
		s.snapshot.Instances = cloneSlice(list)
	}
	updateFeed(&s.snapshot.InstancesFeed, err)
	return true
}

// ApplyJobs records the outcome of a queue fetch. Progress of running jobs
// carries over from the previous list when the fresh rows have none.
func (s *Store) ApplyJobs(token syncx.Token, jobs []downloads.Job, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.jobsGen.IsCurrent(token) {
		return false
	}
	if err == nil {
		s.snapshot.Jobs = cloneSlice(downloads.Carry(s.snapshot.Jobs, jobs))
	}
	updateFeed(&s.snapshot.JobsFeed, err)
	return true
}

// ReplaceJob swaps in an acknowledged job without waiting for the next poll.
func (s *Store) ReplaceJob(job downloads.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := cloneSlice(s.snapshot.Jobs)
	for i := range jobs {
		if jobs[i].ID == job.ID {
			jobs[i] = job
			s.snapshot.Jobs = jobs
			return
		}
	}
	s.snapshot.Jobs = append(jobs, job)
}

func updateFeed(feed *Feed, err error) {
	feed.LastUpdated = time.Now()
	if err != nil {
		feed.LastError = err
		feed.ConsecutiveFailures++
		return
	}
	feed.HasData = true
	feed.LastError = nil
	feed.ConsecutiveFailures = 0
}

// SetUser records the signed-in user, or signs out when user is nil. Signing
// out, or signing in as someone else, drops the previous session's data.
func (s *Store) SetUser(user *session.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.signOutLocked()
		return
	}
	if s.snapshot.SignedIn && s.snapshot.User.ID != user.ID {
		s.resetDataLocked()
	}
	s.snapshot.User = *user
	s.snapshot.User.Roles = cloneSlice(user.Roles)
	s.snapshot.SignedIn = true
	s.snapshot.Expired = false
	s.snapshot.ExpiredReason = ""
}

// MarkExpired records an auth-expired event and signs out.
func (s *Store) MarkExpired(ev session.ExpiredEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOutLocked()
	s.snapshot.Expired = true
	s.snapshot.ExpiredReason = ev.Reason
}

func (s *Store) signOutLocked() {
	s.snapshot.User = session.User{}
	s.snapshot.SignedIn = false
	s.resetDataLocked()
}

// resetDataLocked clears both read models and supersedes any fetch that is
// still in flight, so its result cannot bring the old data back.
func (s *Store) resetDataLocked() {
	s.snapshot.Instances = nil
	s.snapshot.InstancesFeed = Feed{}
	s.snapshot.Jobs = nil
	s.snapshot.JobsFeed = Feed{}
	s.instancesGen.Issue()
	s.jobsGen.Issue()
}

// SetVisible marks whether view is on screen. Only visible views poll.
func (s *Store) SetVisible(view View, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible == nil {
		s.visible = make(map[View]bool)
	}
	s.visible[view] = visible
}

// Visible reports whether view is on screen.
func (s *Store) Visible(view View) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible[view]
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Instances = cloneSlice(s.snapshot.Instances)
	snap.Jobs = cloneSlice(s.snapshot.Jobs)
	snap.User.Roles = cloneSlice(s.snapshot.User.Roles)
	snap.InstancesFeed.LastError = cloneErr(s.snapshot.InstancesFeed.LastError)
	snap.JobsFeed.LastError = cloneErr(s.snapshot.JobsFeed.LastError)
	return snap
}

func cloneErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w", err)
}

func cloneSlice[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}
