package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/hangar/internal/downloads"
	"github.com/five82/hangar/internal/instances"
	"github.com/five82/hangar/internal/poll"
	"github.com/five82/hangar/internal/state"
	"github.com/five82/hangar/internal/syncx"
)

// Source describes one live query.
type Source struct {
	View state.View
	// Fetch runs the query and applies the outcome to store under token.
	Fetch func(ctx context.Context, store *state.Store, token syncx.Token) error
	// Classify reads the scheduler inputs from the latest snapshot.
	Classify func(snap state.Snapshot) (poll.Activity, int)
}

// InstancesSource polls instance.list.
func InstancesSource(svc *instances.Service) Source {
	return Source{
		View: state.ViewInstances,
		Fetch: func(ctx context.Context, store *state.Store, token syncx.Token) error {
			list, err := svc.List(ctx)
			store.ApplyInstances(token, list, err)
			return err
		},
		Classify: func(snap state.Snapshot) (poll.Activity, int) {
			return instances.Activity(snap.Instances), len(snap.Instances)
		},
	}
}

// DownloadsSource polls downloads.list.
func DownloadsSource(svc *downloads.Service) Source {
	return Source{
		View: state.ViewDownloads,
		Fetch: func(ctx context.Context, store *state.Store, token syncx.Token) error {
			jobs, err := svc.List(ctx)
			store.ApplyJobs(token, jobs, err)
			return err
		},
		Classify: func(snap state.Snapshot) (poll.Activity, int) {
			return downloads.Activity(snap.Jobs), len(snap.Jobs)
		},
	}
}

// Poller refreshes one view on the schedule computed by poll.Policy. It only
// polls while signed in and while the view is visible; the first poll after
// becoming eligible runs at once.
type Poller struct {
	src    Source
	policy poll.Policy
	store  *state.Store
	logger *slog.Logger
	wake   chan struct{}
}

// NewPoller builds a Poller. Run starts it.
func NewPoller(src Source, policy poll.Policy, store *state.Store, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		src:    src,
		policy: policy,
		store:  store,
		logger: logger.With("component", "poller", "view", string(src.View)),
		wake:   make(chan struct{}, 1),
	}
}

// View returns the polled view.
func (p *Poller) View() state.View { return p.src.View }

// Wake asks the poller to re-check eligibility now. It never blocks.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Observe returns the scheduler inputs for the current state.
func (p *Poller) Observe() poll.Observed {
	snap := p.store.Snapshot()
	feed := snap.Feed(p.src.View)
	activity, entities := p.src.Classify(snap)
	return poll.Observed{
		Authenticated: snap.SignedIn,
		Visible:       p.store.Visible(p.src.View),
		HasData:       feed.HasData,
		Activity:      activity,
		Entities:      entities,
		ErrorStreak:   p.policy.ClampStreak(feed.ConsecutiveFailures),
	}
}

// Refresh fetches once now. Failures are logged and recorded in the store;
// they only influence the next interval.
func (p *Poller) Refresh(ctx context.Context) {
	token := p.store.Begin(p.src.View)
	if err := p.src.Fetch(ctx, p.store, token); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Debug("poll failed", "error", err)
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	eligible := false
	for {
		obs := p.Observe()
		interval, ok := p.policy.NextInterval(obs)
		if !ok {
			eligible = false
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}
		if !eligible {
			eligible = true
			p.Refresh(ctx)
			continue
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
			p.Refresh(ctx)
		}
	}
}
