// Package app is the composition root for hangar.
//
// # Overview
//
// New wires configuration, logging, the session coordinator, the rspc
// transport, the domain services and the shared state.Store into a Runtime.
// The CLI builds one Runtime per invocation; Watch additionally starts the
// pollers and the console.
//
// # Data Flow
//
//	┌──────────────┐
//	│   New()      │ Wire everything, no network
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()          Read ~/.config/hangar/config.toml
//	       ├─────> logging.New()          slog logger
//	       ├─────> CookieStore.NewJar()   Restore the stored session
//	       ├─────> session.New()          CSRF cache, refresh, expiry broadcast
//	       ├─────> rspc.NewClient()       Transport guarded by the coordinator
//	       └─────> state.Store{}          Shared read models
//
//	Watch():
//	  WarmUp ─> CheckIdentity ─> StartPollers ─> ui.Run (blocks)
//
// # Polling
//
// Each live view has a Poller. A poller is eligible only while the user is
// signed in and the view is visible. The first poll after becoming eligible
// runs immediately; later polls wait for poll.Policy.NextInterval, which
// reacts to activity, list size and the failure streak recorded in the
// store. Wake re-evaluates eligibility without waiting for the timer.
//
// Fetch failures never stop a poller. They are logged, recorded in the
// store feed, and lengthen the next interval.
//
// # Session Expiry
//
// The runtime subscribes to the coordinator's auth-expired broadcast. On
// expiry it marks the store signed out, forgets the stored cookie and wakes
// the pollers, which then go idle until the next sign-in.
package app
