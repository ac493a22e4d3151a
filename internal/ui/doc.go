// Package ui provides the hangar live console, a Bubble Tea program.
//
// # Views
//
//   - Instances: every worker process with its status, node and player count.
//   - Downloads: the server-owned download queue with progress and the
//     actions each job allows in its current state.
//
// The header shows who is signed in, the control-plane endpoint, and the
// health of the active view's poll (waiting, updated, retrying, offline).
//
// # Data Flow
//
// The console never fetches lists itself. Pollers in package app write into
// state.Store; the console re-reads the snapshot once per DefaultUIInterval
// and after every command. The console only tells the pollers what is on
// screen: switching tabs or losing terminal focus updates store visibility
// and calls Options.Wake, so hidden views stop polling.
//
// # Commands
//
// Download actions are checked with downloads.AllowedActions before any
// request is sent; a disallowed key only updates the footer. Acknowledged
// jobs replace their row in the store at once and the view is refreshed.
// Instance commands go straight to the server, which is the authority on
// whether a lifecycle change is possible.
//
// # Session Expiry
//
// Run subscribes to the auth-expired broadcast and shows a banner until the
// store reports a signed-in user again.
//
// # Key Bindings
//
//   - tab / 1 / 2: switch view
//   - j k g G: move selection
//   - r: refresh now
//   - s S R: start, stop, restart instance
//   - p u x R: pause, resume, cancel, retry job
//   - [ ]: move job up or down the queue
//   - T: cycle theme (saved to prefs.toml)
//   - ?: help, q: quit
package ui
