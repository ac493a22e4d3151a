// Package state provides thread-safe read models shared by the pollers, the
// CLI, and the console.
//
// # Overview
//
// The Store holds the latest instance list, the projected download queue,
// the signed-in identity, and which views are currently visible. Pollers
// write; the console reads copies.
//
//	Producers (pollers):              Consumer (UI):
//	┌─────────────────────┐          ┌──────────────────┐
//	│ token := Begin(v)   │          │                  │
//	│ fetch ...           │          │                  │
//	│ Apply*(token, ...)  │─────────→│ store.Snapshot() │
//	└─────────────────────┘ (mutex)  └──────────────────┘
//
// # Superseded fetches
//
// Each view has its own generation counter. A fetch calls Begin before it
// starts and hands the token back to ApplyInstances or ApplyJobs. If another
// fetch of the same view began in the meantime, the older result is dropped,
// so a slow scheduled poll cannot overwrite the result of a forced refresh.
//
// # Update Semantics
//
//	// Success: replace the data, reset the failure count
//	store.ApplyJobs(token, jobs, nil)
//
//	// Error: keep the old data, record the error
//	store.ApplyJobs(token, nil, err)
//
// Jobs are rebuilt from every successful poll. The only thing carried over
// is the progress of a still-running job whose fresh row has none.
//
// # Copies
//
// Snapshot clones slices and error values, so callers may modify what they
// receive.
package state
