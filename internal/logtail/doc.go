// Package logtail keeps the tail of a log in memory.
//
// # Reading Log Files
//
// Read extracts the last N lines of a file in one pass using a Ring, so memory
// stays O(N) whatever the file size:
//
//	lines, err := logtail.Read(filepath.Join(stateDir, "hangar.log"), 200)
//
// # Following an Instance Console
//
// Follow dials the instance console websocket and appends every received line
// to a Ring until the context ends:
//
//	ring := logtail.NewRing(500)
//	err := logtail.Follow(ctx, logtail.FollowOptions{
//		URL:        logtail.ConsoleURL(base, "inst-1"),
//		HTTPClient: client.HTTPClient(),
//	}, ring)
//
// Messages may carry several lines; each becomes its own entry.
package logtail
