// Package downloads projects the server-owned download queue into typed jobs
// and gates the commands a job may take.
//
// Lifecycle:
//
//	queued  -> running | paused | canceled
//	paused  -> queued | canceled
//	running -> success | error | canceled
//	success | error | canceled -> queued   (retry only)
//
// Allowed actions by state:
//
//	queued    pause, cancel, reorder
//	paused    resume, cancel, reorder
//	running   none
//	success, error, canceled   retry
//
// Rows that fail validation are dropped silently so a newer server cannot
// break an older client.
package downloads
