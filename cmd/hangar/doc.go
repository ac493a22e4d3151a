// Command hangar is a client for the hangar control plane.
//
// Usage:
//
//	hangar login -u NAME --password-stdin
//	hangar whoami
//	hangar instances list|start|stop|restart
//	hangar downloads list|pause|resume|cancel|retry|reorder|enqueue
//	hangar logs [instance-id]
//	hangar call query|mutation PROCEDURE [JSON]
//	hangar watch
//
// The session cookie is stored under the configured state directory so every
// invocation after login reuses it.
package main
