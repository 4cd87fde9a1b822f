// Package persist routes committed progress to the right store.
//
// Anonymous readers write synchronously to the local store. Authenticated
// readers write to the remote store in a background goroutine with a
// bounded timeout. Neither path reports errors to the caller: a failed
// commit leaves tracking running, and the next successful commit resends
// the full record. Call Wait before exit to drain background commits.
package persist
