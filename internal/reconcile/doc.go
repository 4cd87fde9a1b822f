// Package reconcile merges progress recorded anonymously into an
// identity's remote map after sign-in.
//
// Each local record is pushed when it is newer than the remote copy, or
// when the remote has none. Unlocked records claiming completion are
// discarded. The local map is always cleared afterwards, so a record whose
// push failed is lost; the remote copy, if any, wins.
package reconcile
