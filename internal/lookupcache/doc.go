// Package lookupcache caches article metadata fetched from the lookup
// endpoint so repeated "continue reading" listings do not refetch it.
// The CLI is short-lived, so the cache is saved to a store.KV between runs
// and expiry is checked against the time each entry was fetched.
package lookupcache
