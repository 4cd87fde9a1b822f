// Package client is the HTTP client for the folio gateway.
//
// A Client with a bearer token is the remote progress store of an
// authenticated reader: it implements store.ProgressStore over
// GET/POST/DELETE /progress and store.Marker over POST /mark. It also
// wraps the public article lookup, optionally backed by a lookupcache.Cache,
// and the readings listing.
//
// Transport failures and 5xx responses wrap store.ErrUnavailable; 401
// wraps ErrUnauthorized.
//
//	c := client.New("http://localhost:8080", client.WithToken(token))
//	rec, err := c.Mark(ctx, 42, true)
package client
