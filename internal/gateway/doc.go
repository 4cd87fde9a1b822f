// Package gateway serves the folio progress API over HTTP.
//
// # Endpoints
//
// Public:
//
//   - GET /health, GET /health/ready: liveness and database readiness
//   - GET /config: tracking tunables shared with clients
//   - GET /lookup?ids=1,2,3: title, permalink and page count of visible articles
//
// Bearer token required (registered only when auth.jwt_secret is set):
//
//   - GET /progress: the caller's records keyed by post id
//   - POST /progress: replace one record; the server normalizes it and
//     stamps updated_at
//   - DELETE /progress?post_id=N: forget one record
//   - POST /mark: mark as read ({"locked":true}) or unmark
//   - GET /readings?limit=N: in-progress articles with resume links
//
// Errors are JSON objects of the form {"error": "..."}. A post_id that is
// not a positive integer is rejected with 400 {"error":"invalid post_id"}.
//
// # Listeners
//
// The gateway listens on server.http_addr, or only on a tailnet via tsnet
// when tailscale.enabled is set.
package gateway
