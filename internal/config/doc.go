// Package config loads folio configuration.
//
// The gateway reads YAML (Load), located by DefaultPath:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	database:
//	  path: "/var/lib/folio/folio.db"
//	auth:
//	  jwt_secret: "${FOLIO_JWT_SECRET}"
//	  token_ttl: "8760h"
//	tracking:
//	  save_step: 1
//	  throttle: "300ms"
//	  decrease_dwell: "1200ms"
//	readings:
//	  default_limit: 5
//	logging:
//	  level: "info"
//	  format: "text"
//
// The reader CLI reads TOML (LoadClient), located by DefaultClientPath,
// with the same [tracking] table plus [gateway], [storage] and [logging].
//
// Both formats expand ${VAR} references from the environment before
// parsing, and settings absent from the file keep their defaults.
package config
