// Package cli implements the folio reader command line.
//
// Each invocation loads the TOML client config, opens the anonymous local
// store under the data directory and builds a gateway client. When the
// config holds a token, progress goes to the gateway; otherwise it stays
// local until 'folio login' or 'folio sync' merges it.
package cli
