// Package logging builds the slog loggers used by the folio binaries.
package logging
