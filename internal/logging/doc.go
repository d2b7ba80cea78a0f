// Package logging configures the process-wide slog logger for catalogsearch.
// Logs are JSON lines written to stderr, and optionally to a size-rotated file
// under ~/.catalogsearch/logs/ when --debug or serve mode asks for it.
package logging
