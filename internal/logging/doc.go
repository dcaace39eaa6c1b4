// Package logging sets up structured slog output for pdfqa.
//
// Logs are JSON lines written to a size-rotated file under ~/.pdfqa/logs/,
// optionally mirrored to stderr. The MCP stdio server must never write to
// stdout or stderr, so it uses SetupQuiet.
package logging
