// Package logging provides structured logging for the cash card service.
//
// It wraps log/slog so every entry carries the service name and build
// version, with JSON output for production and text output for development.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log passwords, Authorization headers, or tokens.
package logging
