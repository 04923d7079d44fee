// Package logging provides structured logging for graypm.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the daemon and CLI.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Size-rotated file output via lumberjack
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "~/.graypm/graypm.log"
//	    max_size: 10     # megabytes
//	    max_backups: 5
//	    compress: true
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("process started", "id", 3, "pid", 4242)
package logging
