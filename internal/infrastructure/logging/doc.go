// Package logging provides structured logging for the PrusaLink bridge.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging(), "1.0.0")
//	logger.Info("starting bridge", "printer", addr)
//	logger.Error("broker connect failed", "error", err)
//
// # Security
//
// Never log the printer API key or the broker password.
package logging
