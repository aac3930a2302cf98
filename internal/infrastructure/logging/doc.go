// Package logging provides structured logging for Gray Logic Node.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same default fields (service, version, node_id).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version, cfg.Node.ID)
//	logger.Component("session").Info("connected", "broker", addr)
//
// Never log broker passwords or InfluxDB tokens.
package logging
