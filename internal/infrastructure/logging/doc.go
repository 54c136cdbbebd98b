// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Level names follow zap ("debug", "info", "warn", "error") and additionally
// accept the client vocabulary used by dev-server tooling:
//
//	severe -> error, warning -> warn, info/config -> info,
//	fine/finer/finest/all -> debug, off -> no-op logger
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "fine"})
//	conn := logger.Component("connection")
//	conn.Info("Connected", zap.String("url", url))
package logging
