// Package config provides 12-factor configuration management for the bridge.
//
// Configuration is assembled in layers, later layers winning:
//  1. Default()
//  2. an optional YAML (.yaml/.yml) or TOML (.toml) file
//  3. a .env file in the working directory, if present
//  4. environment variables
//
// CLI flags are applied on top by cmd/devbridge.
//
// Configuration Sections:
//   - Connect: connect URL template, page location, transport tuning
//   - Host: host environment (auto, process, browser, worker), root dir, timeouts
//   - Session: durable session file
//   - Output: print receivers ("console,repl")
//   - Logging: log level and output format
//   - Status: local status endpoint address
//
// Environment Variables:
//   - BRIDGE_CONNECT_URL, BRIDGE_PAGE_URL, BRIDGE_WEBSOCKET, BRIDGE_POLL_INTERVAL
//   - BRIDGE_BACKOFF_BASE, BRIDGE_BACKOFF_MAX, BRIDGE_HTTP_TIMEOUT, BRIDGE_SEND_RPS
//   - BRIDGE_HOST_ENV, BRIDGE_ROOT_DIR, BRIDGE_USER_AGENT
//   - BRIDGE_EVAL_TIMEOUT, BRIDGE_RELOAD_TIMEOUT
//   - BRIDGE_SESSION_FILE, BRIDGE_PRINT_OUTPUT
//   - BRIDGE_LOG_LEVEL, BRIDGE_LOG_DEV, BRIDGE_STATUS_ADDR
package config
