// Command devbridge runs the client side of a live-reload/REPL bridge.
//
// Usage:
//
//	devbridge connect [--url ws://localhost:9500/figwheel-connect] [--config bridge.yaml]
//	devbridge eval '1 + 2'
package main
