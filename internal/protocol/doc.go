// Package protocol defines the wire model exchanged with the dev server.
//
// Inbound messages are JSON objects with kebab-case keys:
//
//	{"op": "eval", "uuid": "...", "code": "1 + 1"}
//	{"op": "messages", "http-url": "...", "messages": [{...}, {...}]}
//
// Every reply is wrapped in a Response envelope carrying the session identity
// and echoing the request uuid:
//
//	{"session-id": "...", "session-name": "...", "response": {...}, "uuid": "..."}
//
// Encoding uses bytedance/sonic.
package protocol
