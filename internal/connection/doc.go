/*
Package connection maintains the bridge's single channel to the dev server.

# Transports

A Manager prefers websocket when a Dialer is available and otherwise falls
back to HTTP, rewriting a ws:// connect URL to http:// with a warning. An
http:// connect URL always selects HTTP.

HTTP starts with a handshake GET carrying fwinit=true. The reply's
connection-type selects long polling ("http-long-polling") or short polling
with a fixed gap. Failed handshakes are retried with exponential backoff; a
failed poll emits a disconnected event and reconnects from attempt zero.
Websocket failures emit a disconnected event and are not retried.

# Replies

Respond answers a message on the websocket it arrived on or by POSTing to
the HTTP URL it carried. RespondToConnection writes to the current
connection and is used for unsolicited program output.
*/
package connection
