package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Wire keys used by the dev server.
const (
	KeyOp             = "op"
	KeyUUID           = "uuid"
	KeySessionID      = "session-id"
	KeySessionName    = "session-name"
	KeyCode           = "code"
	KeyMessages       = "messages"
	KeyHTTPURL        = "http-url"
	KeyConnectionType = "connection-type"
	KeyRequestURL     = "request-url"
	KeySourceText     = "source-text"
)

// ConnectionTypeLongPolling is the handshake reply selecting long polling.
const ConnectionTypeLongPolling = "http-long-polling"

// Socket is the write side of an open websocket.
type Socket interface {
	Send(data []byte) error
}

// Reply is where a response to a Message goes: the websocket it arrived on,
// or an HTTP URL captured from the inbound message.
type Reply struct {
	Socket  Socket
	HTTPURL string
}

// IsZero reports whether the reply has no target.
func (r Reply) IsZero() bool {
	return r.Socket == nil && r.HTTPURL == ""
}

// Message is a decoded inbound command.
type Message struct {
	Op      string
	UUID    string
	Payload map[string]interface{}
	Reply   Reply
}

// Decode parses a raw JSON object into a Message. The reply channel is left
// for the caller to set.
func Decode(data []byte) (*Message, error) {
	var payload map[string]interface{}
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return FromMap(payload), nil
}

// FromMap builds a Message from an already decoded object.
func FromMap(payload map[string]interface{}) *Message {
	if payload == nil {
		payload = map[string]interface{}{}
	}

	msg := &Message{Payload: payload}
	msg.Op, _ = payload[KeyOp].(string)
	msg.UUID, _ = payload[KeyUUID].(string)
	if u, ok := payload[KeyHTTPURL].(string); ok {
		msg.Reply.HTTPURL = u
	}
	return msg
}

// String returns the payload value for key when it is a string.
func (m *Message) String(key string) (string, bool) {
	v, ok := m.Payload[key].(string)
	return v, ok
}

// Messages returns the nested sub-messages of a batch message, in order.
// Elements that are not objects are skipped.
func (m *Message) Messages() []map[string]interface{} {
	raw, ok := m.Payload[KeyMessages].([]interface{})
	if !ok {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}
