package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Response is the outbound envelope correlated to a request by UUID.
type Response struct {
	SessionID   string      `json:"session-id"`
	SessionName string      `json:"session-name"`
	Response    interface{} `json:"response"`
	UUID        string      `json:"uuid,omitempty"`
}

// ResponseFor builds the envelope answering msg. msg may be nil for
// unsolicited sends such as program output.
func ResponseFor(msg *Message, sessionID, sessionName string, body interface{}) Response {
	resp := Response{
		SessionID:   sessionID,
		SessionName: sessionName,
		Response:    body,
	}
	if msg != nil {
		resp.UUID = msg.UUID
	}
	return resp
}

// Encode serializes a response envelope.
func Encode(resp Response) ([]byte, error) {
	data, err := sonic.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// Pong is the ping reply body.
type Pong struct {
	Pong bool `json:"pong"`
}

// Output is the body of a program output record sent to the REPL.
type Output struct {
	Output bool     `json:"output"`
	Stream string   `json:"stream"`
	Args   []string `json:"args"`
}

// ReloadReply is the body answering a reload request.
type ReloadReply struct {
	RequestURL string `json:"request-url"`
	LoadedFile bool   `json:"loaded-file"`
}
