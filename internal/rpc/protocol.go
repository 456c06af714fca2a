package rpc

import "fmt"

type MessageType string

const (
	MsgRequest  MessageType = "rpc_request"
	MsgResponse MessageType = "rpc_response"
)

// Message is the single frame type exchanged on the websocket. Payloads are
// JSON text carried as a string, so handlers see exactly what the caller sent.
type Message struct {
	Type    MessageType `json:"type"`
	ID      string      `json:"id"`
	Method  string      `json:"method,omitempty"`
	Payload string      `json:"payload,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Transport-level error codes. CodeApplicationError is sent when a handler
// returns a Go error; handlers that answer with an envelope never trigger it.
const (
	CodeUnsupportedMethod = 1400
	CodeRateLimited       = 1429
	CodeApplicationError  = 1500
	CodeRecipientShutdown = 1503
	CodePayloadTooLarge   = 1504
)

// Error is the error object of a failed response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
