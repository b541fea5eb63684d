// Package client provides the HTTP and WebSocket clients the Connect TUI
// uses to talk to the Connect API. Wire types are declared here rather than
// imported from the server.
package client

import (
	"encoding/json"

	"github.com/connect-button/connect/internal/connection"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const MsgConnectResult MessageType = "connect_result"

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// ConnectResultPayload is the outcome of an authentication page.
type ConnectResultPayload struct {
	ConnectionID string              `json:"connectionId"`
	NextStep     connection.NextStep `json:"nextStep"`
	ErrorKind    string              `json:"errorKind,omitempty"`
}

// Result converts the payload for the button.
func (p ConnectResultPayload) Result() connection.ConnectResult {
	switch p.NextStep {
	case connection.StepComplete, connection.StepError:
		return connection.ConnectResult{NextStep: p.NextStep, ErrorKind: p.ErrorKind}
	default:
		return connection.ConnectResult{NextStep: connection.StepIndeterminate}
	}
}

type connectRequest struct {
	Email string `json:"email,omitempty"`
	State string `json:"state"`
}

type connectResponse struct {
	AuthURL string `json:"authUrl"`
}
