package server

import "github.com/connect-button/connect/internal/connection"

type MessageType string

const MsgConnectResult MessageType = "connect_result"

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// ConnectResultPayload reports the outcome of an authentication page.
type ConnectResultPayload struct {
	ConnectionID string `json:"connectionId"`
	connection.ConnectResult
}

// ConnectRequest is the body of POST /api/connections/{id}/connect.
type ConnectRequest struct {
	Email string `json:"email"`
	State string `json:"state"`
}

// ConnectResponse points the user at the authentication page.
type ConnectResponse struct {
	AuthURL string `json:"authUrl"`
}
