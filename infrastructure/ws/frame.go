package ws

import "encoding/json"

// Frame is the envelope for every websocket message in both
// directions: a type discriminator plus the raw payload.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type authenticatePayload struct {
	Credential string `json:"credential"`
}

type sendPublicPayload struct {
	Content string `json:"content"`
}

type sendPrivatePayload struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
}
