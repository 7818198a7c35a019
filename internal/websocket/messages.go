package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/jbergloda1/swha-backend/internal/streaming"
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// encode renders an outbound protocol message as a JSON text frame
func encode(msg streaming.Outbound) (WriteData, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return WriteData{}, fmt.Errorf("failed to marshal %s: %w", msg.MessageType(), err)
	}
	return WriteData{Type: websocket.TextMessage, Payload: payload}, nil
}
