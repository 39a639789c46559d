package login

import (
	"encoding/json"

	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
)

const IDClientBoundDisconnect int32 = 0x00

// ClientBoundDisconnect ends the login with a reason that is shown to the player.
type ClientBoundDisconnect struct {
	Reason protocol.Chat
}

type textComponent struct {
	Text string `json:"text"`
}

// DisconnectText returns a disconnect whose reason is a plain text component.
func DisconnectText(msg string) ClientBoundDisconnect {
	// A struct holding a single string always marshals.
	bb, _ := json.Marshal(textComponent{Text: msg})
	return ClientBoundDisconnect{Reason: protocol.Chat(bb)}
}

// Text returns the text of a plain text reason or the raw reason otherwise.
func (pk ClientBoundDisconnect) Text() string {
	var tc textComponent
	if err := json.Unmarshal([]byte(pk.Reason), &tc); err != nil || tc.Text == "" {
		return string(pk.Reason)
	}
	return tc.Text
}

func (pk ClientBoundDisconnect) Marshal(packet *protocol.Packet) error {
	return packet.Encode(IDClientBoundDisconnect, pk.Reason)
}

func (pk *ClientBoundDisconnect) Unmarshal(packet protocol.Packet) error {
	if packet.ID != IDClientBoundDisconnect {
		return protocol.ErrInvalidPacketID
	}

	return packet.Decode(&pk.Reason)
}
