package login

import "github.com/haveachin/floodgate/pkg/floodgate/protocol"

const IDClientBoundSetCompression int32 = 0x03

// ClientBoundSetCompression switches the connection to compressed framing.
// Packets of at least Threshold bytes are deflated from then on.
type ClientBoundSetCompression struct {
	Threshold protocol.VarInt
}

func (pk ClientBoundSetCompression) Marshal(packet *protocol.Packet) error {
	return packet.Encode(
		IDClientBoundSetCompression,
		pk.Threshold,
	)
}

func (pk *ClientBoundSetCompression) Unmarshal(packet protocol.Packet) error {
	if packet.ID != IDClientBoundSetCompression {
		return protocol.ErrInvalidPacketID
	}

	return packet.Decode(&pk.Threshold)
}
