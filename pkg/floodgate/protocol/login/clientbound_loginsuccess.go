package login

import (
	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
)

const IDClientBoundLoginSuccess int32 = 0x02

// ClientBoundLoginSuccess ends the login phase. The property array is only written for
// versions that expect it and is always empty since offline profiles carry no textures.
type ClientBoundLoginSuccess struct {
	UUID     protocol.UUID
	Username protocol.String
}

func (pk ClientBoundLoginSuccess) Marshal(packet *protocol.Packet, version protocol.Version) error {
	switch {
	case version < protocol.Version1_16:
		// Before 1.16 the UUID was sent as a dashed string.
		return packet.Encode(
			IDClientBoundLoginSuccess,
			protocol.String(pk.UUID.String()),
			pk.Username,
		)
	case version.HasLoginSuccessProperties():
		return packet.Encode(
			IDClientBoundLoginSuccess,
			pk.UUID,
			pk.Username,
			protocol.VarInt(0),
		)
	default:
		return packet.Encode(
			IDClientBoundLoginSuccess,
			pk.UUID,
			pk.Username,
		)
	}
}

func (pk *ClientBoundLoginSuccess) Unmarshal(packet protocol.Packet, version protocol.Version) error {
	if packet.ID != IDClientBoundLoginSuccess {
		return protocol.ErrInvalidPacketID
	}

	if version < protocol.Version1_16 {
		var id protocol.String
		if err := packet.Decode(&id, &pk.Username); err != nil {
			return err
		}
		u, err := uuid.Parse(string(id))
		if err != nil {
			return err
		}
		pk.UUID = protocol.UUID(u)
		return nil
	}

	return packet.Decode(
		&pk.UUID,
		&pk.Username,
	)
}
