package login

import (
	"bytes"
	"io"

	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
)

const IDServerBoundLoginStart int32 = 0x00

// ServerBoundLoginStart is the first packet of the login state.
// Which fields follow the name depends on the protocol version.
type ServerBoundLoginStart struct {
	Name protocol.String

	// Sent by 1.19 up to 1.19.2 only.
	HasPublicKey protocol.Boolean
	Timestamp    protocol.Long
	PublicKey    protocol.ByteArray
	Signature    protocol.ByteArray

	// Optional from 1.19 on, always present since 1.20.2.
	HasPlayerUUID protocol.Boolean
	PlayerUUID    protocol.UUID
}

func (pk ServerBoundLoginStart) Marshal(packet *protocol.Packet, version protocol.Version) error {
	return packet.Encode(IDServerBoundLoginStart, pk.fields(version)...)
}

func (pk ServerBoundLoginStart) fields(version protocol.Version) []protocol.FieldEncoder {
	fields := []protocol.FieldEncoder{pk.Name}
	switch {
	case !version.HasLoginStartUUID():
		return fields
	case version >= protocol.Version1_20_2:
		return append(fields, pk.PlayerUUID)
	}

	if version < protocol.Version1_19_3 {
		fields = append(fields, pk.HasPublicKey)
		if pk.HasPublicKey {
			fields = append(fields, pk.Timestamp, pk.PublicKey, pk.Signature)
		}
	}

	fields = append(fields, pk.HasPlayerUUID)
	if pk.HasPlayerUUID {
		fields = append(fields, pk.PlayerUUID)
	}
	return fields
}

func (pk *ServerBoundLoginStart) Unmarshal(packet protocol.Packet, version protocol.Version) error {
	if packet.ID != IDServerBoundLoginStart {
		return protocol.ErrInvalidPacketID
	}

	*pk = ServerBoundLoginStart{}
	r := bytes.NewReader(packet.Data)
	if err := protocol.ScanFields(r, &pk.Name); err != nil {
		return err
	}

	switch {
	case !version.HasLoginStartUUID():
		return nil
	case version >= protocol.Version1_20_2:
		pk.HasPlayerUUID = true
		return protocol.ScanFields(r, &pk.PlayerUUID)
	}

	if version < protocol.Version1_19_3 {
		if err := pk.scanPublicKey(r); err != nil {
			return err
		}
	}

	if err := protocol.ScanFields(r, &pk.HasPlayerUUID); err != nil || !pk.HasPlayerUUID {
		return err
	}
	return protocol.ScanFields(r, &pk.PlayerUUID)
}

func (pk *ServerBoundLoginStart) scanPublicKey(r io.Reader) error {
	if err := protocol.ScanFields(r, &pk.HasPublicKey); err != nil || !pk.HasPublicKey {
		return err
	}
	return protocol.ScanFields(r, &pk.Timestamp, &pk.PublicKey, &pk.Signature)
}
