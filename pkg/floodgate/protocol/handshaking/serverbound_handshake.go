package handshaking

import (
	"strings"

	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
)

const IDServerBoundHandshake int32 = 0x00

// Next states a client can ask for.
const (
	StateStatus protocol.VarInt = 1
	StateLogin  protocol.VarInt = 2
)

// SeparatorHost separates the fields that forwarding proxies, Forge and the
// gateway append to the server address.
const SeparatorHost = "\x00"

// ServerBoundHandshake is the first packet of every Java edition connection.
type ServerBoundHandshake struct {
	ProtocolVersion protocol.VarInt
	ServerAddress   protocol.String
	ServerPort      protocol.UnsignedShort
	NextState       protocol.VarInt
}

func (pk ServerBoundHandshake) Marshal(packet *protocol.Packet) error {
	return packet.Encode(IDServerBoundHandshake,
		pk.ProtocolVersion, pk.ServerAddress, pk.ServerPort, pk.NextState)
}

func (pk *ServerBoundHandshake) Unmarshal(packet protocol.Packet) error {
	if packet.ID != IDServerBoundHandshake {
		return protocol.ErrInvalidPacketID
	}

	return packet.Decode(&pk.ProtocolVersion, &pk.ServerAddress, &pk.ServerPort, &pk.NextState)
}

func (pk ServerBoundHandshake) IsStatusRequest() bool {
	return pk.NextState == StateStatus
}

func (pk ServerBoundHandshake) IsLoginRequest() bool {
	return pk.NextState == StateLogin
}

// ServerAddressFields splits the server address into the host and every field appended to it.
func (pk ServerBoundHandshake) ServerAddressFields() []string {
	return strings.Split(string(pk.ServerAddress), SeparatorHost)
}

// SetServerAddressFields replaces the server address with fields joined by SeparatorHost.
func (pk *ServerBoundHandshake) SetServerAddressFields(fields ...string) {
	pk.ServerAddress = protocol.String(strings.Join(fields, SeparatorHost))
}

// ParseServerAddress returns the host the client connected to without
// appended fields or the trailing dot of a fully qualified name.
func (pk ServerBoundHandshake) ParseServerAddress() string {
	host, _, _ := strings.Cut(string(pk.ServerAddress), SeparatorHost)
	return strings.Trim(host, ".")
}
