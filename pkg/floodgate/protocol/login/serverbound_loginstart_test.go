package login_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/login"
)

func TestServerBoundLoginStart_Unmarshal(t *testing.T) {
	tt := []struct {
		name    string
		version protocol.Version
		data    []byte
		want    login.ServerBoundLoginStart
	}{
		{
			name:    "NameOnly",
			version: protocol.Version1_18_2,
			data:    []byte{0x05, 'S', 't', 'e', 'v', 'e'},
			want:    login.ServerBoundLoginStart{Name: "Steve"},
		},
		{
			name:    "TrailingBytesIgnoredBefore1_19",
			version: protocol.Version1_18_2,
			data:    []byte{0x02, 'A', 'l', 0x01},
			want:    login.ServerBoundLoginStart{Name: "Al"},
		},
		{
			name:    "NoKeyNoUUID",
			version: protocol.Version1_19,
			data:    []byte{0x02, 'A', 'l', 0x00, 0x00},
			want:    login.ServerBoundLoginStart{Name: "Al"},
		},
		{
			name:    "NoUUID",
			version: protocol.Version1_19_3,
			data:    []byte{0x02, 'A', 'l', 0x00},
			want:    login.ServerBoundLoginStart{Name: "Al"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var actual login.ServerBoundLoginStart
			pk := protocol.Packet{ID: login.IDServerBoundLoginStart, Data: tc.data}
			if err := actual.Unmarshal(pk, tc.version); err != nil {
				t.Fatal(err)
			}

			if actual.Name != tc.want.Name || actual.HasPlayerUUID != tc.want.HasPlayerUUID {
				t.Errorf("got: %v; want: %v", actual, tc.want)
			}
		})
	}
}

func TestServerBoundLoginStart_Unmarshal_Errors(t *testing.T) {
	tt := []struct {
		name    string
		version protocol.Version
		pk      protocol.Packet
	}{
		{
			name:    "WrongID",
			version: protocol.Version1_20_2,
			pk:      protocol.Packet{ID: 0x01, Data: []byte{0x00}},
		},
		{
			name:    "MissingUUID",
			version: protocol.Version1_20_2,
			pk:      protocol.Packet{ID: login.IDServerBoundLoginStart, Data: []byte{0x02, 'A', 'l', 0x01, 0x02}},
		},
		{
			name:    "MissingUUIDFlag",
			version: protocol.Version1_19_3,
			pk:      protocol.Packet{ID: login.IDServerBoundLoginStart, Data: []byte{0x02, 'A', 'l'}},
		},
		{
			name:    "TruncatedPublicKey",
			version: protocol.Version1_19,
			pk:      protocol.Packet{ID: login.IDServerBoundLoginStart, Data: []byte{0x02, 'A', 'l', 0x01, 0x00, 0x00}},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var actual login.ServerBoundLoginStart
			if err := actual.Unmarshal(tc.pk, tc.version); err == nil {
				t.Errorf("got: %v; want: error", actual)
			}
		})
	}
}

func TestServerBoundLoginStart_MarshalUnmarshal(t *testing.T) {
	playerUUID := protocol.UUID(uuid.MustParse("00000000-0000-0000-0009-01f64f65c7c3"))
	tt := []struct {
		name    string
		version protocol.Version
		packet  login.ServerBoundLoginStart
	}{
		{
			name:    "1.18.2",
			version: protocol.Version1_18_2,
			packet:  login.ServerBoundLoginStart{Name: "Steve"},
		},
		{
			name:    "1.19",
			version: protocol.Version1_19,
			packet: login.ServerBoundLoginStart{
				Name:          "Steve",
				HasPublicKey:  true,
				Timestamp:     1700000000000,
				PublicKey:     []byte{0x30, 0x82, 0x01, 0x22},
				Signature:     []byte{0xca, 0xfe},
				HasPlayerUUID: true,
				PlayerUUID:    playerUUID,
			},
		},
		{
			name:    "1.19.3",
			version: protocol.Version1_19_3,
			packet: login.ServerBoundLoginStart{
				Name:          "Steve",
				HasPlayerUUID: true,
				PlayerUUID:    playerUUID,
			},
		},
		{
			name:    "1.20.2",
			version: protocol.Version1_20_2,
			packet: login.ServerBoundLoginStart{
				Name:          "Steve",
				HasPlayerUUID: true,
				PlayerUUID:    playerUUID,
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var pk protocol.Packet
			if err := tc.packet.Marshal(&pk, tc.version); err != nil {
				t.Fatal(err)
			}

			var actual login.ServerBoundLoginStart
			if err := actual.Unmarshal(pk, tc.version); err != nil {
				t.Fatal(err)
			}

			if actual.Name != tc.packet.Name ||
				actual.HasPublicKey != tc.packet.HasPublicKey ||
				actual.Timestamp != tc.packet.Timestamp ||
				!bytes.Equal(actual.PublicKey, tc.packet.PublicKey) ||
				!bytes.Equal(actual.Signature, tc.packet.Signature) ||
				actual.HasPlayerUUID != tc.packet.HasPlayerUUID ||
				actual.PlayerUUID != tc.packet.PlayerUUID {
				t.Errorf("got: %v, want: %v", actual, tc.packet)
			}
		})
	}
}

func TestClientBoundLoginSuccess_MarshalUnmarshal(t *testing.T) {
	versions := []protocol.Version{
		protocol.Version(578),
		protocol.Version1_16,
		protocol.Version1_20_2,
	}

	expected := login.ClientBoundLoginSuccess{
		UUID:     protocol.UUID(uuid.MustParse("00000000-0000-0000-0009-01f64f65c7c3")),
		Username: ".Steve",
	}

	for _, v := range versions {
		t.Run(v.Name(), func(t *testing.T) {
			var pk protocol.Packet
			if err := expected.Marshal(&pk, v); err != nil {
				t.Fatal(err)
			}

			var actual login.ClientBoundLoginSuccess
			if err := actual.Unmarshal(pk, v); err != nil {
				t.Fatal(err)
			}

			if actual != expected {
				t.Errorf("got: %v, want: %v", actual, expected)
			}
		})
	}
}
