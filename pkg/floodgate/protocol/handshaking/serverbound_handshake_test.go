package handshaking_test

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/handshaking"
)

func TestServerBoundHandshake_Wire(t *testing.T) {
	hs := handshaking.ServerBoundHandshake{
		ProtocolVersion: 764,
		ServerAddress:   "mc.example.org",
		ServerPort:      25565,
		NextState:       handshaking.StateLogin,
	}
	wire := []byte{
		0xfc, 0x05, // protocol version 764
		0x0e, 'm', 'c', '.', 'e', 'x', 'a', 'm', 'p', 'l', 'e', '.', 'o', 'r', 'g',
		0x63, 0xdd, // port 25565
		0x02, // login
	}

	var pk protocol.Packet
	if err := hs.Marshal(&pk); err != nil {
		t.Fatal(err)
	}

	if pk.ID != handshaking.IDServerBoundHandshake || !bytes.Equal(pk.Data, wire) {
		t.Fatalf("got: %#x % x; want: %#x % x", pk.ID, pk.Data, handshaking.IDServerBoundHandshake, wire)
	}

	var actual handshaking.ServerBoundHandshake
	if err := actual.Unmarshal(pk); err != nil {
		t.Fatal(err)
	}

	if actual != hs {
		t.Errorf("got: %+v; want: %+v", actual, hs)
	}
}

func TestServerBoundHandshake_Unmarshal_Errors(t *testing.T) {
	tt := []struct {
		name   string
		packet protocol.Packet
		err    error
	}{
		{
			name:   "WrongID",
			packet: protocol.Packet{ID: 0x01},
			err:    protocol.ErrInvalidPacketID,
		},
		{
			name: "AddressTooLong",
			packet: protocol.Packet{
				Data: []byte{0xfc, 0x05, 0xff, 0xff, 0xff, 0xff, 0x07},
			},
			err: protocol.ErrStringTooLong,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var hs handshaking.ServerBoundHandshake
			if err := hs.Unmarshal(tc.packet); !errors.Is(err, tc.err) {
				t.Errorf("got: %v; want: %v", err, tc.err)
			}
		})
	}
}

func TestServerBoundHandshake_NextState(t *testing.T) {
	tt := []struct {
		state  protocol.VarInt
		status bool
		login  bool
	}{
		{state: handshaking.StateStatus, status: true},
		{state: handshaking.StateLogin, login: true},
		{state: 3},
	}

	for _, tc := range tt {
		hs := handshaking.ServerBoundHandshake{NextState: tc.state}
		if hs.IsStatusRequest() != tc.status || hs.IsLoginRequest() != tc.login {
			t.Errorf("state %d: got status %v login %v; want status %v login %v",
				tc.state, hs.IsStatusRequest(), hs.IsLoginRequest(), tc.status, tc.login)
		}
	}
}

func TestServerBoundHandshake_ServerAddress(t *testing.T) {
	envelope := "^Floodgate^" + strings.Repeat("x", 600)

	tt := []struct {
		name   string
		addr   string
		host   string
		fields []string
	}{
		{
			name:   "Plain",
			addr:   "mc.example.org",
			host:   "mc.example.org",
			fields: []string{"mc.example.org"},
		},
		{
			name:   "TrailingDot",
			addr:   "mc.example.org.",
			host:   "mc.example.org",
			fields: []string{"mc.example.org."},
		},
		{
			name:   "Forge",
			addr:   "mc.example.org\x00FML3\x00",
			host:   "mc.example.org",
			fields: []string{"mc.example.org", "FML3", ""},
		},
		{
			name:   "Envelope",
			addr:   "mc.example.org\x00" + envelope,
			host:   "mc.example.org",
			fields: []string{"mc.example.org", envelope},
		},
		{
			name:   "Forwarded",
			addr:   "mc.example.org\x00203.0.113.7\x000000000000000000000901f64f65c7c3",
			host:   "mc.example.org",
			fields: []string{"mc.example.org", "203.0.113.7", "0000000000000000000901f64f65c7c3"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			hs := handshaking.ServerBoundHandshake{ServerAddress: protocol.String(tc.addr)}

			if host := hs.ParseServerAddress(); host != tc.host {
				t.Errorf("got host: %q; want: %q", host, tc.host)
			}

			fields := hs.ServerAddressFields()
			if !reflect.DeepEqual(fields, tc.fields) {
				t.Errorf("got fields: %q; want: %q", fields, tc.fields)
			}

			var rebuilt handshaking.ServerBoundHandshake
			rebuilt.SetServerAddressFields(fields...)
			if rebuilt.ServerAddress != hs.ServerAddress {
				t.Errorf("got: %q; want: %q", rebuilt.ServerAddress, hs.ServerAddress)
			}
		})
	}
}
