//go:generate mockgen -destination=host_mock_test.go -package=injector_test github.com/haveachin/floodgate/pkg/floodgate/injector Host
package injector_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/handshaking"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/login"
	"go.uber.org/zap"
)

type plainOpener struct{}

func (plainOpener) Open(env envelope.Envelope) (identity.Identity, error) {
	bb, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(env.String(), envelope.Header))
	if err != nil {
		return identity.Identity{}, &envelope.CryptoError{Op: "open", Err: err}
	}

	id, err := identity.Decode(string(bb), identity.DefaultDeriveConfig())
	if err != nil {
		return identity.Identity{}, &envelope.CryptoError{Op: "open", Err: err}
	}
	return id, nil
}

type recordingObserver struct {
	handshakes []handshake.OutcomeKind
	logins     []bool
}

func (o *recordingObserver) ObserveHandshake(kind handshake.OutcomeKind) {
	o.handshakes = append(o.handshakes, kind)
}

func (o *recordingObserver) ObserveLogin(forwarded bool) {
	o.logins = append(o.logins, forwarded)
}

var gatewayAddr = &net.TCPAddr{
	IP:   net.ParseIP("10.0.0.5"),
	Port: 54321,
}

func testIdentity() identity.Identity {
	return identity.New(identity.Params{
		Username:  "Block Builder",
		UUID:      uuid.MustParse("00000000-0000-0000-0009-01f64f65c7c3"),
		IP:        "192.0.2.10",
		Timestamp: time.UnixMilli(1684000000000),
		DeviceOS:  identity.DeviceOSSwitch,
		InputMode: identity.InputModeController,
	}, identity.DefaultDeriveConfig())
}

func floodgateField(payload string) string {
	return envelope.Header + base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func handshakePacket(t *testing.T, nextState protocol.VarInt, fields ...string) protocol.Packet {
	t.Helper()
	hs := handshaking.ServerBoundHandshake{
		ProtocolVersion: protocol.VarInt(protocol.Version1_20_2),
		ServerPort:      25565,
		NextState:       nextState,
	}
	hs.SetServerAddressFields(fields...)

	var pk protocol.Packet
	if err := hs.Marshal(&pk); err != nil {
		t.Fatal(err)
	}
	return pk
}

func loginStartPacket(t *testing.T, name string) protocol.Packet {
	t.Helper()
	var pk protocol.Packet
	if err := (login.ServerBoundLoginStart{
		Name:       protocol.String(name),
		PlayerUUID: protocol.UUID(uuid.New()),
	}).Marshal(&pk, protocol.Version1_20_2); err != nil {
		t.Fatal(err)
	}
	return pk
}

func newInjector(host injector.Host) (*injector.Injector, *recordingObserver) {
	obs := &recordingObserver{}
	inj := injector.New(host, handshake.Evaluator{Opener: plainOpener{}}, zap.NewNop())
	inj.Observer = obs
	return inj, obs
}

func TestInjector_Direct(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := testIdentity()
	host := NewMockHost(ctrl)
	host.EXPECT().RemoteAddr().AnyTimes().Return(gatewayAddr)

	profile := injector.Profile{UUID: id.CorrectUUID, Username: id.CorrectUsername}
	gomock.InOrder(
		host.EXPECT().SetSpoofedUUID(id.CorrectUUID).Times(1),
		host.EXPECT().SetRemoteAddr(&net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 54321}).Times(1),
		host.EXPECT().InstallProfile(id.CorrectUUID, id.CorrectUsername).Times(1).Return(profile),
		host.EXPECT().AdvanceLogin(profile).Times(1).Return(nil),
		host.EXPECT().SetReady().Times(1).Return(nil),
	)

	inj, obs := newInjector(host)

	hsPk := handshakePacket(t, handshaking.StateLogin,
		"play.example.com", floodgateField(identity.Encode(id)))
	original := hsPk.Clone()
	verdict, err := inj.Intercept(&hsPk)
	if err != nil || verdict != injector.Forward {
		t.Fatalf("handshake: got: %v, %v; want: %v, nil", verdict, err, injector.Forward)
	}

	if !bytes.Equal(hsPk.Data, original.Data) {
		t.Error("handshake was modified")
	}

	if inj.State() != injector.StateAwaitingLogin {
		t.Fatalf("got: %s; want: %s", inj.State(), injector.StateAwaitingLogin)
	}

	loginPk := loginStartPacket(t, "ignored")
	verdict, err = inj.Intercept(&loginPk)
	if err != nil || verdict != injector.Swallow {
		t.Fatalf("login: got: %v, %v; want: %v, nil", verdict, err, injector.Swallow)
	}

	if !inj.Detached() {
		t.Errorf("got: %s; want: %s", inj.State(), injector.StateDone)
	}

	if inj.Forwarded() {
		t.Error("connection reported as forwarded")
	}

	actual, ok := inj.Identity()
	if !ok || !actual.Equal(id) {
		t.Errorf("got: %+v; want: %+v", actual, id)
	}

	next := protocol.Packet{ID: 0x03, Data: []byte{0x01}}
	if verdict, _ := inj.Intercept(&next); verdict != injector.Forward {
		t.Errorf("got: %v; want: %v", verdict, injector.Forward)
	}

	if len(obs.handshakes) != 1 || obs.handshakes[0] != handshake.Success {
		t.Errorf("got: %v; want: [%s]", obs.handshakes, handshake.Success)
	}

	if len(obs.logins) != 1 || obs.logins[0] {
		t.Errorf("got: %v; want: [false]", obs.logins)
	}
}

func TestInjector_Forwarded(t *testing.T) {
	id := testIdentity()

	tt := []struct {
		name     string
		extra    []string
		expected string
	}{
		{
			name:     "WithoutProperties",
			expected: "play.example.com\x00192.0.2.10\x00" + id.CorrectUUID.String(),
		},
		{
			name:     "WithProperties",
			extra:    []string{"[]"},
			expected: "play.example.com\x00192.0.2.10\x00" + id.CorrectUUID.String() + "\x00[]",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			host := NewMockHost(ctrl)
			host.EXPECT().RemoteAddr().AnyTimes().Return(gatewayAddr)

			inj, obs := newInjector(host)

			fields := []string{"play.example.com", floodgateField(identity.Encode(id)), "10.0.0.9", uuid.NewString()}
			fields = append(fields, tc.extra...)
			pk := handshakePacket(t, handshaking.StateLogin, fields...)

			verdict, err := inj.Intercept(&pk)
			if err != nil || verdict != injector.Forward {
				t.Fatalf("got: %v, %v; want: %v, nil", verdict, err, injector.Forward)
			}

			var hs handshaking.ServerBoundHandshake
			if err := hs.Unmarshal(pk); err != nil {
				t.Fatal(err)
			}

			if string(hs.ServerAddress) != tc.expected {
				t.Errorf("got: %q; want: %q", hs.ServerAddress, tc.expected)
			}

			if hs.ServerPort != 25565 || hs.NextState != handshaking.StateLogin {
				t.Errorf("handshake fields changed: %+v", hs)
			}

			if !inj.Detached() || !inj.Forwarded() {
				t.Errorf("got: %s, forwarded %v; want: %s, forwarded true", inj.State(), inj.Forwarded(), injector.StateDone)
			}

			loginPk := loginStartPacket(t, ".Block_Builder")
			if verdict, _ := inj.Intercept(&loginPk); verdict != injector.Forward {
				t.Errorf("login start was not forwarded")
			}

			if len(obs.logins) != 1 || !obs.logins[0] {
				t.Errorf("got: %v; want: [true]", obs.logins)
			}
		})
	}
}

func TestInjector_Passthrough(t *testing.T) {
	id := testIdentity()

	tt := []struct {
		name      string
		nextState protocol.VarInt
		fields    []string
		kind      handshake.OutcomeKind
		observed  bool
	}{
		{
			name:      "NativeClient",
			nextState: handshaking.StateLogin,
			fields:    []string{"play.example.com"},
			kind:      handshake.NotFloodgateClient,
			observed:  true,
		},
		{
			name:      "InvalidPayload",
			nextState: handshaking.StateLogin,
			fields:    []string{"play.example.com", envelope.Header + "%%%"},
			kind:      handshake.InvalidPayload,
			observed:  true,
		},
		{
			name:      "StatusRequest",
			nextState: handshaking.StateStatus,
			fields:    []string{"play.example.com", floodgateField(identity.Encode(id))},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			host := NewMockHost(ctrl)
			host.EXPECT().RemoteAddr().AnyTimes().Return(gatewayAddr)

			inj, obs := newInjector(host)

			packets := []protocol.Packet{
				handshakePacket(t, tc.nextState, tc.fields...),
				loginStartPacket(t, "Notch"),
				{ID: 0x01, Data: []byte{0xde, 0xad}},
			}

			for i := range packets {
				expected := packets[i].Clone()
				verdict, err := inj.Intercept(&packets[i])
				if err != nil || verdict != injector.Forward {
					t.Fatalf("packet %d: got: %v, %v; want: %v, nil", i, verdict, err, injector.Forward)
				}

				if packets[i].ID != expected.ID || !bytes.Equal(packets[i].Data, expected.Data) {
					t.Errorf("packet %d was modified", i)
				}

				if !inj.Detached() {
					t.Errorf("packet %d: got: %s; want: %s", i, inj.State(), injector.StateDone)
				}
			}

			if _, ok := inj.Identity(); ok {
				t.Error("passthrough connection has an identity")
			}

			if tc.observed && (len(obs.handshakes) != 1 || obs.handshakes[0] != tc.kind) {
				t.Errorf("got: %v; want: [%s]", obs.handshakes, tc.kind)
			}
		})
	}
}

func TestInjector_InvalidDataLength(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	host.EXPECT().RemoteAddr().AnyTimes().Return(gatewayAddr)
	host.EXPECT().Close().Times(1).Return(nil)

	inj, _ := newInjector(host)

	fields := strings.Split(identity.Encode(testIdentity()), identity.Separator)
	payload := strings.Join(append(fields, "surplus"), identity.Separator)
	pk := handshakePacket(t, handshaking.StateLogin, "play.example.com", floodgateField(payload))

	verdict, err := inj.Intercept(&pk)
	if !errors.Is(err, injector.ErrConnectionClosed) {
		t.Errorf("got: %v; want: %v", err, injector.ErrConnectionClosed)
	}

	if verdict != injector.Swallow {
		t.Errorf("got: %v; want: %v", verdict, injector.Swallow)
	}

	if !inj.Detached() {
		t.Errorf("got: %s; want: %s", inj.State(), injector.StateDone)
	}
}

func TestInjector_AdvanceLoginFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := testIdentity()
	host := NewMockHost(ctrl)
	host.EXPECT().RemoteAddr().AnyTimes().Return(gatewayAddr)
	host.EXPECT().SetSpoofedUUID(gomock.Any()).Times(1)
	host.EXPECT().SetRemoteAddr(gomock.Any()).Times(1)
	host.EXPECT().InstallProfile(gomock.Any(), gomock.Any()).Times(1).Return(injector.Profile{})
	host.EXPECT().AdvanceLogin(gomock.Any()).Times(1).Return(errors.New("kicked by plugin"))

	inj, obs := newInjector(host)

	hsPk := handshakePacket(t, handshaking.StateLogin,
		"play.example.com", floodgateField(identity.Encode(id)))
	if _, err := inj.Intercept(&hsPk); err != nil {
		t.Fatal(err)
	}

	loginPk := loginStartPacket(t, "ignored")
	verdict, err := inj.Intercept(&loginPk)
	if err == nil || verdict != injector.Swallow {
		t.Errorf("got: %v, %v; want: %v, error", verdict, err, injector.Swallow)
	}

	if !inj.Detached() || len(obs.logins) != 0 {
		t.Errorf("got: %s, %d logins; want: %s, 0 logins", inj.State(), len(obs.logins), injector.StateDone)
	}
}

func TestInjector_CloseBeforeLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := testIdentity()
	host := NewMockHost(ctrl)
	host.EXPECT().RemoteAddr().AnyTimes().Return(gatewayAddr)
	host.EXPECT().SetSpoofedUUID(gomock.Any()).Times(1)
	host.EXPECT().SetRemoteAddr(gomock.Any()).Times(1)

	inj, _ := newInjector(host)

	hsPk := handshakePacket(t, handshaking.StateLogin,
		"play.example.com", floodgateField(identity.Encode(id)))
	if _, err := inj.Intercept(&hsPk); err != nil {
		t.Fatal(err)
	}

	inj.Close()

	loginPk := loginStartPacket(t, "ignored")
	if verdict, _ := inj.Intercept(&loginPk); verdict != injector.Forward {
		t.Errorf("got: %v; want: %v", verdict, injector.Forward)
	}

	if !inj.Detached() {
		t.Errorf("got: %s; want: %s", inj.State(), injector.StateDone)
	}
}

type stringAddr string

func (a stringAddr) Network() string { return "tcp" }
func (a stringAddr) String() string  { return string(a) }

func TestWithIP(t *testing.T) {
	tcpAddr := &net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 41234}

	tt := []struct {
		name     string
		addr     net.Addr
		ip       string
		expected string
	}{
		{
			name:     "TCPAddr",
			addr:     tcpAddr,
			ip:       "203.0.113.7",
			expected: "203.0.113.7:41234",
		},
		{
			name:     "OtherAddr",
			addr:     stringAddr("10.0.0.2:5000"),
			ip:       "2001:db8::1",
			expected: "[2001:db8::1]:5000",
		},
		{
			name:     "NilAddr",
			ip:       "203.0.113.7",
			expected: "203.0.113.7:0",
		},
		{
			name:     "InvalidIP",
			addr:     tcpAddr,
			ip:       "not-an-ip",
			expected: "10.0.0.2:41234",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			actual := injector.WithIP(tc.addr, tc.ip)
			if actual.String() != tc.expected {
				t.Errorf("got: %s; want: %s", actual, tc.expected)
			}
		})
	}
}
