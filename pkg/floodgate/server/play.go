package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/handshaking"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/login"
	"go.uber.org/multierr"
)

var (
	ErrBackendDisconnected = errors.New("backend disconnected player")
	ErrUnexpectedPacket    = errors.New("unexpected packet")
)

// Player is a client whose login was accepted.
type Player struct {
	Conn       *Conn
	Handshake  handshaking.ServerBoundHandshake
	Version    protocol.Version
	Profile    injector.Profile
	RemoteAddr net.Addr
	// Identity is nil for players that did not join through the gateway.
	Identity *identity.Identity
}

// PlayHandler takes over a connection after the login phase.
type PlayHandler interface {
	HandleStatus(ctx context.Context, c *Conn, handshake protocol.Packet) error
	HandlePlay(ctx context.Context, p Player) error
}

type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type BackendConfig struct {
	Address           string        `mapstructure:"address"`
	SendProxyProtocol bool          `mapstructure:"sendProxyProtocol"`
	DialTimeout       time.Duration `mapstructure:"dialTimeout"`
}

// BackendHandler relays players to a backend server that runs in offline
// mode with BungeeCord forwarding enabled.
type BackendHandler struct {
	Config           BackendConfig
	KeepAliveTimeout time.Duration
	Dial             DialFunc
}

func (h BackendHandler) dial(ctx context.Context) (*Conn, error) {
	dial := h.Dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: h.Config.DialTimeout}).DialContext
	}

	c, err := dial(ctx, "tcp", h.Config.Address)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

func (h BackendHandler) HandleStatus(ctx context.Context, c *Conn, handshake protocol.Packet) error {
	rc, err := h.dial(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	if h.Config.SendProxyProtocol {
		if err := WriteProxyProtocolHeader(c.RemoteAddr(), rc); err != nil {
			return err
		}
	}

	if err := rc.WritePacket(handshake); err != nil {
		return err
	}

	return pipe(c, rc, h.KeepAliveTimeout, rawCopy, rawCopy)
}

func (h BackendHandler) HandlePlay(ctx context.Context, p Player) error {
	rc, err := h.dial(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	if h.Config.SendProxyProtocol {
		if err := WriteProxyProtocolHeader(p.RemoteAddr, rc); err != nil {
			return err
		}
	}

	hsPk, err := backendHandshake(p)
	if err != nil {
		return err
	}

	var lsPk protocol.Packet
	if err := (login.ServerBoundLoginStart{
		Name:          protocol.String(p.Profile.Username),
		HasPlayerUUID: true,
		PlayerUUID:    protocol.UUID(p.Profile.UUID),
	}).Marshal(&lsPk, p.Version); err != nil {
		return err
	}

	if err := rc.WritePackets(hsPk, lsPk); err != nil {
		return err
	}

	threshold, err := awaitLoginSuccess(p.Conn, rc)
	if err != nil {
		return err
	}

	if threshold < 0 {
		return pipe(p.Conn, rc, h.KeepAliveTimeout, rawCopy, rawCopy)
	}

	// The client was logged in without compression. Packets are translated
	// between the two framings for the rest of the session.
	return pipe(p.Conn, rc, h.KeepAliveTimeout, compressingCopy(threshold), decompressingCopy)
}

// backendHandshake builds the handshake a BungeeCord proxy would send for p.
func backendHandshake(p Player) (protocol.Packet, error) {
	hs := p.Handshake
	ip, _, err := net.SplitHostPort(p.RemoteAddr.String())
	if err != nil {
		ip = p.RemoteAddr.String()
	}

	hs.SetServerAddressFields(
		hs.ParseServerAddress(),
		ip,
		strings.ReplaceAll(p.Profile.UUID.String(), "-", ""),
	)

	var pk protocol.Packet
	err = hs.Marshal(&pk)
	return pk, err
}

// awaitLoginSuccess drops the login success of the backend because the
// client already received one. A disconnect is relayed to the client. It
// returns the compression threshold the backend enabled or -1.
func awaitLoginSuccess(c, rc *Conn) (int, error) {
	threshold := -1
	var pk protocol.Packet
	for {
		var err error
		if threshold < 0 {
			err = rc.ReadPacket(&pk)
		} else {
			err = rc.ReadCompressedPacket(&pk)
		}
		if err != nil {
			return 0, err
		}

		switch pk.ID {
		case login.IDClientBoundSetCompression:
			var sc login.ClientBoundSetCompression
			if err := sc.Unmarshal(pk); err != nil {
				return 0, err
			}
			threshold = int(sc.Threshold)
		case login.IDClientBoundLoginSuccess:
			return threshold, nil
		case login.IDClientBoundDisconnect:
			return 0, multierr.Append(ErrBackendDisconnected, c.WritePacket(pk))
		default:
			return 0, fmt.Errorf("%w: backend sent packet 0x%02x during login", ErrUnexpectedPacket, pk.ID)
		}
	}
}

// copyFunc copies from src to dst until either side fails.
type copyFunc func(dst, src *Conn)

func pipe(c, rc *Conn, timeout time.Duration, up, down copyFunc) error {
	c.SetTimeout(timeout)
	rc.SetTimeout(timeout)

	rcClosedChan := make(chan struct{})
	cClosedChan := make(chan struct{})

	go func() {
		up(rc, c)
		close(cClosedChan)
	}()
	go func() {
		down(c, rc)
		close(rcClosedChan)
	}()

	var waitChan chan struct{}
	select {
	case <-cClosedChan:
		rc.Close()
		waitChan = rcClosedChan
	case <-rcClosedChan:
		c.ForceClose()
		waitChan = cClosedChan
	}
	<-waitChan
	return nil
}

func rawCopy(dst, src *Conn) {
	// Hide the ReaderFrom and WriterTo of the embedded net.Conn so that
	// buffered bytes and deadlines of Conn are not bypassed.
	_, _ = io.Copy(struct{ io.Writer }{dst}, struct{ io.Reader }{src})
}

func compressingCopy(threshold int) copyFunc {
	return func(dst, src *Conn) {
		var pk protocol.Packet
		for {
			if err := src.ReadPacket(&pk); err != nil {
				return
			}
			if _, err := pk.WriteCompressedTo(dst, threshold); err != nil {
				return
			}
		}
	}
}

func decompressingCopy(dst, src *Conn) {
	var pk protocol.Packet
	for {
		if err := src.ReadCompressedPacket(&pk); err != nil {
			return
		}
		if err := dst.WritePacket(pk); err != nil {
			return
		}
	}
}
