package injector

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/handshaking"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/login"
	"go.uber.org/zap"
)

var ErrConnectionClosed = errors.New("connection closed")

type State int

const (
	StateAwaitingHandshake State = iota
	StateAwaitingLogin
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting handshake"
	case StateAwaitingLogin:
		return "awaiting login"
	default:
		return "done"
	}
}

// Verdict tells the pipeline what to do with an intercepted packet.
type Verdict int

const (
	Forward Verdict = iota
	Swallow
)

// Observer is notified about handshake outcomes and injected logins.
type Observer interface {
	ObserveHandshake(kind handshake.OutcomeKind)
	ObserveLogin(forwarded bool)
}

// Injector intercepts the handshake and login start of a single connection and
// logs in verified players as if the host authenticated them itself.
// It is not safe for concurrent use.
type Injector struct {
	Host      Host
	Evaluator handshake.Evaluator
	Logger    *zap.Logger
	Observer  Observer

	state     State
	identity  identity.Identity
	forwarded bool
}

func New(host Host, eval handshake.Evaluator, logger *zap.Logger) *Injector {
	return &Injector{
		Host:      host,
		Evaluator: eval,
		Logger:    logger,
	}
}

func (i *Injector) State() State {
	return i.state
}

// Identity returns the verified identity of the player.
// It returns false if the handshake did not carry one.
func (i *Injector) Identity() (identity.Identity, bool) {
	if i.identity.Version == 0 {
		return identity.Identity{}, false
	}
	return i.identity, true
}

// Forwarded reports whether a forwarding hop sits in front of the connection.
func (i *Injector) Forwarded() bool {
	return i.forwarded
}

// Detached reports whether the injector can be removed from the pipeline.
func (i *Injector) Detached() bool {
	return i.state == StateDone
}

// Close stops any further interception. It is called when the connection closes.
func (i *Injector) Close() {
	i.state = StateDone
}

// Intercept processes the next packet the client sent. The packet is rewritten
// in place if the server address of a handshake has to change.
func (i *Injector) Intercept(pk *protocol.Packet) (Verdict, error) {
	switch i.state {
	case StateAwaitingHandshake:
		return i.onHandshake(pk)
	case StateAwaitingLogin:
		return i.onLogin(pk)
	default:
		return Forward, nil
	}
}

func (i *Injector) onHandshake(pk *protocol.Packet) (Verdict, error) {
	var hs handshaking.ServerBoundHandshake
	if err := hs.Unmarshal(*pk); err != nil {
		i.state = StateDone
		return Forward, fmt.Errorf("failed to read handshake: %w", err)
	}

	if !hs.IsLoginRequest() {
		i.state = StateDone
		return Forward, nil
	}

	out := i.Evaluator.Handle(string(hs.ServerAddress))
	i.observeHandshake(out.Kind)

	switch out.Kind {
	case handshake.Success:
	case handshake.InvalidDataLength:
		i.logger().Info("invalid floodgate data length",
			zap.Int("expected", out.ExpectedLength),
			zap.Int("actual", out.ActualLength),
			logAddr(i.Host.RemoteAddr()),
		)
		i.state = StateDone
		if err := i.Host.Close(); err != nil {
			i.logger().Debug("failed to close connection", zap.Error(err))
		}
		return Swallow, ErrConnectionClosed
	case handshake.InvalidPayload:
		i.logger().Debug("failed to open floodgate data",
			zap.Error(out.Err),
			logAddr(i.Host.RemoteAddr()),
		)
		i.state = StateDone
		return Forward, nil
	default:
		i.state = StateDone
		return Forward, nil
	}

	i.identity = out.Identity
	i.forwarded = handshake.IsForwarded(out.Residual)

	if i.forwarded {
		hs.ServerAddress = protocol.String(handshake.ForwardedHost(out.Residual, out.Identity))
		if err := hs.Marshal(pk); err != nil {
			i.state = StateDone
			return Forward, err
		}
		i.state = StateDone
		i.observeLogin()
		return Forward, nil
	}

	i.Host.SetSpoofedUUID(out.Identity.CorrectUUID)
	i.Host.SetRemoteAddr(WithIP(i.Host.RemoteAddr(), out.Identity.IP))
	i.state = StateAwaitingLogin
	return Forward, nil
}

func (i *Injector) onLogin(pk *protocol.Packet) (Verdict, error) {
	if pk.ID != login.IDServerBoundLoginStart {
		return Forward, nil
	}

	i.state = StateDone
	p := i.Host.InstallProfile(i.identity.CorrectUUID, i.identity.CorrectUsername)
	if err := i.Host.AdvanceLogin(p); err != nil {
		return Swallow, fmt.Errorf("failed to advance login: %w", err)
	}

	if err := i.Host.SetReady(); err != nil {
		return Swallow, fmt.Errorf("failed to set ready: %w", err)
	}

	i.observeLogin()
	i.logger().Debug("injected login",
		zap.String("username", i.identity.CorrectUsername),
		zap.String("uuid", i.identity.CorrectUUID.String()),
	)
	return Swallow, nil
}

func (i *Injector) observeHandshake(kind handshake.OutcomeKind) {
	if i.Observer != nil {
		i.Observer.ObserveHandshake(kind)
	}
}

func (i *Injector) observeLogin() {
	if i.Observer != nil {
		i.Observer.ObserveLogin(i.forwarded)
	}
}

func (i *Injector) logger() *zap.Logger {
	if i.Logger == nil {
		return zap.NewNop()
	}
	return i.Logger
}

// WithIP replaces the IP of addr and keeps its port. addr is returned as is
// if ip does not parse.
func WithIP(addr net.Addr, ip string) net.Addr {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return addr
	}

	port := 0
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		port = tcpAddr.Port
	} else if addr != nil {
		if _, p, err := net.SplitHostPort(addr.String()); err == nil {
			port, _ = strconv.Atoi(p)
		}
	}

	return &net.TCPAddr{
		IP:   parsed,
		Port: port,
	}
}

func logAddr(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.Skip()
	}
	return zap.String("remoteAddr", addr.String())
}
