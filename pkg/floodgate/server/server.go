package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/handshaking"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/login"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrForwardingDisabled = errors.New("ip forwarding is not enabled")
	ErrUnknownNextState   = errors.New("unknown next state")
	errLoginNotReady      = errors.New("login is not ready to accept")
)

const forwardingDisabledText = "If you wish to use IP forwarding, please enable it in your BungeeCord config as well!"

type Config struct {
	Bind             string              `mapstructure:"bind"`
	ProxyProtocol    ProxyProtocolConfig `mapstructure:"proxyProtocol"`
	Filters          FiltersConfig       `mapstructure:"filters"`
	BungeeCord       bool                `mapstructure:"bungeeCord"`
	ClientTimeout    time.Duration       `mapstructure:"clientTimeout"`
	KeepAliveTimeout time.Duration       `mapstructure:"keepAliveTimeout"`
}

func DefaultConfig() Config {
	return Config{
		Bind:             ":25565",
		ClientTimeout:    10 * time.Second,
		KeepAliveTimeout: 30 * time.Second,
		Filters: FiltersConfig{
			RateLimiter: &RateLimiterConfig{
				RequestLimit: 10,
				WindowLength: time.Second,
			},
		},
	}
}

// Server is an offline mode Java edition login server that logs in players
// who joined through the gateway with their verified identity.
type Server struct {
	Config      Config
	Logger      *zap.Logger
	EventBus    event.Bus
	Evaluator   handshake.Evaluator
	Observer    injector.Observer
	PlayHandler PlayHandler

	filter atomic.Pointer[Filter]
	conns  atomic.Int64
}

func New(cfg Config) *Server {
	s := &Server{
		Config: cfg,
		Logger: zap.NewNop(),
	}
	s.SetFilters(cfg.Filters)
	return s
}

// SetFilters replaces the connection filters. Connections that are already
// served are not affected.
func (s *Server) SetFilters(cfg FiltersConfig) {
	f := NewFilter(cfg)
	s.filter.Store(&f)
}

// ActiveConns returns the number of connections that are currently served.
func (s *Server) ActiveConns() int64 {
	return s.conns.Load()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Config.Bind)
	if err != nil {
		return err
	}

	if s.Config.ProxyProtocol.Receive {
		l, err = NewProxyProtocolListener(l, s.Config.ProxyProtocol.TrustedCIDRs)
		if err != nil {
			return err
		}
	}

	s.Logger.Info("listening for connections",
		zap.String("bind", s.Config.Bind),
	)
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done or l is closed.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		c, err := l.Accept()
		if errors.Is(err, net.ErrClosed) {
			return ctx.Err()
		} else if err != nil {
			s.Logger.Debug("error accepting new connection", zap.Error(err))
			continue
		}

		go s.ServeConn(ctx, c)
	}
}

func (s *Server) ServeConn(ctx context.Context, c net.Conn) {
	if err := s.filter.Load().Filter(c); err != nil {
		s.Logger.Debug("filtered connection",
			zap.Error(err),
			logAddr(c.RemoteAddr()),
		)
		c.Close()
		return
	}

	s.conns.Inc()
	defer s.conns.Dec()

	conn := NewConn(c)
	conn.SetTimeout(s.Config.ClientTimeout)
	nm := newNetworkManager(conn, s.EventBus)
	inj := injector.New(nm, s.Evaluator, s.Logger)
	inj.Observer = s.Observer
	nm.AddInterceptor(inj)

	defer s.closeConn(nm, inj)

	if err := s.handleConn(ctx, nm, inj); err != nil {
		s.Logger.Debug("error while handling connection",
			zap.Error(err),
			logAddr(nm.RemoteAddr()),
		)
	}
}

// closeConn tears down a connection. Relay entries are owned by the forwarding
// hop that wrote them, which consumes or removes them itself.
func (s *Server) closeConn(nm *NetworkManager, inj *injector.Injector) {
	inj.Close()
	_ = nm.conn.ForceClose()

	if nm.listener.state == LoginStateAccepted && s.EventBus != nil {
		s.EventBus.Push(PlayerLeaveEvent{
			Player: nm.playerInfo(),
		}, PlayerLeaveEventTopicAsync)
	}
}

func (s *Server) handleConn(ctx context.Context, nm *NetworkManager, inj *injector.Injector) error {
	var hsPk protocol.Packet
	if err := nm.conn.ReadPacket(&hsPk); err != nil {
		return err
	}

	if _, err := nm.intercept(&hsPk); err != nil {
		return err
	}

	var hs handshaking.ServerBoundHandshake
	if err := hs.Unmarshal(hsPk); err != nil {
		return err
	}

	switch {
	case hs.IsStatusRequest():
		return s.PlayHandler.HandleStatus(ctx, nm.conn, hsPk)
	case hs.IsLoginRequest():
	default:
		return fmt.Errorf("%w: %d", ErrUnknownNextState, hs.NextState)
	}

	if id, ok := inj.Identity(); ok {
		nm.identity = &id
	}

	version := protocol.Version(hs.ProtocolVersion)
	var lsPk protocol.Packet
	if err := nm.conn.ReadPacket(&lsPk); err != nil {
		return err
	}

	verdict, err := nm.intercept(&lsPk)
	if err != nil {
		_ = nm.conn.Disconnect(err.Error())
		return err
	}

	if verdict == injector.Forward {
		var ls login.ServerBoundLoginStart
		if err := ls.Unmarshal(lsPk, version); err != nil {
			return err
		}

		if err := s.handleHello(nm, hs, string(ls.Name)); err != nil {
			return err
		}
	}

	if err := s.accept(nm, version); err != nil {
		return err
	}

	nm.conn.SetTimeout(s.Config.KeepAliveTimeout)
	return s.PlayHandler.HandlePlay(ctx, Player{
		Conn:       nm.conn,
		Handshake:  hs,
		Version:    version,
		Profile:    nm.listener.Profile,
		RemoteAddr: nm.RemoteAddr(),
		Identity:   nm.identity,
	})
}

// handleHello logs in a client the injector did not handle like a server in
// offline mode does.
func (s *Server) handleHello(nm *NetworkManager, hs handshaking.ServerBoundHandshake, username string) error {
	if username == "" || len([]rune(username)) > identity.MaxUsernameLength {
		_ = nm.conn.Disconnect("Invalid username")
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	if s.Config.BungeeCord {
		if err := s.applyForwarding(nm, hs.ServerAddressFields()); err != nil {
			_ = nm.conn.Disconnect(forwardingDisabledText)
			return err
		}
	}

	nm.InstallProfile(uuid.Nil, username)
	if err := nm.AdvanceLogin(nm.listener.Profile); err != nil {
		_ = nm.conn.Disconnect(err.Error())
		return err
	}

	return nm.SetReady()
}

// applyForwarding reads the client IP and UUID a BungeeCord proxy put into the server address.
func (s *Server) applyForwarding(nm *NetworkManager, fields []string) error {
	if len(fields) != 3 && len(fields) != 4 {
		return ErrForwardingDisabled
	}

	if net.ParseIP(fields[1]) == nil {
		return fmt.Errorf("%w: invalid ip %q", ErrForwardingDisabled, fields[1])
	}

	id, err := uuid.Parse(fields[2])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForwardingDisabled, err)
	}

	nm.SetRemoteAddr(injector.WithIP(nm.RemoteAddr(), fields[1]))
	nm.SetSpoofedUUID(id)
	return nil
}

// accept completes a login that is ready to accept.
func (s *Server) accept(nm *NetworkManager, version protocol.Version) error {
	if nm.listener.state != LoginStateReadyToAccept {
		return errLoginNotReady
	}

	var pk protocol.Packet
	if err := (login.ClientBoundLoginSuccess{
		UUID:     protocol.UUID(nm.listener.Profile.UUID),
		Username: protocol.String(nm.listener.Profile.Username),
	}).Marshal(&pk, version); err != nil {
		return err
	}

	if err := nm.conn.WritePacket(pk); err != nil {
		return err
	}
	nm.listener.state = LoginStateAccepted

	s.Logger.Info("player logged in",
		zap.String("username", nm.listener.Profile.Username),
		zap.String("uuid", nm.listener.Profile.UUID.String()),
		zap.Bool("floodgate", nm.identity != nil),
		logAddr(nm.RemoteAddr()),
	)

	if s.EventBus != nil {
		s.EventBus.Push(LoginEvent{
			Player: nm.playerInfo(),
		}, LoginEventTopicAsync)
	}
	return nil
}

func logAddr(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.Skip()
	}
	return zap.String("remoteAddr", addr.String())
}
