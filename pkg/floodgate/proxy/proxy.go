package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/handshaking"
	"github.com/haveachin/floodgate/pkg/floodgate/relay"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrRejected = errors.New("handshake rejected")

// DefaultReadBufferSize fits a handshake that carries an envelope.
const DefaultReadBufferSize = 32 * datasize.KB

type Config struct {
	Bind           string                     `mapstructure:"bind"`
	ProxyProtocol  server.ProxyProtocolConfig `mapstructure:"proxyProtocol"`
	Filters        server.FiltersConfig       `mapstructure:"filters"`
	Backend        server.BackendConfig       `mapstructure:"backend"`
	ClientTimeout  time.Duration              `mapstructure:"clientTimeout"`
	ReadBufferSize datasize.ByteSize          `mapstructure:"readBufferSize"`
}

// Proxy is the first hop behind the gateway. It relays the envelope of
// verified players to the backend in the format forwarding hops use.
type Proxy struct {
	Config    Config
	Logger    *zap.Logger
	Evaluator handshake.Evaluator
	Store     relay.Store
	Observer  injector.Observer
	Dial      server.DialFunc

	filter atomic.Pointer[server.Filter]
	conns  atomic.Int64
}

func New(cfg Config) *Proxy {
	p := &Proxy{
		Config: cfg,
		Logger: zap.NewNop(),
	}
	p.SetFilters(cfg.Filters)
	return p
}

func (p *Proxy) SetFilters(cfg server.FiltersConfig) {
	f := server.NewFilter(cfg)
	p.filter.Store(&f)
}

func (p *Proxy) ActiveConns() int64 {
	return p.conns.Load()
}

func (p *Proxy) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", p.Config.Bind)
	if err != nil {
		return err
	}

	if p.Config.ProxyProtocol.Receive {
		l, err = server.NewProxyProtocolListener(l, p.Config.ProxyProtocol.TrustedCIDRs)
		if err != nil {
			return err
		}
	}

	p.Logger.Info("listening for connections",
		zap.String("bind", p.Config.Bind),
		zap.String("backend", p.Config.Backend.Address),
	)
	return p.Serve(ctx, l)
}

func (p *Proxy) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		c, err := l.Accept()
		if errors.Is(err, net.ErrClosed) {
			return ctx.Err()
		} else if err != nil {
			p.Logger.Debug("error accepting new connection", zap.Error(err))
			continue
		}

		go p.ServeConn(ctx, c)
	}
}

func (p *Proxy) ServeConn(ctx context.Context, c net.Conn) {
	if err := p.filter.Load().Filter(c); err != nil {
		p.Logger.Debug("filtered connection", zap.Error(err))
		c.Close()
		return
	}

	p.conns.Inc()
	defer p.conns.Dec()
	defer c.Close()

	if err := p.handleConn(ctx, c); err != nil {
		p.Logger.Debug("error while handling connection",
			zap.Error(err),
			zap.String("remoteAddr", c.RemoteAddr().String()),
		)
	}
}

func (p *Proxy) handleConn(ctx context.Context, c net.Conn) error {
	if p.Config.ClientTimeout > 0 {
		if err := c.SetReadDeadline(time.Now().Add(p.Config.ClientTimeout)); err != nil {
			return err
		}
	}

	size := p.Config.ReadBufferSize
	if size == 0 {
		size = DefaultReadBufferSize
	}

	r := bufio.NewReaderSize(c, int(size.Bytes()))
	var pk protocol.Packet
	n, err := protocol.PeekPacket(r, &pk)
	if err != nil {
		return err
	}

	var hs handshaking.ServerBoundHandshake
	if err := hs.Unmarshal(pk); err != nil {
		return err
	}

	if !hs.IsLoginRequest() {
		return p.relay(ctx, c, r, nil, c.RemoteAddr())
	}

	out := p.Evaluator.Handle(string(hs.ServerAddress))
	if p.Observer != nil {
		p.Observer.ObserveHandshake(out.Kind)
	}

	switch out.Kind {
	case handshake.NotFloodgateClient:
		return p.relay(ctx, c, r, nil, c.RemoteAddr())
	case handshake.InvalidDataLength:
		p.Logger.Info("invalid floodgate data length",
			zap.Int("expected", out.ExpectedLength),
			zap.Int("actual", out.ActualLength),
		)
		return fmt.Errorf("%w: %s", ErrRejected, out.Kind)
	case handshake.InvalidPayload:
		return fmt.Errorf("%w: %s: %v", ErrRejected, out.Kind, out.Err)
	}

	id := out.Identity
	env := envelope.Envelope(hs.ServerAddressFields()[1])
	if err := p.Store.Put(ctx, id.CorrectUUID, env); err != nil {
		return err
	}
	defer func() {
		if err := p.Store.Remove(context.Background(), id.CorrectUUID); err != nil {
			p.Logger.Warn("failed to remove relay entry", zap.Error(err))
		}
	}()

	if _, err := r.Discard(n); err != nil {
		return err
	}

	return p.relay(ctx, c, r, func() (protocol.Packet, error) {
		cached, ok, err := relay.Take(ctx, p.Store, id.CorrectUUID)
		if err != nil {
			return protocol.Packet{}, err
		}
		if ok {
			env = cached
		}

		hs.ServerAddress = protocol.String(handshake.RelayHost(hs.ParseServerAddress(), env, id))
		var relayed protocol.Packet
		err = hs.Marshal(&relayed)
		return relayed, err
	}, injector.WithIP(c.RemoteAddr(), id.IP))
}

// relay dials the backend, writes the handshake built by hsFn if given and
// pipes everything else that r and the backend send.
func (p *Proxy) relay(ctx context.Context, c net.Conn, r io.Reader, hsFn func() (protocol.Packet, error), srcAddr net.Addr) error {
	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: p.Config.Backend.DialTimeout}).DialContext
	}

	rc, err := dial(ctx, "tcp", p.Config.Backend.Address)
	if err != nil {
		return err
	}
	defer rc.Close()

	if p.Config.Backend.SendProxyProtocol {
		if err := server.WriteProxyProtocolHeader(srcAddr, rc); err != nil {
			return err
		}
	}

	if hsFn != nil {
		pk, err := hsFn()
		if err != nil {
			return err
		}

		if _, err := pk.WriteTo(rc); err != nil {
			return err
		}
	}

	if err := c.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	cClosedChan := make(chan struct{})
	rcClosedChan := make(chan struct{})
	go func() {
		_, _ = io.Copy(rc, r)
		close(cClosedChan)
	}()
	go func() {
		_, _ = io.Copy(c, rc)
		close(rcClosedChan)
	}()

	select {
	case <-cClosedChan:
		rc.Close()
		<-rcClosedChan
	case <-rcClosedChan:
		c.Close()
		<-cClosedChan
	}
	return nil
}
