package floodgate

import (
	"context"
	"crypto/rsa"
	"errors"

	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/proxy"
	"github.com/haveachin/floodgate/pkg/floodgate/relay"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrNoPublicKey = errors.New("no public key configured")

// App runs either the server or the proxy role with everything they need.
// It implements PluginAPI.
type App struct {
	cfg      Config
	logger   *zap.Logger
	eventBus event.Bus

	opener    opener
	sealer    atomic.Pointer[envelope.Sealer]
	store     relay.Store
	sweeper   *relay.Sweeper
	observers observers

	server *server.Server
	proxy  *proxy.Proxy
}

// opener opens envelopes with the keys of the latest loaded config.
type opener struct {
	v atomic.Pointer[envelope.Opener]
}

func (o *opener) Open(env envelope.Envelope) (identity.Identity, error) {
	return o.v.Load().Open(env)
}

func New(cfg Config, logger *zap.Logger, bus event.Bus) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if bus == nil {
		bus = event.NewInternalBus()
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		eventBus: bus,
	}

	if err := a.loadKeys(cfg); err != nil {
		return nil, err
	}

	store, err := a.newStore(cfg.Relay)
	if err != nil {
		return nil, err
	}
	a.store = store

	evaluator := handshake.Evaluator{
		Opener: &a.opener,
	}

	switch cfg.Role {
	case RoleProxy:
		prxCfg, err := cfg.ProxyConfig()
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}

		prx := proxy.New(prxCfg)
		prx.Logger = logger
		prx.Evaluator = evaluator
		prx.Store = store
		prx.Observer = &a.observers
		a.proxy = prx
	default:
		srvCfg, err := cfg.ServerConfig()
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}

		srv := server.New(srvCfg)
		srv.Logger = logger
		srv.EventBus = bus
		srv.Evaluator = evaluator
		srv.Observer = &a.observers
		srv.PlayHandler = server.BackendHandler{
			Config:           cfg.Server.Backend,
			KeepAliveTimeout: srvCfg.KeepAliveTimeout,
		}
		a.server = srv
	}

	return a, nil
}

func (a *App) loadKeys(cfg Config) error {
	var privKey *rsa.PrivateKey
	if cfg.Keys.PrivateKey != "" {
		key, err := envelope.LoadPrivateKey(cfg.Keys.PrivateKey)
		if err != nil {
			return err
		}
		privKey = key
	}

	var pubKey *rsa.PublicKey
	switch {
	case cfg.Keys.PublicKey != "":
		key, err := envelope.LoadPublicKey(cfg.Keys.PublicKey)
		if err != nil {
			return err
		}
		pubKey = key
	case privKey != nil:
		pubKey = &privKey.PublicKey
	default:
		return ErrNoPublicKey
	}

	opts := []envelope.Option{
		envelope.WithMaxAge(cfg.Envelope.MaxAge),
	}
	if cfg.Envelope.Leeway > 0 {
		opts = append(opts, envelope.WithLeeway(cfg.Envelope.Leeway))
	}

	o, err := envelope.NewOpener(pubKey, cfg.Username, opts...)
	if err != nil {
		return err
	}

	var s *envelope.Sealer
	if privKey != nil {
		s, err = envelope.NewSealer(privKey, opts...)
		if err != nil {
			return err
		}
	}

	a.opener.v.Store(o)
	a.sealer.Store(s)
	return nil
}

func (a *App) newStore(cfg RelayConfig) (relay.Store, error) {
	switch cfg.Backend {
	case RelayBackendRedis:
		a.logger.Info("using redis relay store",
			zap.String("keyPrefix", cfg.Redis.KeyPrefix),
		)
		return relay.NewRedisStore(cfg.Redis)
	default:
		s := relay.NewMemoryStore()
		if cfg.SweepInterval <= 0 || cfg.MaxAge <= 0 {
			return s, nil
		}

		sweeper, err := relay.StartSweeper(s, cfg.SweepInterval, cfg.MaxAge, a.logger)
		if err != nil {
			return nil, err
		}
		a.sweeper = sweeper
		return s, nil
	}
}

// ListenAndServe serves the configured role until ctx is done.
func (a *App) ListenAndServe(ctx context.Context) error {
	if a.proxy != nil {
		return a.proxy.ListenAndServe(ctx)
	}
	return a.server.ListenAndServe(ctx)
}

// Reload applies the parts of cfg that can change while running: keys,
// username settings, envelope settings and connection filters.
func (a *App) Reload(cfg Config) error {
	if cfg.Role != a.cfg.Role {
		a.logger.Warn("changing the role needs a restart",
			zap.String("role", string(a.cfg.Role)),
		)
	}

	if err := a.loadKeys(cfg); err != nil {
		return err
	}

	filters, err := cfg.filters()
	if err != nil {
		return err
	}

	if a.proxy != nil {
		a.proxy.SetFilters(filters)
	} else {
		a.server.SetFilters(filters)
	}

	a.cfg = cfg
	return nil
}

func (a *App) Close() error {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	var err error
	if s, ok := a.store.(*relay.RedisStore); ok {
		err = multierr.Append(err, s.Close())
	}
	return err
}

func (a *App) EventBus() event.Bus {
	return a.eventBus
}

func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Relay returns the encrypted data store. Its Sealer is nil if no private
// key is configured.
func (a *App) Relay() relay.API {
	api := relay.API{
		Store:  a.store,
		Logger: a.logger,
	}

	if s := a.sealer.Load(); s != nil {
		api.Sealer = s
	}
	return api
}

func (a *App) Opener() handshake.Opener {
	return &a.opener
}

func (a *App) RegisterObserver(o injector.Observer) {
	a.observers.add(o)
}

func (a *App) ActiveConns() int64 {
	if a.proxy != nil {
		return a.proxy.ActiveConns()
	}
	return a.server.ActiveConns()
}
