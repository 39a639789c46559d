package floodgate

import (
	"errors"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/haveachin/floodgate/internal/pkg/config"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/proxy"
	"github.com/haveachin/floodgate/pkg/floodgate/relay"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"github.com/imdario/mergo"
)

var (
	ErrUnknownRole         = errors.New("unknown role")
	ErrUnknownRelayBackend = errors.New("unknown relay backend")
)

type Role string

const (
	// RoleServer logs in players and hands them to the backend.
	RoleServer Role = "server"
	// RoleProxy is the first hop that relays verified envelopes.
	RoleProxy Role = "proxy"
)

type RelayBackend string

const (
	RelayBackendMemory RelayBackend = "memory"
	RelayBackendRedis  RelayBackend = "redis"
)

type KeysConfig struct {
	// PrivateKey is optional. It is needed to refresh encrypted data.
	PrivateKey string `mapstructure:"privateKey"`
	PublicKey  string `mapstructure:"publicKey"`
}

type EnvelopeConfig struct {
	MaxAge time.Duration `mapstructure:"maxAge"`
	Leeway time.Duration `mapstructure:"leeway"`
}

type RelayConfig struct {
	Backend       RelayBackend      `mapstructure:"backend"`
	MaxAge        time.Duration     `mapstructure:"maxAge"`
	SweepInterval time.Duration     `mapstructure:"sweepInterval"`
	Redis         relay.RedisConfig `mapstructure:"redis"`
}

// ListenerConfig holds the settings that the server and the proxy share.
// Zero values are taken from the defaults section.
type ListenerConfig struct {
	Bind          string                     `mapstructure:"bind"`
	ProxyProtocol server.ProxyProtocolConfig `mapstructure:"proxyProtocol"`
	Filters       server.FiltersConfig       `mapstructure:"filters"`
	ClientTimeout time.Duration              `mapstructure:"clientTimeout"`
}

type ServerConfig struct {
	ListenerConfig   `mapstructure:",squash"`
	BungeeCord       bool                 `mapstructure:"bungeeCord"`
	KeepAliveTimeout time.Duration        `mapstructure:"keepAliveTimeout"`
	Backend          server.BackendConfig `mapstructure:"backend"`
}

type ProxyConfig struct {
	ListenerConfig `mapstructure:",squash"`
	Backend        server.BackendConfig `mapstructure:"backend"`
	ReadBufferSize datasize.ByteSize    `mapstructure:"readBufferSize"`
}

type Config struct {
	Role     Role                  `mapstructure:"role"`
	Keys     KeysConfig            `mapstructure:"keys"`
	Username identity.DeriveConfig `mapstructure:"username"`
	Envelope EnvelopeConfig        `mapstructure:"envelope"`
	Relay    RelayConfig           `mapstructure:"relay"`
	Server   ServerConfig          `mapstructure:"server"`
	Proxy    ProxyConfig           `mapstructure:"proxy"`
	Defaults struct {
		Listener ListenerConfig `mapstructure:"listener"`
	} `mapstructure:"defaults"`
}

func DefaultConfig() Config {
	srvCfg := server.DefaultConfig()

	var cfg Config
	cfg.Role = RoleServer
	cfg.Keys = KeysConfig{
		PublicKey: "public.pem",
	}
	cfg.Username = identity.DefaultDeriveConfig()
	cfg.Envelope = EnvelopeConfig{
		Leeway: envelope.DefaultLeeway,
	}
	cfg.Relay = RelayConfig{
		Backend:       RelayBackendMemory,
		MaxAge:        5 * time.Minute,
		SweepInterval: time.Minute,
		Redis: relay.RedisConfig{
			KeyPrefix: relay.DefaultRedisKeyPrefix,
			TTL:       5 * time.Minute,
		},
	}
	cfg.Defaults.Listener = ListenerConfig{
		Filters:       srvCfg.Filters,
		ClientTimeout: srvCfg.ClientTimeout,
	}
	cfg.Server = ServerConfig{
		ListenerConfig: ListenerConfig{
			Bind: srvCfg.Bind,
		},
		KeepAliveTimeout: srvCfg.KeepAliveTimeout,
		Backend: server.BackendConfig{
			DialTimeout: time.Second,
		},
	}
	cfg.Proxy = ProxyConfig{
		ListenerConfig: ListenerConfig{
			Bind: ":25577",
		},
		Backend: server.BackendConfig{
			Address:     "localhost:25565",
			DialTimeout: time.Second,
		},
		ReadBufferSize: proxy.DefaultReadBufferSize,
	}
	return cfg
}

// NewConfigFromMap decodes config data on top of the defaults.
func NewConfigFromMap(data map[string]any) (Config, error) {
	cfg := DefaultConfig()
	if err := config.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	switch cfg.Role {
	case RoleServer, RoleProxy:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownRole, cfg.Role)
	}

	switch cfg.Relay.Backend {
	case RelayBackendMemory, RelayBackendRedis:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownRelayBackend, cfg.Relay.Backend)
	}

	return cfg, nil
}

func (cfg Config) listenerConfig(lCfg ListenerConfig) (ListenerConfig, error) {
	if err := mergo.Merge(&lCfg, cfg.Defaults.Listener); err != nil {
		return ListenerConfig{}, err
	}
	return lCfg, nil
}

// ServerConfig returns the server config with defaults applied.
func (cfg Config) ServerConfig() (server.Config, error) {
	lCfg, err := cfg.listenerConfig(cfg.Server.ListenerConfig)
	if err != nil {
		return server.Config{}, err
	}

	return server.Config{
		Bind:             lCfg.Bind,
		ProxyProtocol:    lCfg.ProxyProtocol,
		Filters:          lCfg.Filters,
		BungeeCord:       cfg.Server.BungeeCord,
		ClientTimeout:    lCfg.ClientTimeout,
		KeepAliveTimeout: cfg.Server.KeepAliveTimeout,
	}, nil
}

// ProxyConfig returns the proxy config with defaults applied.
func (cfg Config) ProxyConfig() (proxy.Config, error) {
	lCfg, err := cfg.listenerConfig(cfg.Proxy.ListenerConfig)
	if err != nil {
		return proxy.Config{}, err
	}

	return proxy.Config{
		Bind:           lCfg.Bind,
		ProxyProtocol:  lCfg.ProxyProtocol,
		Filters:        lCfg.Filters,
		Backend:        cfg.Proxy.Backend,
		ClientTimeout:  lCfg.ClientTimeout,
		ReadBufferSize: cfg.Proxy.ReadBufferSize,
	}, nil
}

func (cfg Config) filters() (server.FiltersConfig, error) {
	switch cfg.Role {
	case RoleProxy:
		c, err := cfg.ProxyConfig()
		return c.Filters, err
	default:
		c, err := cfg.ServerConfig()
		return c.Filters, err
	}
}
