package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/haveachin/floodgate/internal/app/floodgate"
	"github.com/haveachin/floodgate/internal/pkg/config"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"go.uber.org/zap"
)

const handlerID = "api"

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	AllowedMethods []string `mapstructure:"allowedMethods"`
	AllowedHeaders []string `mapstructure:"allowedHeaders"`
}

type PluginConfig struct {
	API struct {
		Enable     bool   `mapstructure:"enable"`
		Bind       string `mapstructure:"bind"`
		CORSConfig `mapstructure:",squash"`
	} `mapstructure:"api"`
}

// Plugin serves the relay store and the online players over HTTP.
type Plugin struct {
	Config   PluginConfig
	logger   *zap.Logger
	api      floodgate.PluginAPI
	eventBus event.Bus
	players  *players
	srv      *httpServer
}

func (p Plugin) Name() string {
	return "API"
}

func (p Plugin) Version() string {
	return "internal"
}

func (p *Plugin) Load(cfg map[string]any) error {
	var pluginCfg PluginConfig
	if err := config.Unmarshal(cfg, &pluginCfg); err != nil {
		return err
	}

	if !pluginCfg.API.Enable {
		return floodgate.ErrPluginViaConfigDisabled
	}
	p.Config = pluginCfg
	return nil
}

// Reload restarts the HTTP server only if its bind address changed.
func (p *Plugin) Reload(cfg map[string]any) error {
	bind := p.Config.API.Bind
	if err := p.Load(cfg); err != nil {
		return err
	}

	if p.srv == nil || p.Config.API.Bind == bind {
		return nil
	}

	p.srv.stop()
	return p.serve()
}

func (p *Plugin) Enable(api floodgate.PluginAPI) error {
	p.logger = api.Logger()
	p.api = api
	p.eventBus = api.EventBus()
	p.players = newPlayers()

	p.eventBus.AttachHandlerAsyncFunc(handlerID, p.players.handleEvent,
		server.LoginEventTopicAsync,
		server.PlayerLeaveEventTopicAsync,
	)
	return p.serve()
}

func (p *Plugin) Disable() error {
	p.eventBus.DetachRecipient(handlerID)
	if p.srv != nil {
		p.srv.stop()
		p.srv = nil
	}
	return nil
}

func (p *Plugin) serve() error {
	srv, err := listenHTTP(p.Config.API.Bind, p.router(), p.logger)
	if err != nil {
		return err
	}
	p.srv = srv
	return nil
}

type httpServer struct {
	*http.Server
	logger *zap.Logger
}

func listenHTTP(bind string, h http.Handler, logger *zap.Logger) (*httpServer, error) {
	l, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}

	srv := &httpServer{
		Server: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", zap.Error(err))
		}
	}()

	logger.Info("started api server", zap.String("bind", l.Addr().String()))
	return srv, nil
}

func (srv *httpServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		srv.logger.Warn("stopping api server", zap.Error(err))
	}
}

func (p *Plugin) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: p.Config.API.AllowedOrigins,
		AllowedMethods: p.Config.API.AllowedMethods,
		AllowedHeaders: p.Config.API.AllowedHeaders,
	}))

	r.Get("/healthz", healthHandler(p.api))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/players", getPlayersHandler(p.players))
		r.Route("/encrypted-data/{uuid}", func(r chi.Router) {
			r.Method(http.MethodGet, "/", getEncryptedDataHandler(p.api))
			r.Method(http.MethodPut, "/", putEncryptedDataHandler(p.api))
			r.Method(http.MethodDelete, "/", deleteEncryptedDataHandler(p.api))
			r.Method(http.MethodPost, "/refresh", refreshEncryptedDataHandler(p.api))
		})
	})
	return r
}
