package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/haveachin/floodgate/internal/app/floodgate"
	"github.com/haveachin/floodgate/internal/pkg/config"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const handlerID = "prometheus"

type PluginConfig struct {
	Prometheus struct {
		Enable bool   `mapstructure:"enable"`
		Bind   string `mapstructure:"bind"`
	} `mapstructure:"prometheus"`
}

type Plugin struct {
	Config   PluginConfig
	logger   *zap.Logger
	eventBus event.Bus
	metrics  *metrics
	handler  http.Handler
	srv      *http.Server
}

func (p Plugin) Name() string {
	return "Prometheus"
}

func (p Plugin) Version() string {
	return "internal"
}

func (p *Plugin) Load(cfg map[string]any) error {
	var pluginCfg PluginConfig
	if err := config.Unmarshal(cfg, &pluginCfg); err != nil {
		return err
	}

	if !pluginCfg.Prometheus.Enable || pluginCfg.Prometheus.Bind == "" {
		return floodgate.ErrPluginViaConfigDisabled
	}
	p.Config = pluginCfg
	return nil
}

func (p *Plugin) Reload(cfg map[string]any) error {
	oldBind := p.Config.Prometheus.Bind
	if err := p.Load(cfg); err != nil {
		return err
	}

	if p.Config.Prometheus.Bind == oldBind {
		return nil
	}

	p.stopServer()
	return p.startServer()
}

func (p *Plugin) Enable(api floodgate.PluginAPI) error {
	p.logger = api.Logger()
	p.eventBus = api.EventBus()

	// Metrics outlive a disabled plugin since observers cannot be unregistered.
	if p.metrics == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		p.metrics = newMetrics(reg, api)
		p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		api.RegisterObserver(p.metrics)
	}

	p.eventBus.AttachHandlerAsyncFunc(handlerID, p.metrics.handleEvent,
		server.LoginEventTopicAsync,
		server.PlayerLeaveEventTopicAsync,
	)

	return p.startServer()
}

func (p *Plugin) Disable() error {
	p.eventBus.DetachRecipient(handlerID)
	p.stopServer()
	return nil
}

func (p *Plugin) startServer() error {
	l, err := net.Listen("tcp", p.Config.Prometheus.Bind)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.handler)
	srv := &http.Server{
		Handler: mux,
	}
	p.srv = srv

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("prometheus listener stopped", zap.Error(err))
		}
	}()

	p.logger.Info("started prometheus listener",
		zap.String("bind", l.Addr().String()),
	)
	return nil
}

func (p *Plugin) stopServer() {
	if p.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.srv.Shutdown(ctx)
	p.srv = nil
}

type metrics struct {
	handshakes *prometheus.CounterVec
	logins     *prometheus.CounterVec
	players    *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer, api floodgate.PluginAPI) *metrics {
	factory := promauto.With(reg)
	m := &metrics{
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "floodgate_handshakes_total",
			Help: "The total number of evaluated login handshakes per outcome",
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "floodgate_logins_injected_total",
			Help: "The total number of logins injected for gateway players per mode",
		}, []string{"mode"}),
		players: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floodgate_players_connected",
			Help: "The number of logged in players per edition",
		}, []string{"edition"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "floodgate_open_connections",
		Help: "The number of connections that are currently served",
	}, func() float64 {
		return float64(api.ActiveConns())
	})

	if s, ok := api.Relay().Store.(interface{ Len() int }); ok {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "floodgate_relay_entries",
			Help: "The number of encrypted data entries in the relay cache",
		}, func() float64 {
			return float64(s.Len())
		})
	}

	return m
}

func (m *metrics) ObserveHandshake(kind handshake.OutcomeKind) {
	m.handshakes.WithLabelValues(kind.String()).Inc()
}

func (m *metrics) ObserveLogin(forwarded bool) {
	mode := "direct"
	if forwarded {
		mode = "forwarded"
	}
	m.logins.WithLabelValues(mode).Inc()
}

func (m *metrics) handleEvent(e event.Event) {
	switch e := e.Data.(type) {
	case server.LoginEvent:
		m.players.WithLabelValues(edition(e.Player)).Inc()
	case server.PlayerLeaveEvent:
		m.players.WithLabelValues(edition(e.Player)).Dec()
	}
}

func edition(p server.PlayerInfo) string {
	if p.Identity != nil {
		return "bedrock"
	}
	return "java"
}
