package floodgate

import (
	"errors"

	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/relay"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrPluginViaConfigDisabled = errors.New("plugin was disabled via config")

type PluginAPI interface {
	EventBus() event.Bus
	Logger() *zap.Logger
	Relay() relay.API
	Opener() handshake.Opener
	RegisterObserver(injector.Observer)
	ActiveConns() int64
}

type Plugin interface {
	Name() string
	Version() string
	// Load reads the plugin config. It returns ErrPluginViaConfigDisabled
	// if the plugin should not be enabled.
	Load(cfg map[string]any) error
	Reload(cfg map[string]any) error
	Enable(PluginAPI) error
	Disable() error
}

type PluginManager struct {
	API     PluginAPI
	Logger  *zap.Logger
	plugins []Plugin
	enabled []Plugin
}

func (pm *PluginManager) RegisterPlugin(p Plugin) {
	pm.plugins = append(pm.plugins, p)
}

// EnablePlugins loads and enables every registered plugin. Plugins that
// fail are skipped and their errors are returned combined.
func (pm *PluginManager) EnablePlugins(cfg map[string]any) error {
	var result error
	for _, p := range pm.plugins {
		logger := pm.Logger.With(logPlugin(p)...)

		if err := p.Load(cfg); err != nil {
			if errors.Is(err, ErrPluginViaConfigDisabled) {
				logger.Info("plugin is disabled")
				continue
			}
			result = multierr.Append(result, err)
			continue
		}

		logger.Info("enabling plugin")
		if err := p.Enable(pm.API); err != nil {
			result = multierr.Append(result, err)
			continue
		}
		pm.enabled = append(pm.enabled, p)
	}
	return result
}

// ReloadPlugins passes cfg to every enabled plugin. Plugins that are
// disabled by the new config are disabled.
func (pm *PluginManager) ReloadPlugins(cfg map[string]any) error {
	var result error
	enabled := pm.enabled[:0]
	for _, p := range pm.enabled {
		err := p.Reload(cfg)
		switch {
		case errors.Is(err, ErrPluginViaConfigDisabled):
			pm.Logger.Info("disabling plugin", logPlugin(p)...)
			result = multierr.Append(result, p.Disable())
			continue
		case err != nil:
			result = multierr.Append(result, err)
		}
		enabled = append(enabled, p)
	}
	pm.enabled = enabled
	return result
}

func (pm *PluginManager) DisablePlugins() error {
	var result error
	for _, p := range pm.enabled {
		pm.Logger.Debug("disabling plugin", logPlugin(p)...)
		result = multierr.Append(result, p.Disable())
	}
	pm.enabled = nil
	return result
}

func logPlugin(p Plugin) []zap.Field {
	return []zap.Field{
		zap.String("pluginName", p.Name()),
		zap.String("pluginVersion", p.Version()),
	}
}
