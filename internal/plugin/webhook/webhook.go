package webhook

import (
	"context"
	"errors"
	"sync"

	"github.com/haveachin/floodgate/internal/app/floodgate"
	"github.com/haveachin/floodgate/internal/pkg/config"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"github.com/haveachin/floodgate/pkg/webhook"
	"go.uber.org/zap"
)

const handlerID = "webhook"

type Plugin struct {
	Config   PluginConfig
	logger   *zap.Logger
	eventBus event.Bus

	mu   sync.RWMutex
	whks []webhook.Webhook
}

func (p *Plugin) Name() string {
	return "Webhook"
}

func (p *Plugin) Version() string {
	return "internal"
}

func (p *Plugin) Load(cfg map[string]any) error {
	var pluginCfg PluginConfig
	if err := config.Unmarshal(cfg, &pluginCfg); err != nil {
		return err
	}

	if len(pluginCfg.Webhooks) == 0 {
		return floodgate.ErrPluginViaConfigDisabled
	}

	whks, err := pluginCfg.buildWebhooks()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Config = pluginCfg
	p.whks = whks
	return nil
}

func (p *Plugin) Reload(cfg map[string]any) error {
	return p.Load(cfg)
}

func (p *Plugin) Enable(api floodgate.PluginAPI) error {
	p.logger = api.Logger()
	p.eventBus = api.EventBus()

	p.eventBus.AttachHandlerAsyncFunc(handlerID, p.handleEvent,
		server.LoginEventTopicAsync,
		server.PlayerLeaveEventTopicAsync,
	)
	return nil
}

func (p *Plugin) Disable() error {
	p.eventBus.DetachRecipient(handlerID)
	return nil
}

type eventData struct {
	Username   string         `json:"username"`
	UUID       string         `json:"uuid"`
	RemoteAddr string         `json:"remoteAddress,omitempty"`
	Floodgate  *floodgateData `json:"floodgate,omitempty"`
}

// floodgateData is only set for Bedrock players.
type floodgateData struct {
	RawUsername  string `json:"rawUsername"`
	XUID         string `json:"xuid"`
	DeviceOS     string `json:"deviceOs"`
	InputMode    string `json:"inputMode"`
	LanguageCode string `json:"languageCode"`
	Linked       bool   `json:"linked"`
}

func newEventData(p server.PlayerInfo) eventData {
	data := eventData{
		Username: p.Username,
		UUID:     p.UUID.String(),
	}
	if p.RemoteAddr != nil {
		data.RemoteAddr = p.RemoteAddr.String()
	}

	if id := p.Identity; id != nil {
		data.Floodgate = &floodgateData{
			RawUsername:  id.RawUsername,
			XUID:         id.RawUUID.String(),
			DeviceOS:     id.DeviceOS.String(),
			InputMode:    id.InputMode.String(),
			LanguageCode: id.LanguageCode,
			Linked:       id.IsLinked(),
		}
	}
	return data
}

func (p *Plugin) handleEvent(e event.Event) {
	var player server.PlayerInfo
	switch e := e.Data.(type) {
	case server.LoginEvent:
		player = e.Player
	case server.PlayerLeaveEvent:
		player = e.Player
	default:
		return
	}

	p.dispatchEvent(e, newEventData(player))
}

func (p *Plugin) dispatchEvent(e event.Event, data eventData) {
	el := webhook.EventLog{
		Topics:     e.Topics,
		OccurredAt: e.OccurredAt,
		Data:       data,
	}

	p.mu.RLock()
	whks := p.whks
	p.mu.RUnlock()

	for _, wh := range whks {
		err := wh.DispatchEvent(context.Background(), el)
		if err != nil && !errors.Is(err, webhook.ErrEventTopicNotAllowed) {
			p.logger.Error("dispatching webhook event",
				zap.Error(err),
				zap.String("webhookId", wh.ID),
			)
		}
	}
}
