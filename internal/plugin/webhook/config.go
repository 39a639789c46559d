package webhook

import (
	"net/http"
	"sort"
	"time"

	"github.com/haveachin/floodgate/pkg/webhook"
	"github.com/imdario/mergo"
)

type PluginConfig struct {
	Webhooks map[string]webhookConfig `mapstructure:"webhooks"`
	Defaults struct {
		Webhook webhookConfig `mapstructure:"webhook"`
	} `mapstructure:"defaults"`
}

type webhookConfig struct {
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
	URL         string        `mapstructure:"url"`
	Events      []string      `mapstructure:"events"`
}

// buildWebhooks fills unset values of every webhook from the defaults and
// returns the webhooks ordered by ID.
func (cfg PluginConfig) buildWebhooks() ([]webhook.Webhook, error) {
	ids := make([]string, 0, len(cfg.Webhooks))
	for id := range cfg.Webhooks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	whks := make([]webhook.Webhook, len(ids))
	for i, id := range ids {
		whCfg := cfg.Webhooks[id]
		if err := mergo.Merge(&whCfg, cfg.Defaults.Webhook); err != nil {
			return nil, err
		}

		whks[i] = webhook.Webhook{
			ID:            id,
			HTTPClient:    &http.Client{Timeout: whCfg.DialTimeout},
			URL:           whCfg.URL,
			AllowedTopics: whCfg.Events,
		}
	}
	return whks, nil
}
