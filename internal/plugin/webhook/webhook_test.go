package webhook

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/internal/app/floodgate"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
	"github.com/haveachin/floodgate/pkg/webhook"
	"go.uber.org/zap"
)

func TestPlugin_Load(t *testing.T) {
	var p Plugin
	if err := p.Load(map[string]any{}); !errors.Is(err, floodgate.ErrPluginViaConfigDisabled) {
		t.Errorf("got error %v; want %v", err, floodgate.ErrPluginViaConfigDisabled)
	}

	err := p.Load(map[string]any{
		"defaults": map[string]any{
			"webhook": map[string]any{
				"dialTimeout": "2s",
				"events":      []any{server.LoginEventTopicAsync},
			},
		},
		"webhooks": map[string]any{
			"audit": map[string]any{
				"url": "https://example.com/audit",
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(p.whks) != 1 {
		t.Fatalf("got %d webhooks; want 1", len(p.whks))
	}

	wh := p.whks[0]
	if wh.ID != "audit" || wh.URL != "https://example.com/audit" {
		t.Errorf("got webhook %+v", wh)
	}

	if len(wh.AllowedTopics) != 1 || wh.AllowedTopics[0] != server.LoginEventTopicAsync {
		t.Errorf("got topics %v", wh.AllowedTopics)
	}

	if c := wh.HTTPClient.(*http.Client); c.Timeout != 2*time.Second {
		t.Errorf("got timeout %s; want %s", c.Timeout, 2*time.Second)
	}
}

func TestPlugin_HandleEvent(t *testing.T) {
	logs := make(chan webhook.EventLog, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var el struct {
			webhook.EventLog
			Data eventData `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&el); err != nil {
			t.Error(err)
		}
		el.EventLog.Data = el.Data
		logs <- el.EventLog
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := Plugin{
		logger: zap.NewNop(),
	}
	if err := p.Load(map[string]any{
		"webhooks": map[string]any{
			"logins": map[string]any{
				"url":    srv.URL,
				"events": []any{server.LoginEventTopicAsync},
			},
		},
	}); err != nil {
		t.Fatal(err)
	}

	id := identity.New(identity.Params{
		Username:  "Steve",
		UUID:      uuid.MustParse("00000000-0000-0000-0009-01f2a3b4c5d6"),
		IP:        "203.0.113.7",
		Timestamp: time.Now(),
		DeviceOS:  identity.DeviceOSSwitch,
		InputMode: identity.InputModeController,
	}, identity.DefaultDeriveConfig())
	player := server.PlayerInfo{
		Username:   id.CorrectUsername,
		UUID:       id.CorrectUUID,
		RemoteAddr: &net.TCPAddr{IP: net.ParseIP(id.IP), Port: 40000},
		Identity:   &id,
	}

	p.handleEvent(event.New(server.PlayerLeaveEvent{Player: player}, server.PlayerLeaveEventTopicAsync))
	p.handleEvent(event.New(server.LoginEvent{Player: player}, server.LoginEventTopicAsync))

	select {
	case el := <-logs:
		if len(el.Topics) != 1 || el.Topics[0] != server.LoginEventTopicAsync {
			t.Errorf("got topics %v", el.Topics)
		}

		data := el.Data.(eventData)
		if data.Username != ".Steve" || data.Floodgate == nil || data.Floodgate.DeviceOS != identity.DeviceOSSwitch.String() {
			t.Errorf("got data %+v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("webhook was not called")
	}

	select {
	case el := <-logs:
		t.Errorf("got unexpected event %v", el.Topics)
	default:
	}
}
