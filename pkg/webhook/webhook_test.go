package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haveachin/floodgate/pkg/webhook"
)

type received struct {
	contentType string
	log         webhook.EventLog
}

func newReceiver(t *testing.T, status int) (*httptest.Server, <-chan received) {
	ch := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s; want %s", r.Method, http.MethodPost)
		}

		var el webhook.EventLog
		if err := json.NewDecoder(r.Body).Decode(&el); err != nil {
			t.Error(err)
		}
		ch <- received{contentType: r.Header.Get("Content-Type"), log: el}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestWebhook_DispatchEvent(t *testing.T) {
	occurredAt := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	tt := []struct {
		name    string
		allowed []string
		topics  []string
		status  int
		wantErr error
	}{
		{
			name:    "ExactTopic",
			allowed: []string{"Login"},
			topics:  []string{"Login"},
			status:  http.StatusOK,
		},
		{
			name:    "OneOfTopics",
			allowed: []string{"Login", "PlayerLeave"},
			topics:  []string{"PlayerLeave"},
			status:  http.StatusNoContent,
		},
		{
			name:    "ServerError",
			allowed: []string{"Login"},
			topics:  []string{"Login"},
			status:  http.StatusInternalServerError,
			wantErr: webhook.ErrUnexpectedStatus,
		},
		{
			name:    "NotModified",
			allowed: []string{"Login"},
			topics:  []string{"Login"},
			status:  http.StatusNotModified,
			wantErr: webhook.ErrUnexpectedStatus,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			srv, ch := newReceiver(t, tc.status)
			wh := webhook.Webhook{
				ID:            tc.name,
				HTTPClient:    srv.Client(),
				URL:           srv.URL,
				AllowedTopics: tc.allowed,
			}

			err := wh.DispatchEvent(context.Background(), webhook.EventLog{
				Topics:     tc.topics,
				OccurredAt: occurredAt,
				Data:       map[string]any{"username": ".Steve"},
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v; want %v", err, tc.wantErr)
			}

			got := <-ch
			if got.contentType != "application/json" {
				t.Errorf("got content type %q; want application/json", got.contentType)
			}

			if len(got.log.Topics) != 1 || got.log.Topics[0] != tc.topics[0] {
				t.Errorf("got topics %v; want %v", got.log.Topics, tc.topics)
			}

			if !got.log.OccurredAt.Equal(occurredAt) {
				t.Errorf("got occurredAt %v; want %v", got.log.OccurredAt, occurredAt)
			}
		})
	}
}

func TestWebhook_DispatchEvent_NotAllowed(t *testing.T) {
	srv, ch := newReceiver(t, http.StatusOK)
	wh := webhook.Webhook{
		HTTPClient:    srv.Client(),
		URL:           srv.URL,
		AllowedTopics: []string{"PlayerLeave"},
	}

	err := wh.DispatchEvent(context.Background(), webhook.EventLog{Topics: []string{"Login"}})
	if !errors.Is(err, webhook.ErrEventTopicNotAllowed) {
		t.Fatalf("got error %v; want %v", err, webhook.ErrEventTopicNotAllowed)
	}

	select {
	case <-ch:
		t.Error("denied topic was sent")
	default:
	}
}

func TestWebhook_DispatchEvent_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	wh := webhook.Webhook{
		HTTPClient:    http.DefaultClient,
		URL:           url,
		AllowedTopics: []string{"Login"},
	}

	if err := wh.DispatchEvent(context.Background(), webhook.EventLog{Topics: []string{"Login"}}); err == nil {
		t.Error("got: nil; want: error")
	}
}

func TestWebhook_Accepts(t *testing.T) {
	wh := webhook.Webhook{AllowedTopics: []string{"Login", "PlayerLeave"}}
	tt := []struct {
		topics []string
		want   bool
	}{
		{topics: []string{"PreLogin", "Login"}, want: true},
		{topics: []string{"PreLogin"}, want: false},
		{topics: nil, want: false},
	}

	for _, tc := range tt {
		if got := wh.Accepts(tc.topics); got != tc.want {
			t.Errorf("%v: got: %v; want: %v", tc.topics, got, tc.want)
		}
	}
}
