package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrEventTopicNotAllowed = errors.New("event topic not allowed")
	ErrUnexpectedStatus     = errors.New("unexpected response status")
)

// maxDrain bounds how much of a response body is read before it is closed.
const maxDrain = 64 << 10

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// EventLog is the JSON body a webhook receives.
type EventLog struct {
	Topics     []string  `json:"topics"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Webhook posts the event logs of its allowed topics to URL.
type Webhook struct {
	ID            string
	HTTPClient    HTTPClient
	URL           string
	AllowedTopics []string
}

// Accepts reports whether one of topics is allowed.
func (wh Webhook) Accepts(topics []string) bool {
	for _, t := range topics {
		if contains(wh.AllowedTopics, t) {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// DispatchEvent posts e as JSON. Responses outside of the 2xx range are
// returned as ErrUnexpectedStatus.
func (wh Webhook) DispatchEvent(ctx context.Context, e EventLog) error {
	if !wh.Accepts(e.Topics) {
		return ErrEventTopicNotAllowed
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event log: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wh.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// checkResponse drains and closes the body so the connection can be reused.
func checkResponse(resp *http.Response) error {
	if resp.Body != nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
