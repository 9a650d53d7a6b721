package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const EventIncidentStatusChanged = "incident.status_changed"

// Event is informed, not consulted: delivery failures never roll back
// the mutation that produced it.
type Event struct {
	Kind       string    `json:"kind"`
	IncidentID string    `json:"incident_id"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	ActorID    string    `json:"actor_id"`
	At         time.Time `json:"at"`
}

type Sender interface {
	Send(ctx context.Context, ev Event) error
}

type HTTPWebhookSender struct {
	client *http.Client
	url    string
}

func NewHTTPWebhookSender(url string, timeout time.Duration) *HTTPWebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPWebhookSender{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimSpace(url),
	}
}

func (s *HTTPWebhookSender) Send(ctx context.Context, ev Event) error {
	if s == nil || s.url == "" {
		return errors.New("webhook url missing")
	}
	raw, _ := json.Marshal(ev)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook status %d", resp.StatusCode)
}

// NopSender is used when no webhook is configured.
type NopSender struct{}

func (NopSender) Send(context.Context, Event) error { return nil }
