package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dsrec/internal/config"
)

const userAgent = "dsrec/0.1.0"

// Event enumerates notification kinds.
type Event string

const (
	EventSessionSaved  Event = "session_saved"
	EventSessionFailed Event = "session_failed"
	EventDeviceError   Event = "device_error"
	EventTest          Event = "test"
)

// Payload carries event fields. Keys are documented per event in format.
type Payload map[string]any

// Service publishes recorder events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		sessionSaved: cfg.Notifications.SessionSaved,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	sessionSaved bool
	errors       bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventSessionSaved:
		return n.sessionSaved
	case EventSessionFailed, EventDeviceError:
		return n.errors
	default:
		return true
	}
}

func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventSessionSaved:
		msg := fmt.Sprintf("💾 Saved %s (%s)", text(data, "session"), text(data, "path"))
		if items := text(data, "items"); items != "" {
			msg = fmt.Sprintf("%s\n%s", msg, items)
		}
		return payload{
			title:   "dsrec - Session Saved",
			message: msg,
			tags:    []string{"dsrec", "session", "saved"},
		}, true
	case EventSessionFailed:
		return payload{
			title:    "dsrec - Write Failed",
			message:  fmt.Sprintf("❌ %s: %s failed: %s", text(data, "session"), text(data, "modalities"), text(data, "error")),
			tags:     []string{"dsrec", "session", "alert"},
			priority: "high",
		}, true
	case EventDeviceError:
		return payload{
			title:    "dsrec - Device Error",
			message:  fmt.Sprintf("❌ %s device: %s", text(data, "device"), text(data, "error")),
			tags:     []string{"dsrec", "device", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "dsrec - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"dsrec", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func text(data Payload, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
