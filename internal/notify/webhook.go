// Package notify reports server-side failures to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"mediaquiz/internal/retry"
)

// Event is one failure worth telling someone about.
type Event struct {
	RequestID string
	Route     string
	Status    int
	Reason    string
	Message   string
	Source    string
	Time      time.Time
}

// Notifier delivers events.
type Notifier interface {
	Notify(ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(Event) {}

// Webhook POSTs events as Discord-style embeds. Delivery is asynchronous and
// best effort: failures are logged, never returned.
type Webhook struct {
	url     string
	client  *http.Client
	policy  retry.Policy
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewWebhook returns Nop when url is empty.
func NewWebhook(url string, client *http.Client, policy retry.Policy) Notifier {
	if url == "" {
		log.Printf("WARN: NOTIFY_WEBHOOK_URL not set, error notifications are disabled")
		return Nop{}
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client, policy: policy, timeout: 30 * time.Second}
}

func (w *Webhook) Notify(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Send(ctx, ev); err != nil {
			log.Printf("WARN: Error notification for request %s not delivered: %v", ev.RequestID, err)
		}
	}()
}

// Wait blocks until pending deliveries finish.
func (w *Webhook) Wait() { w.wg.Wait() }

// Send delivers ev synchronously.
func (w *Webhook) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(payload(ev))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	resp, err := retry.Do(ctx, w.policy, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return w.client.Do(req)
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type message struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

const errorColor = 0xE74C3C

func payload(ev Event) message {
	fields := []embedField{
		{Name: "Status", Value: fmt.Sprint(ev.Status), Inline: true},
		{Name: "Reason", Value: ev.Reason, Inline: true},
		{Name: "Route", Value: ev.Route, Inline: true},
	}
	if ev.Source != "" {
		fields = append(fields, embedField{Name: "Source", Value: truncate(ev.Source, 1024)})
	}
	if ev.RequestID != "" {
		fields = append(fields, embedField{Name: "Request", Value: ev.RequestID})
	}
	return message{
		Username: "mediaquiz",
		Embeds: []embed{{
			Title:       "Quiz request failed",
			Description: truncate(ev.Message, 4096),
			Color:       errorColor,
			Fields:      fields,
			Timestamp:   ev.Time.UTC().Format(time.RFC3339),
		}},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
