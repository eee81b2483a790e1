// Package notify delivers battle commentary to the outside world. Channels
// abstract the destination: a chat webhook, a log, or a writer for CLI use.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// Channel is one message destination. Send failures are the caller's to
// handle; a battle keeps going when commentary cannot be delivered.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Registry is a named set of channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Add registers a channel under its name, replacing any previous one.
func (r *Registry) Add(c Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[c.Name()] = c
}

// Get returns the channel registered under name.
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[name]
	return c, ok
}

// Broadcast sends the message to every channel. The first error is returned
// after all channels have been attempted.
func (r *Registry) Broadcast(ctx context.Context, message string) error {
	r.mu.RLock()
	channels := make([]Channel, 0, len(r.channels))
	for _, c := range r.channels {
		channels = append(channels, c)
	}
	r.mu.RUnlock()

	var first error
	for _, c := range channels {
		if err := c.Send(ctx, message); err != nil {
			slog.Warn("notify send failed", "channel", c.Name(), "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Name implements Channel, so a registry can stand in anywhere a single
// channel is expected.
func (r *Registry) Name() string { return "all" }

// Send implements Channel by broadcasting to every registered channel.
func (r *Registry) Send(ctx context.Context, message string) error {
	return r.Broadcast(ctx, message)
}

// Webhook posts messages as JSON to a webhook URL (Discord-compatible
// payload shape: {"content": ..., "username": ...}).
type Webhook struct {
	URL      string
	Username string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, message string) error {
	payload := struct {
		Content  string `json:"content"`
		Username string `json:"username,omitempty"`
	}{Content: message, Username: w.Username}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := w.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Writer sends messages to an io.Writer, one per line. Used by the CLI to
// stream commentary to stdout.
type Writer struct {
	W io.Writer

	mu sync.Mutex
}

func (w *Writer) Name() string { return "writer" }

func (w *Writer) Send(_ context.Context, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.W, message)
	return err
}

// Log sends messages to the structured log. The fallback channel when no
// other destination is configured.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Send(_ context.Context, message string) error {
	slog.Info("battle commentary", "message", message)
	return nil
}
