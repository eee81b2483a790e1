package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dyc3/discord-pokemon-battles/internal/coordinator"
)

func TestSSEHubDeliversBattleEvents(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()

	hub.PublishJSON(coordinator.Event{
		Type:     coordinator.EventRoundCompleted,
		BattleID: 42,
		Round:    2,
		Lines:    []string{"Geodude used Tackle.", "Staryu took 7 damage."},
	})

	var raw []byte
	select {
	case raw = <-ch:
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	var ev coordinator.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.Type != coordinator.EventRoundCompleted || ev.BattleID != 42 || ev.Round != 2 {
		t.Errorf("event: %+v", ev)
	}
	if len(ev.Lines) != 2 || ev.Lines[1] != "Staryu took 7 damage." {
		t.Errorf("event lines: %q", ev.Lines)
	}

	hub.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestSSEHubHandlerStreamsEvents(t *testing.T) {
	hub := NewSSEHub()
	handler := hub.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()

	// Wait for the handler to register its subscriber before publishing.
	for i := 0; i < 100 && hub.subscriberCount() == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	hub.PublishJSON(coordinator.Event{Type: coordinator.EventBattleEnded, BattleID: 7})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// Read the response body only after the handler has finished writing.
	sc := bufio.NewScanner(rec.Body)
	var connected, ended bool
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "connected") {
			connected = true
		}
		if strings.Contains(line, coordinator.EventBattleEnded) {
			ended = true
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !connected {
		t.Error("expected stream to open with a connected event")
	}
	if !ended {
		t.Error("expected stream to carry the published battle event")
	}
}
