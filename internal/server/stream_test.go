package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
)

func TestStreamDeliversFilteredEvents(t *testing.T) {
	env := setupTestServer(t, nil)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/notifications/stream?userId=u1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.hub.Publish(events.DeliveryEvent{MessageID: "msg_other", UserID: "u2", Channel: domain.ChannelSMS, Status: domain.DeliveryStatusSent})
	env.hub.Publish(events.DeliveryEvent{MessageID: "msg_1", UserID: "u1", Channel: domain.ChannelEmail, Status: domain.DeliveryStatusSent, Attempt: 1})

	scanner := bufio.NewScanner(resp.Body)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if event != "delivery" || !strings.HasPrefix(line, "data:") {
			continue
		}

		var ev events.DeliveryEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.MessageID != "msg_1" || ev.UserID != "u1" {
			t.Errorf("unexpected event %+v", ev)
		}
		return
	}
	t.Fatalf("stream ended without a delivery event: %v", scanner.Err())
}

func TestStreamRejectsUnknownChannel(t *testing.T) {
	env := setupTestServer(t, nil)
	w := env.do(t, http.MethodGet, "/api/notifications/stream?channel=fax", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
