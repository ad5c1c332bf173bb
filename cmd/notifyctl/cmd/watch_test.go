package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
)

func sseServer(t *testing.T, gotQuery *string, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notifications/stream" {
			http.NotFound(w, r)
			return
		}
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
		}
	}))
}

func TestWatchQuiet(t *testing.T) {
	var query string
	srv := sseServer(t, &query,
		"event:ready\ndata:{\"filter\":{}}\n\n",
		": keepalive\n\n",
		"event:delivery\ndata:{\"messageId\":\"msg_1\",\"userId\":\"u1\",\"channel\":\"sms\",\"status\":\"sent\",\"deliveryId\":\"SM1\",\"attempt\":1,\"timestamp\":\"2026-01-02T10:00:00Z\"}\n\n",
		"event:ping\ndata:{}\n\n",
		"event:delivery\ndata:{\"messageId\":\"msg_1\",\"userId\":\"u1\",\"channel\":\"push\",\"status\":\"failed\",\"error\":\"device unregistered\",\"attempt\":1,\"timestamp\":\"2026-01-02T10:00:01Z\"}\n\n",
	)
	defer srv.Close()

	useServer(t, srv.URL)
	origFilter := watchFilter
	defer func() { watchFilter = origFilter }()
	watchFilter = streamFilter{UserID: "u1", Channel: "sms"}
	quiet = true

	output, err := captureStdout(t, func() error { return watchCmd.RunE(watchCmd, nil) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 delivery lines, got %d: %q", len(lines), output)
	}
	if !strings.Contains(lines[0], "msg_1\tu1\tsms\tsent") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "failed\tdevice unregistered") {
		t.Errorf("unexpected second line %q", lines[1])
	}
	if !strings.Contains(query, "userId=u1") || !strings.Contains(query, "channel=sms") {
		t.Errorf("expected filter in query, got %q", query)
	}
}

func TestWatchRejectedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"error"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	useServer(t, srv.URL)
	quiet = true

	_, err := captureStdout(t, func() error { return watchCmd.RunE(watchCmd, nil) })
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected rejected stream error, got %v", err)
	}
}

func TestReadEvents(t *testing.T) {
	stream := "event:delivery\ndata:{\"a\":1}\n\n" +
		": comment\n\n" +
		"data: line one\ndata: line two\n\n" +
		"event:ping\n\n"

	type got struct{ name, data string }
	var seen []got
	err := readEvents(strings.NewReader(stream), func(name string, data []byte) error {
		seen = append(seen, got{name, string(data)})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []got{{"delivery", `{"a":1}`}, {"", "line one\nline two"}}
	if len(seen) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d: expected %+v, got %+v", i, want[i], seen[i])
		}
	}

	stop := errors.New("stop")
	err = readEvents(strings.NewReader(stream), func(string, []byte) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestWatchModel(t *testing.T) {
	m := NewWatchModel(streamFilter{MessageID: "msg_1"})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 8})

	for i := 0; i < 4; i++ {
		m.Update(eventMsg(events.DeliveryEvent{
			MessageID: fmt.Sprintf("msg_%d", i),
			UserID:    "u1",
			Channel:   domain.ChannelEmail,
			Status:    domain.DeliveryStatusSent,
		}))
	}
	if len(m.events) != 2 {
		t.Errorf("expected events trimmed to view height, got %d", len(m.events))
	}

	view := m.View()
	if !strings.Contains(view, "message msg_1") || !strings.Contains(view, "msg_3") {
		t.Errorf("unexpected view:\n%s", view)
	}

	m.Update(streamClosedMsg{err: errors.New("EOF")})
	if !strings.Contains(m.View(), "stream closed: EOF") {
		t.Error("expected closed notice in view")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || m.View() != "" {
		t.Error("expected q to quit")
	}
}
