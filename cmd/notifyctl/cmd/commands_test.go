package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/security"
)

func TestParsePreferenceArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []domain.PreferenceUpdate
		wantErr bool
	}{
		{
			name: "on and off",
			args: []string{"sms:wallet=on", "PUSH:rewards=off"},
			want: []domain.PreferenceUpdate{
				{Channel: "sms", EventCategory: "wallet"},
				{Channel: "push", EventCategory: "rewards"},
			},
		},
		{
			name: "bool literals",
			args: []string{"email:booking=true"},
			want: []domain.PreferenceUpdate{{Channel: "email", EventCategory: "booking"}},
		},
		{name: "missing value", args: []string{"sms:wallet"}, wantErr: true},
		{name: "missing category", args: []string{"sms=on"}, wantErr: true},
		{name: "bad toggle", args: []string{"sms:wallet=maybe"}, wantErr: true},
	}

	wantEnabled := map[string][]bool{
		"on and off":    {true, false},
		"bool literals": {true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePreferenceArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d updates, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].Channel != tt.want[i].Channel || got[i].EventCategory != tt.want[i].EventCategory {
					t.Errorf("update %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
				if got[i].Enabled == nil || *got[i].Enabled != wantEnabled[tt.name][i] {
					t.Errorf("update %d: unexpected enabled %v", i, got[i].Enabled)
				}
			}
		})
	}
}

func TestPrefsSet(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/notifications/preferences" {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		_, _ = w.Write([]byte(`{"status":"success","message":"Preferences updated successfully","data":{"userId":"u1","preferences":{"email":true,"sms":true,"push":false}}}`))
	}))
	defer srv.Close()

	useServer(t, srv.URL)
	jsonOut = true

	output, err := captureStdout(t, func() error {
		return prefsSetCmd.RunE(prefsSetCmd, []string{"u1", "sms:wallet=on"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res preferencesResult
	if err := json.Unmarshal([]byte(output), &res); err != nil {
		t.Fatalf("expected JSON output, got %q", output)
	}
	if !res.Preferences.SMS || res.Preferences.Push {
		t.Errorf("unexpected preferences %+v", res.Preferences)
	}
	if string(body["userId"]) != `"u1"` {
		t.Errorf("expected userId in body, got %s", body["userId"])
	}
	if !strings.Contains(string(body["preferences"]), `"channel":"sms"`) {
		t.Errorf("expected sms update in body, got %s", body["preferences"])
	}
}

func TestLogsCommand(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notifications/u1" {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"status":"success","data":{"logs":[
			{"id":"a1","userId":"u1","channel":"sms","status":"failed","messageId":"msg_1","error":"provider timeout","retryCount":1,"createdAt":"2026-01-02T10:00:00Z"},
			{"id":"a2","userId":"u1","channel":"email","status":"sent","messageId":"msg_1","deliveryId":"email_1","createdAt":"2026-01-02T10:00:00Z"}
		],"pagination":{"page":2,"limit":2,"total":5,"pages":3}}}`))
	}))
	defer srv.Close()

	useServer(t, srv.URL)
	origQ := logsQ
	defer func() { logsQ = origQ }()
	logsQ = logsQuery{Page: 2, Limit: 2, Status: "failed"}

	output, err := captureStdout(t, func() error { return logsCmd.RunE(logsCmd, []string{"u1"}) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"MESSAGE ID", "provider timeout", "email_1", "page 2 of 3 (5 total)"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if !strings.Contains(query, "page=2") || !strings.Contains(query, "status=failed") {
		t.Errorf("unexpected query %q", query)
	}
}

func TestQueuesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"queueStats":[
			{"queue":"wallet_notifications","messageCount":3,"consumerCount":1},
			{"queue":"wallet_notifications.dlq","messageCount":7,"consumerCount":0}
		]}}`))
	}))
	defer srv.Close()

	useServer(t, srv.URL)

	output, err := captureStdout(t, func() error { return queuesCmd.RunE(queuesCmd, nil) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "wallet_notifications.dlq") || !strings.Contains(output, "7") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestConsumersCommands(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/notifications/consumers/stop":
			_, _ = w.Write([]byte(`{"status":"success","message":"All notification consumers stopped successfully"}`))
		case "/api/notifications/consumers/status":
			_, _ = w.Write([]byte(`{"status":"success","data":{"running":false,"consumerStatus":[
				{"queue":"booking_notifications","status":"inactive","messageCount":12,"consumerCount":0,"counters":{"acked":4,"retried":1,"deadLettered":2,"requeued":0}}
			]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	useServer(t, srv.URL)
	quiet = true

	stop := consumerActionCmd("stop", "Stop all consumers")
	output, err := captureStdout(t, func() error { return stop.RunE(stop, nil) })
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if strings.TrimSpace(output) != "All notification consumers stopped successfully" {
		t.Errorf("unexpected stop output %q", output)
	}

	output, err = captureStdout(t, func() error { return consumersStatusCmd.RunE(consumersStatusCmd, nil) })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(output, "booking_notifications") || !strings.Contains(output, "inactive") {
		t.Errorf("unexpected status output:\n%s", output)
	}

	if len(paths) != 2 || paths[0] != "POST /api/notifications/consumers/stop" {
		t.Errorf("unexpected requests %v", paths)
	}
}

func TestKeygen(t *testing.T) {
	useServer(t, "http://unused")
	quiet = true

	output, err := captureStdout(t, func() error { return keygenCmd.RunE(keygenCmd, nil) })
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected key and hash, got %q", output)
	}
	if !security.Verify(lines[0], lines[1]) {
		t.Error("printed hash does not match printed key")
	}
}
