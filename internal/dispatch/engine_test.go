package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lupppig/notifyq/internal/channels"
	"github.com/lupppig/notifyq/internal/domain"
)

type mockPrefs struct {
	prefs domain.Preferences
}

func (m mockPrefs) ForCategory(ctx context.Context, userID string, c domain.Category) domain.Preferences {
	return m.prefs
}

type mockRecorder struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt
	err      error
}

func (m *mockRecorder) Record(ctx context.Context, attempts ...domain.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempts...)
	return m.err
}

func (m *mockRecorder) byChannel(c domain.Channel) []domain.DeliveryAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryAttempt
	for _, a := range m.attempts {
		if a.Channel == c {
			out = append(out, a)
		}
	}
	return out
}

type mockSender struct {
	mu      sync.Mutex
	calls   []string
	content []domain.Content
	err     error
	block   bool
}

func (m *mockSender) Send(ctx context.Context, target string, content domain.Content) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, target)
	m.content = append(m.content, content)
	err, block := m.err, m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "dlv_" + target, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type fixture struct {
	email, sms, push *mockSender
	recorder         *mockRecorder
}

func newEngine(t *testing.T, prefs domain.Preferences, cfg Config) (*Engine, *fixture) {
	t.Helper()
	f := &fixture{
		email:    &mockSender{},
		sms:      &mockSender{},
		push:     &mockSender{},
		recorder: &mockRecorder{},
	}
	reg := channels.NewRegistry()
	_ = reg.Register(domain.ChannelEmail, f.email)
	_ = reg.Register(domain.ChannelSMS, f.sms)
	_ = reg.Register(domain.ChannelPush, f.push)
	return NewEngine(mockPrefs{prefs: prefs}, reg, f.recorder, cfg), f
}

func fullPayload() domain.Payload {
	return domain.Payload{
		"transactionId": "t1",
		"amount":        float64(150),
		"email":         "u1@x.com",
		"phone":         "+15550100",
		"deviceToken":   "tok-1",
	}
}

func walletEnvelope(payload domain.Payload) *domain.Envelope {
	return &domain.Envelope{
		UserID:    "u1",
		EventType: "wallet_debited",
		Payload:   payload,
		QueueType: domain.CategoryWallet,
		MessageID: "msg_1",
		Version:   domain.EnvelopeVersion,
		Attempt:   1,
	}
}

func TestDispatchEmailOnlyPreferences(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true}, Config{})

	out := engine.Dispatch(context.Background(), walletEnvelope(domain.Payload{
		"transactionId": "t1",
		"amount":        float64(150),
		"email":         "u1@x.com",
	}))

	if !out.Succeeded() {
		t.Fatalf("unexpected abort: %v", out.Err)
	}
	if len(f.recorder.attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(f.recorder.attempts))
	}
	a := f.recorder.attempts[0]
	if a.Channel != domain.ChannelEmail || a.Status != domain.DeliveryStatusSent {
		t.Errorf("unexpected attempt %+v", a)
	}
	if a.MessageID != "msg_1" || a.DeliveryID != "dlv_u1@x.com" || a.RetryCount != 0 {
		t.Errorf("unexpected attempt ids %+v", a)
	}
	if !strings.Contains(a.PayloadPreview, `"transactionId":"t1"`) {
		t.Errorf("unexpected preview %q", a.PayloadPreview)
	}
	if f.sms.callCount() != 0 || f.push.callCount() != 0 {
		t.Error("sms/push must not be attempted")
	}
	if got := f.email.content[0]; got.Subject != "Wallet Transaction" {
		t.Errorf("expected wallet template, got %+v", got)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true, SMS: true, Push: true}, Config{})
	f.sms.err = errors.New("carrier unavailable")

	out := engine.Dispatch(context.Background(), walletEnvelope(fullPayload()))

	if !out.Succeeded() {
		t.Fatalf("partial failure must not abort: %v", out.Err)
	}
	if out.Sent() != 2 || out.Failed() != 1 {
		t.Errorf("expected 2 sent / 1 failed, got %d / %d", out.Sent(), out.Failed())
	}
	if len(f.recorder.attempts) != 3 {
		t.Fatalf("expected 3 attempts logged, got %d", len(f.recorder.attempts))
	}
	failed := f.recorder.byChannel(domain.ChannelSMS)
	if len(failed) != 1 || failed[0].Status != domain.DeliveryStatusFailed || !strings.Contains(failed[0].Error, "carrier unavailable") {
		t.Errorf("unexpected sms attempt %+v", failed)
	}
	for _, r := range out.Results {
		if r.Channel == domain.ChannelSMS && !errors.Is(r.Err, domain.ErrChannelDelivery) {
			t.Errorf("expected ChannelDeliveryError, got %v", r.Err)
		}
	}
}

func TestDispatchEmailSenderFails(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true}, Config{})
	f.email.err = errors.New("smtp 554")

	out := engine.Dispatch(context.Background(), walletEnvelope(fullPayload()))

	if !out.Succeeded() {
		t.Fatalf("expected overall success, got %v", out.Err)
	}
	if out.Failed() != 1 || out.Sent() != 0 {
		t.Errorf("expected one failed sub-result, got %+v", out.Results)
	}
	got := f.recorder.byChannel(domain.ChannelEmail)
	if len(got) != 1 || got[0].Status != domain.DeliveryStatusFailed || got[0].Error == "" {
		t.Errorf("expected failed email attempt with error, got %+v", got)
	}
}

func TestDispatchSkipsChannelsWithoutTarget(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true, SMS: true, Push: true}, Config{})

	payload := fullPayload()
	delete(payload, "phone")
	payload["deviceToken"] = "  "

	out := engine.Dispatch(context.Background(), walletEnvelope(payload))
	if len(out.Results) != 1 || out.Results[0].Channel != domain.ChannelEmail {
		t.Errorf("expected only email, got %+v", out.Results)
	}
	if f.sms.callCount() != 0 || f.push.callCount() != 0 {
		t.Error("channels without a target must not be attempted")
	}
}

func TestDispatchNoChannels(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{}, Config{})
	out := engine.Dispatch(context.Background(), walletEnvelope(fullPayload()))
	if !out.Succeeded() || len(out.Results) != 0 {
		t.Errorf("expected empty success, got %+v", out)
	}
	if len(f.recorder.attempts) != 0 {
		t.Errorf("nothing attempted means nothing logged, got %d", len(f.recorder.attempts))
	}
}

func TestDispatchAbortWritesSystemEntry(t *testing.T) {
	tests := []struct {
		name string
		env  *domain.Envelope
	}{
		{"empty payload", &domain.Envelope{UserID: "u1", MessageID: "msg_2", QueueType: domain.CategoryBooking}},
		{"empty user", &domain.Envelope{MessageID: "msg_3", Payload: domain.Payload{"a": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, f := newEngine(t, domain.Preferences{Email: true}, Config{})
			out := engine.Dispatch(context.Background(), tt.env)

			if out.Succeeded() || !errors.Is(out.Err, domain.ErrMessageParse) {
				t.Fatalf("expected parse abort, got %v", out.Err)
			}
			sys := f.recorder.byChannel(domain.ChannelSystem)
			if len(sys) != 1 || sys[0].Status != domain.DeliveryStatusFailed || sys[0].MessageID != tt.env.MessageID {
				t.Errorf("expected one system failure entry, got %+v", f.recorder.attempts)
			}
			if f.email.callCount() != 0 {
				t.Error("no channel may be attempted after abort")
			}
		})
	}
}

func TestDispatchNilEnvelope(t *testing.T) {
	engine, _ := newEngine(t, domain.Preferences{Email: true}, Config{})
	if out := engine.Dispatch(context.Background(), nil); out.Succeeded() {
		t.Error("expected abort for nil envelope")
	}
}

func TestDispatchRestrictPolicy(t *testing.T) {
	all := domain.Preferences{Email: true, SMS: true, Push: true}

	tests := []struct {
		name   string
		policy HintPolicy
		hint   []domain.Channel
		want   int
	}{
		{"advisory ignores hint", HintAdvisory, []domain.Channel{domain.ChannelSMS}, 3},
		{"restrict intersects", HintRestrict, []domain.Channel{domain.ChannelSMS, domain.ChannelPush}, 2},
		{"restrict without hint", HintRestrict, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newEngine(t, all, Config{HintPolicy: tt.policy})
			env := walletEnvelope(fullPayload())
			env.Channels = tt.hint
			out := engine.Dispatch(context.Background(), env)
			if len(out.Results) != tt.want {
				t.Errorf("expected %d attempts, got %d", tt.want, len(out.Results))
			}
		})
	}
}

func TestDispatchChannelTimeout(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true, Push: true}, Config{ChannelTimeout: 50 * time.Millisecond})
	f.push.block = true

	start := time.Now()
	out := engine.Dispatch(context.Background(), walletEnvelope(fullPayload()))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("hung channel stalled dispatch for %v", elapsed)
	}

	push := f.recorder.byChannel(domain.ChannelPush)
	if len(push) != 1 || push[0].Status != domain.DeliveryStatusFailed {
		t.Fatalf("expected timed out push failure, got %+v", push)
	}
	if !strings.Contains(push[0].Error, context.DeadlineExceeded.Error()) {
		t.Errorf("expected deadline error, got %q", push[0].Error)
	}
	if out.Sent() != 1 {
		t.Errorf("email must still be sent, got %+v", out.Results)
	}
}

func TestDispatchRecoversSenderPanic(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true, SMS: true}, Config{})
	reg := channels.NewRegistry()
	_ = reg.Register(domain.ChannelEmail, f.email)
	_ = reg.Register(domain.ChannelSMS, channels.SenderFunc(func(context.Context, string, domain.Content) (string, error) {
		panic("nil client")
	}))
	engine.senders = reg

	out := engine.Dispatch(context.Background(), walletEnvelope(fullPayload()))
	if out.Sent() != 1 || out.Failed() != 1 {
		t.Errorf("expected panic isolated to sms, got %+v", out.Results)
	}
}

func TestDispatchRecorderFailureNotFatal(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true}, Config{})
	f.recorder.err = errors.New("db down")
	if out := engine.Dispatch(context.Background(), walletEnvelope(fullPayload())); !out.Succeeded() {
		t.Errorf("log write failure must not fail dispatch: %v", out.Err)
	}
}

func TestDispatchRetryCount(t *testing.T) {
	engine, f := newEngine(t, domain.Preferences{Email: true}, Config{})
	env := walletEnvelope(fullPayload())
	env.Attempt = 3
	engine.Dispatch(context.Background(), env)
	if f.recorder.attempts[0].RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", f.recorder.attempts[0].RetryCount)
	}
}

func TestParseHintPolicy(t *testing.T) {
	if p, err := ParseHintPolicy(""); err != nil || p != HintAdvisory {
		t.Errorf("expected advisory default, got %q %v", p, err)
	}
	if p, err := ParseHintPolicy("restrict"); err != nil || p != HintRestrict {
		t.Errorf("expected restrict, got %q %v", p, err)
	}
	if _, err := ParseHintPolicy("strict"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func BenchmarkDispatch(b *testing.B) {
	reg := channels.NewRegistry()
	noop := channels.SenderFunc(func(context.Context, string, domain.Content) (string, error) { return "id", nil })
	_ = reg.Register(domain.ChannelEmail, noop)
	_ = reg.Register(domain.ChannelSMS, noop)
	_ = reg.Register(domain.ChannelPush, noop)
	engine := NewEngine(mockPrefs{prefs: domain.Preferences{Email: true, SMS: true, Push: true}}, reg, &mockRecorder{}, Config{})
	env := walletEnvelope(fullPayload())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Dispatch(context.Background(), env)
	}
}
