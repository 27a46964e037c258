package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func collectEvents(t *testing.T, sink *ChannelSink, want int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, want)
	deadline := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("collected %d events, want %d", len(events), want)
		}
	}
	return events
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}

func TestAuditLoginEvents(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := NewChannelSink(64)
	store := newMockCredentialStore()
	engine := newTestEngine(t, rdb, store, withAuditSink(sink))
	user := seedUser(t, engine, store, "alice@example.com", "correct-horse")

	ctx := WithClientIP(context.Background(), "192.0.2.7")
	_, _ = engine.Login(ctx, "alice@example.com", "wrong-password", "")
	if _, err := engine.Login(ctx, "alice@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	events := collectEvents(t, sink, 2)

	failure, ok := findEvent(events, "login_failure")
	if !ok {
		t.Fatal("no login_failure event")
	}
	if failure.Success {
		t.Fatal("login_failure marked successful")
	}
	if failure.Error != "invalid_credentials" {
		t.Fatalf("failure error code = %q", failure.Error)
	}
	if failure.IP != "192.0.2.7" {
		t.Fatalf("failure IP = %q", failure.IP)
	}

	success, ok := findEvent(events, "login_success")
	if !ok {
		t.Fatal("no login_success event")
	}
	if !success.Success || success.UserID != user.ID {
		t.Fatalf("unexpected success event: %+v", success)
	}
}

func TestAuditEventNeverCarriesSecrets(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := NewChannelSink(64)
	store := newMockCredentialStore()
	mailer := newTestMailer()
	engine := newTestEngine(t, rdb, store, withAuditSink(sink), withMailer(mailer))

	ctx := context.Background()
	if _, err := engine.Register(ctx, "alice@example.com", "super-secret-pass", "", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := mailer.waitCode(t).secret
	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, ""); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	events := collectEvents(t, sink, 3)
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		if strings.Contains(string(raw), "super-secret-pass") {
			t.Fatalf("event leaks the password: %s", raw)
		}
		if strings.Contains(string(raw), code) {
			t.Fatalf("event leaks the verification code: %s", raw)
		}
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "login_success",
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "login_failure",
		Error:     "invalid_credentials",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid NDJSON line %q: %v", line, err)
		}
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(blocked)
		d.Close()
	}()

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "login_failure"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer and a blocked sink")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestAuditErrorCodeClassification(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{ErrInvalidCredentials, "invalid_credentials"},
		{ErrTooManyAttempts, "rate_limited"},
		{ErrEmailNotVerified, "email_unverified"},
		{ErrSessionInvalid, "invalid_token"},
		{ErrDeviceChanged, "device_mismatch"},
		{ErrPasswordPolicy, "password_policy"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if got := auditErrorCode(nil); got != "" {
		t.Fatalf("auditErrorCode(nil) = %q, want empty", got)
	}
}
