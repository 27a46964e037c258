package authkit

import (
	"context"
	"testing"
	"time"
)

func TestMailDispatcherDelivers(t *testing.T) {
	mailer := newTestMailer()
	d := newMailDispatcher(MailConfig{BufferSize: 8}, mailer)
	defer d.Close()

	d.SendVerificationCode("alice@example.com", "123456")
	d.SendPasswordResetLink("alice@example.com", "tok")

	code := mailer.waitCode(t)
	if code.email != "alice@example.com" || code.secret != "123456" {
		t.Fatalf("unexpected code delivery: %+v", code)
	}
	reset := mailer.waitReset(t)
	if reset.secret != "tok" {
		t.Fatalf("unexpected reset delivery: %+v", reset)
	}
}

func TestMailDispatcherNilMailer(t *testing.T) {
	d := newMailDispatcher(MailConfig{BufferSize: 8}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher without a mailer")
	}

	// Nil dispatchers are safe to use.
	d.SendVerificationCode("alice@example.com", "123456")
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestMailDispatcherDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	d := newMailDispatcher(MailConfig{BufferSize: 1}, slowMailer{release: release})
	defer func() {
		close(release)
		d.Close()
	}()

	for i := 0; i < 50; i++ {
		d.SendVerificationCode("alice@example.com", "123456")
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer and a blocked mailer")
	}
}

func TestMailDispatcherCloseDrains(t *testing.T) {
	mailer := newTestMailer()
	d := newMailDispatcher(MailConfig{BufferSize: 8}, mailer)

	d.SendVerificationCode("alice@example.com", "111111")
	d.SendVerificationCode("bob@example.com", "222222")
	d.Close()

	// Both deliveries happen before Close returns.
	for i := 0; i < 2; i++ {
		select {
		case <-mailer.codes:
		case <-time.After(time.Second):
			t.Fatal("delivery lost on Close")
		}
	}
}

type slowMailer struct {
	release chan struct{}
}

func (m slowMailer) SendVerificationCode(_ context.Context, _, _ string) error {
	<-m.release
	return nil
}

func (m slowMailer) SendPasswordResetLink(_ context.Context, _, _ string) error {
	<-m.release
	return nil
}
