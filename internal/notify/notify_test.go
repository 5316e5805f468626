package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tasky/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// recordingMailer は送信内容を記録するMailer。
type recordingMailer struct {
	mu      sync.Mutex
	sent    []Message
	err     error
	release chan struct{}
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fastConfig はテストで待ちが発生しない送信レート。
var fastConfig = DispatcherConfig{QueueSize: 10, RatePerMin: 600000}

func TestDispatcher_SendsQueuedMessages(t *testing.T) {
	var buf bytes.Buffer
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, newTestLogger(&buf), fastConfig)

	account := &model.Account{Name: "Alice", Email: "alice@example.com"}
	d.NotifyWelcome(context.Background(), account)
	d.NotifyVerificationOTP(context.Background(), account, "123456")
	d.NotifyResetOTP(context.Background(), account, "654321")

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if mailer.count() != 3 {
		t.Fatalf("sent = %d, want 3", mailer.count())
	}
	if !strings.Contains(mailer.sent[1].Body, "123456") {
		t.Errorf("verification mail does not contain the code: %q", mailer.sent[1].Body)
	}
	if !strings.Contains(mailer.sent[2].Body, "654321") {
		t.Errorf("reset mail does not contain the code: %q", mailer.sent[2].Body)
	}
	for _, msg := range mailer.sent {
		if msg.To != "alice@example.com" {
			t.Errorf("To = %q, want %q", msg.To, "alice@example.com")
		}
	}
}

func TestDispatcher_EnqueueNeverBlocksWhenFull(t *testing.T) {
	var buf bytes.Buffer
	mailer := &recordingMailer{release: make(chan struct{})}
	d := NewDispatcher(mailer, newTestLogger(&buf), DispatcherConfig{QueueSize: 1, RatePerMin: 600000})

	var dropped []string
	d.SetDropObserver(func(kind string) { dropped = append(dropped, kind) })

	// ワーカーが1通目で止まっている間にキューを埋める
	d.Enqueue(KindWelcome, Message{To: "a@example.com"})
	time.Sleep(50 * time.Millisecond)
	d.Enqueue(KindWelcome, Message{To: "b@example.com"})

	done := make(chan bool)
	go func() { done <- d.Enqueue(KindResetOTP, Message{To: "c@example.com"}) }()

	select {
	case ok := <-done:
		if ok {
			t.Error("Enqueue on a full queue should report a drop")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	if len(dropped) != 1 || dropped[0] != KindResetOTP {
		t.Errorf("dropped = %v, want [%s]", dropped, KindResetOTP)
	}
	if !strings.Contains(buf.String(), "送信キューが満杯") {
		t.Errorf("drop was not logged: %s", buf.String())
	}

	close(mailer.release)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if mailer.count() != 2 {
		t.Errorf("sent = %d, want 2", mailer.count())
	}
}

func TestDispatcher_SendFailureIsLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	mailer := &recordingMailer{err: errors.New("smtp: 550 mailbox unavailable")}
	d := NewDispatcher(mailer, newTestLogger(&buf), fastConfig)

	if !d.Enqueue(KindWelcome, Message{To: "a@example.com"}) {
		t.Fatal("Enqueue should accept the message")
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if !strings.Contains(buf.String(), "メール送信に失敗しました") {
		t.Errorf("send failure was not logged: %s", buf.String())
	}
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(&recordingMailer{}, newTestLogger(&buf), fastConfig)

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if d.Enqueue(KindWelcome, Message{To: "a@example.com"}) {
		t.Error("Enqueue after Close should be rejected")
	}
	// 2回目のCloseでpanicしない
	if err := d.Close(context.Background()); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	var buf bytes.Buffer
	mailer := &recordingMailer{release: make(chan struct{})}
	d := NewDispatcher(mailer, newTestLogger(&buf), fastConfig)

	d.Enqueue(KindWelcome, Message{To: "a@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close error = %v, want DeadlineExceeded", err)
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "no-reply@example.com",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		if a == nil {
			t.Error("expected smtp auth to be configured")
		}
		return nil
	}

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want %q", gotAddr, "smtp.example.com:587")
	}
	if gotFrom != "no-reply@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "a@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	body := string(gotBody)
	for _, want := range []string{"Subject: Hi\r\n", "To: a@example.com\r\n", "line1\r\nline2"} {
		if !strings.Contains(body, want) {
			t.Errorf("message does not contain %q:\n%s", want, body)
		}
	}
}

func TestSMTPMailer_SendCancelled(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "x@example.com"})
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("sendMail must not be called for a cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, Message{To: "a@example.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send error = %v, want context.Canceled", err)
	}
}

func TestLogMailer_DoesNotLogBody(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(newTestLogger(&buf))

	if err := m.Send(context.Background(), VerificationOTPMessage("A", "a@example.com", "987654")); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if strings.Contains(buf.String(), "987654") {
		t.Errorf("otp leaked into the log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "a@example.com") {
		t.Errorf("recipient missing from the log: %s", buf.String())
	}
}
