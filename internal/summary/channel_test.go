package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type handlerFunc func(ctx context.Context, req Request) Response

func (f handlerFunc) Handle(ctx context.Context, req Request) Response { return f(ctx, req) }

func echoHandler() Handler {
	return handlerFunc(func(_ context.Context, req Request) Response {
		return Response{Success: true, Summary: "echo: " + req.Text}
	})
}

// blockingHandler signals started and then waits for cancellation.
func blockingHandler(started chan<- struct{}) Handler {
	return handlerFunc(func(ctx context.Context, _ Request) Response {
		if started != nil {
			started <- struct{}{}
		}
		<-ctx.Done()
		return Response{Error: ctx.Err().Error()}
	})
}

func TestChannelSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := newChannel(echoHandler())
	defer ch.Close()

	resp, err := ch.Send(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !resp.Success || resp.Summary != "echo: hello" {
		t.Errorf("response = %+v", resp)
	}
}

func TestChannelSendDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := newChannel(blockingHandler(nil))
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ch.Send(ctx, Request{Text: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if !IsTimeout(err) {
		t.Error("deadline error should be timeout-class")
	}
}

func TestChannelCloseMidRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 1)
	ch := newChannel(blockingHandler(started))

	errc := make(chan error, 1)
	go func() {
		_, err := ch.Send(context.Background(), Request{Text: "x"})
		errc <- err
	}()

	<-started
	ch.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrNoResponse) {
			t.Fatalf("error = %v, want ErrNoResponse", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after Close")
	}
}

func TestChannelSendAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := newChannel(echoHandler())
	ch.Close()

	if _, err := ch.Send(context.Background(), Request{}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("error = %v, want ErrChannelClosed", err)
	}
}

func TestChannelManagerEnsureIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewChannelManager(echoHandler(), nil)
	defer m.Close()

	if m.Ready() {
		t.Fatal("manager should start without a channel")
	}
	a := m.Ensure()
	b := m.Ensure()
	if a != b {
		t.Error("Ensure created a second channel")
	}
	if !m.Ready() {
		t.Error("Ready = false after Ensure")
	}
	if got := m.Generations(); got != 1 {
		t.Errorf("Generations = %d, want 1", got)
	}
}

func TestChannelManagerReset(t *testing.T) {
	defer goleak.VerifyNone(t)

	resets := 0
	m := NewChannelManager(echoHandler(), func() { resets++ })
	defer m.Close()

	m.Reset()
	if resets != 0 {
		t.Errorf("Reset without a channel fired the hook")
	}

	first := m.Ensure()
	m.Reset()
	if m.Ready() {
		t.Error("Ready = true after Reset")
	}
	if resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}

	resp, err := m.Send(context.Background(), Request{Text: "again"})
	if err != nil {
		t.Fatalf("Send after Reset: %v", err)
	}
	if resp.Summary != "echo: again" {
		t.Errorf("summary = %q", resp.Summary)
	}
	if m.Ensure() == first {
		t.Error("Send after Reset reused the closed channel")
	}
	if got := m.Generations(); got != 2 {
		t.Errorf("Generations = %d, want 2", got)
	}
}

func TestChannelManagerResetCancelsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 1)
	m := NewChannelManager(blockingHandler(started), nil)
	defer m.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), Request{Text: "x"})
		errc <- err
	}()
	<-started
	m.Reset()

	if err := <-errc; !IsTimeout(err) {
		t.Fatalf("error = %v, want a timeout-class error", err)
	}
}

func TestManagerResendsAfterConcurrentReset(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewChannelManager(echoHandler(), nil)
	defer m.Close()

	// Another generation resets the channel between Ensure and delivery.
	stale := m.Ensure()
	m.Reset()

	resp, err := m.sendFrom(context.Background(), stale, Request{Text: "late"})
	if err != nil {
		t.Fatalf("send after reset: %v", err)
	}
	if resp.Summary != "echo: late" {
		t.Errorf("response = %+v", resp)
	}
	if got := m.Generations(); got != 2 {
		t.Errorf("generations = %d, want 2", got)
	}
}

func TestManagerDoesNotResendAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewChannelManager(echoHandler(), nil)
	stale := m.Ensure()
	m.Close()

	if _, err := m.sendFrom(context.Background(), stale, Request{Text: "x"}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("error = %v, want ErrChannelClosed", err)
	}
	if m.Ready() {
		t.Error("closed manager built a new channel")
	}
}

func TestClosedChannelErrorIsRetryable(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := newChannel(echoHandler())
	ch.Close()

	_, err := ch.Send(context.Background(), Request{Text: "x"})
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("error = %v, want ErrChannelClosed", err)
	}
	if !IsTimeout(err) {
		t.Error("a closed channel should be retried on a fresh one")
	}
}
