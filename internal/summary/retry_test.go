package summary

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForDeadline(ctx context.Context, _ int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRetryPolicyFirstAttemptSucceeds(t *testing.T) {
	resets := 0
	p := RetryPolicy{Timeouts: []time.Duration{time.Second, time.Second}, Reset: func() { resets++ }}

	calls := 0
	out, degraded, err := p.Run(context.Background(), func(context.Context, int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || out != "ok" || degraded {
		t.Fatalf("Run = %q, %v, %v", out, degraded, err)
	}
	if calls != 1 || resets != 0 {
		t.Errorf("calls = %d, resets = %d", calls, resets)
	}
}

func TestRetryPolicyRetriesTimeoutWithLongerBound(t *testing.T) {
	resets := 0
	p := RetryPolicy{
		Timeouts: []time.Duration{10 * time.Millisecond, 5 * time.Second},
		Reset:    func() { resets++ },
	}

	var seen []int
	out, degraded, err := p.Run(context.Background(), func(ctx context.Context, n int) (string, error) {
		seen = append(seen, n)
		if n == 0 {
			return waitForDeadline(ctx, n)
		}
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) < time.Second {
			t.Errorf("retry attempt deadline too short: %v", time.Until(deadline))
		}
		return "second", nil
	})
	if err != nil || out != "second" || degraded {
		t.Fatalf("Run = %q, %v, %v", out, degraded, err)
	}
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Errorf("attempts = %v", seen)
	}
	if resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}
}

func TestRetryPolicyDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("invalid api key")
	resets := 0
	p := RetryPolicy{Timeouts: []time.Duration{time.Second, time.Second}, Reset: func() { resets++ }}

	calls := 0
	_, _, err := p.Run(context.Background(), func(context.Context, int) (string, error) {
		calls++
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if calls != 1 || resets != 0 {
		t.Errorf("calls = %d, resets = %d", calls, resets)
	}
}

func TestRetryPolicyNoResponseIsRetried(t *testing.T) {
	p := RetryPolicy{Timeouts: []time.Duration{time.Second, time.Second}}

	out, _, err := p.Run(context.Background(), func(_ context.Context, n int) (string, error) {
		if n == 0 {
			return "", ErrNoResponse
		}
		return "recovered", nil
	})
	if err != nil || out != "recovered" {
		t.Fatalf("Run = %q, %v", out, err)
	}
}

func TestRetryPolicyDegradesOnExhaustion(t *testing.T) {
	resets := 0
	var degradeErr error
	p := RetryPolicy{
		Timeouts: []time.Duration{5 * time.Millisecond, 5 * time.Millisecond},
		Reset:    func() { resets++ },
		Degrade: func(err error) (string, bool) {
			degradeErr = err
			return "fallback", true
		},
	}

	out, degraded, err := p.Run(context.Background(), waitForDeadline)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "fallback" || !degraded {
		t.Errorf("Run = %q, degraded=%v", out, degraded)
	}
	if !errors.Is(degradeErr, context.DeadlineExceeded) {
		t.Errorf("Degrade got %v", degradeErr)
	}
	if resets != 2 {
		t.Errorf("resets = %d, want 2", resets)
	}
}

func TestRetryPolicyExhaustionWithoutDegrade(t *testing.T) {
	p := RetryPolicy{Timeouts: []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}}

	_, degraded, err := p.Run(context.Background(), waitForDeadline)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if degraded {
		t.Error("degraded without a Degrade callback")
	}
}

func TestRetryPolicyStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Timeouts: []time.Duration{time.Second, time.Second}}

	calls := 0
	_, _, err := p.Run(ctx, func(actx context.Context, _ int) (string, error) {
		calls++
		cancel()
		<-actx.Done()
		return "", actx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
