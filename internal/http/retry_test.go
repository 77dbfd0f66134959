package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatus() int { return int(s) }

type tooSmall struct{}

func (tooSmall) Error() string           { return "too small" }
func (tooSmall) ValidationFailure() bool { return true }

// recordSleep captures requested waits without sleeping.
func recordSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"nil", nil, ErrorTypeSuccess},
		{"404", statusErr(404), ErrorTypePermanent},
		{"403", statusErr(403), ErrorTypePermanent},
		{"401", statusErr(401), ErrorTypeCredential},
		{"500", statusErr(500), ErrorTypeRetryable},
		{"429", statusErr(429), ErrorTypeRetryable},
		{"400", statusErr(400), ErrorTypeFatal},
		{"wrapped 404", fmt.Errorf("get: %w", statusErr(404)), ErrorTypePermanent},
		{"validation", fmt.Errorf("check: %w", tooSmall{}), ErrorTypeValidation},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), ErrorTypeNetwork},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), ErrorTypeNetwork},
		{"deadline", context.DeadlineExceeded, ErrorTypeNetwork},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("dial tcp: no route")}, ErrorTypeNetwork},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), ErrorTypeFatal},
		{"sdk throttling text", errors.New("SlowDown: please reduce your request rate"), ErrorTypeRetryable},
		{"sdk auth text", errors.New("AuthenticationFailed: server failed to authenticate"), ErrorTypeCredential},
		{"unknown", errors.New("something odd"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.expected))
			}
		})
	}
}

func TestPolicyDo_Success(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 3}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPolicyDo_PermanentStopsImmediately(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := Policy{MaxAttempts: 3, Sleep: recordSleep(&waits)}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return statusErr(404)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || len(waits) != 0 {
		t.Errorf("expected a single attempt without waiting, got %d calls and %d waits", calls, len(waits))
	}
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.HTTPStatus() != 404 {
		t.Errorf("expected the 404 to be returned, got %v", err)
	}
}

func TestPolicyDo_FixedBackoffPerClass(t *testing.T) {
	var waits []time.Duration
	p := Policy{
		MaxAttempts: 3,
		Backoff: map[ErrorType]time.Duration{
			ErrorTypeValidation: 2 * time.Second,
			ErrorTypeNetwork:    3 * time.Second,
		},
		Sleep: recordSleep(&waits),
	}

	errs := []error{tooSmall{}, io.ErrUnexpectedEOF, tooSmall{}}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		e := errs[calls]
		calls++
		return e
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 || calls != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", exhausted.Attempts, calls)
	}
	// No wait after the final attempt
	want := []time.Duration{2 * time.Second, 3 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
	if !errors.As(err, new(tooSmall)) {
		t.Errorf("last error should be preserved, got %v", err)
	}
}

func TestPolicyDo_SucceedsAfterRetries(t *testing.T) {
	var waits []time.Duration
	var retried []int
	p := Policy{
		MaxAttempts: 3,
		Backoff:     map[ErrorType]time.Duration{ErrorTypeNetwork: time.Millisecond},
		Sleep:       recordSleep(&waits),
		OnRetry: func(attempt int, err error, errorType ErrorType, wait time.Duration) {
			retried = append(retried, attempt)
		},
	}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return syscall.ECONNRESET
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 || len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("calls=%d retried=%v", calls, retried)
	}
}

func TestPolicyDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		Backoff:     map[ErrorType]time.Duration{ErrorTypeNetwork: 5 * time.Second},
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		return syscall.ECONNRESET
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancellation took too long: %v", time.Since(start))
	}
}

func TestPolicyEscalate(t *testing.T) {
	var waits []time.Duration
	p := Policy{MaxAttempts: 3, Sleep: recordSleep(&waits), Backoff: map[ErrorType]time.Duration{ErrorTypeNetwork: 0}}

	calls := map[string]int{}
	winner, err := p.Escalate(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, target string, attempt int) error {
		calls[target]++
		switch target {
		case "a":
			return statusErr(404)
		case "b":
			return io.ErrUnexpectedEOF
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if winner != "c" {
		t.Errorf("winner = %q, want c", winner)
	}
	if calls["a"] != 1 || calls["b"] != 3 || calls["c"] != 1 {
		t.Errorf("unexpected call counts: %v", calls)
	}

	_, err = p.Escalate(context.Background(), []string{"x", "y"}, func(ctx context.Context, target string, attempt int) error {
		return statusErr(403)
	})
	if err == nil || !strings.Contains(err.Error(), "x:") || !strings.Contains(err.Error(), "y:") {
		t.Errorf("expected joined per-target errors, got %v", err)
	}

	if _, err := p.Escalate(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty target list")
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, 10*time.Second); d != 0 {
		t.Errorf("attempt 0 should not wait, got %v", d)
	}
	for i := 1; i < 10; i++ {
		d := CalculateBackoff(i, 100*time.Millisecond, time.Second)
		if d < 0 || d >= time.Second {
			t.Errorf("attempt %d backoff %v outside [0, 1s)", i, d)
		}
	}
}
