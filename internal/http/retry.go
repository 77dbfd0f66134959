package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypePermanent indicates the target will not work no matter how often
	// it is retried (404, 403). The caller should move on to another target.
	ErrorTypePermanent
	// ErrorTypeCredential indicates authentication failure (401, expired token)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, resets, truncated bodies)
	ErrorTypeNetwork
	// ErrorTypeValidation indicates the transfer completed but the result was rejected
	ErrorTypeValidation
	// ErrorTypeRetryable indicates server errors and anything else worth another attempt
	ErrorTypeRetryable
	// ErrorTypeFatal indicates errors that should never be retried (cancellation, bad request)
	ErrorTypeFatal
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// Validator is implemented by errors raised when a finished transfer is rejected.
type Validator interface {
	ValidationFailure() bool
}

// Policy parameterizes Do: how many attempts, how long to wait for each
// error class and which errors are worth retrying.
type Policy struct {
	// MaxAttempts is the total number of attempts (default: 3)
	MaxAttempts int
	// Backoff holds fixed waits per error class. Classes without an entry use
	// exponential backoff with full jitter between InitialDelay and MaxDelay.
	Backoff map[ErrorType]time.Duration
	// InitialDelay and MaxDelay bound the exponential fallback
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Classify maps an error to its class (default: ClassifyError)
	Classify func(error) ErrorType
	// OnRetry is an optional callback invoked before each wait
	OnRetry func(attempt int, err error, errorType ErrorType, wait time.Duration)
	// Sleep waits between attempts (default: context-aware timer)
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns exponential backoff suited to object storage calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     15 * time.Second,
	}
}

// ClassifyError determines the error type for retry strategy.
// Typed errors are checked first; the message is only inspected as a last resort.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeFatal
	}

	var v Validator
	if errors.As(err, &v) && v.ValidationFailure() {
		return ErrorTypeValidation
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatus())
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return ErrorTypeNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorTypeNetwork
	}

	return classifyMessage(strings.ToLower(err.Error()))
}

func classifyStatus(code int) ErrorType {
	switch {
	case code >= 200 && code < 300:
		return ErrorTypeSuccess
	case code == 404 || code == 403:
		return ErrorTypePermanent
	case code == 401:
		return ErrorTypeCredential
	case code == 408 || code == 429 || code >= 500:
		return ErrorTypeRetryable
	case code >= 400:
		return ErrorTypeFatal
	default:
		// 1xx/3xx that survived redirect handling
		return ErrorTypeRetryable
	}
}

// classifyMessage covers SDK errors (S3, Azure) that only expose text.
func classifyMessage(errStr string) ErrorType {
	if strings.Contains(errStr, "expired") ||
		strings.Contains(errStr, "invalid token") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "authentication failed") ||
		strings.Contains(errStr, "authenticationfailed") ||
		strings.Contains(errStr, "invalid sas") ||
		strings.Contains(errStr, "signature not valid") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "requesttimeout") ||
		strings.Contains(errStr, "internalerror") ||
		strings.Contains(errStr, "serviceunavailable") ||
		strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "serverbusy") ||
		strings.Contains(errStr, "server busy") {
		return ErrorTypeRetryable
	}

	if strings.Contains(errStr, "404") || strings.Contains(errStr, "403") {
		return ErrorTypePermanent
	}

	// Unknown errors - treat as fatal to avoid retrying programming errors
	return ErrorTypeFatal
}

// CalculateBackoff returns exponential backoff duration with full jitter
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p Policy) classify(err error) ErrorType {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return ClassifyError(err)
}

func (p Policy) wait(attempt int, t ErrorType) time.Duration {
	if d, ok := p.Backoff[t]; ok {
		return d
	}
	return CalculateBackoff(attempt, p.InitialDelay, p.MaxDelay)
}

// Do runs op until it succeeds, hits a permanent or fatal error, or the
// attempt budget is spent. The returned error wraps the last failure so the
// caller can still inspect it with errors.Is/As.
//
// Retry strategy:
//   - Permanent/Fatal: return immediately
//   - Everything else: wait the class backoff and retry
//   - Context cancellation: return immediately, also while waiting
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	max := p.attempts()
	var lastErr error

	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		errType := p.classify(err)
		switch errType {
		case ErrorTypeSuccess:
			return nil
		case ErrorTypePermanent, ErrorTypeFatal:
			return err
		}

		if attempt == max {
			break
		}

		d := p.wait(attempt, errType)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, errType, d)
		}
		if err := sleep(ctx, d); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	return &ExhaustedError{Attempts: max, Err: lastErr}
}

// ExhaustedError is returned by Do when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Escalate tries each target in order with the policy and returns the first
// target that succeeded. When every target fails the per-target errors are
// joined in order. Cancellation stops the escalation.
func (p Policy) Escalate(ctx context.Context, targets []string, op func(ctx context.Context, target string, attempt int) error) (string, error) {
	var errs []error
	for _, target := range targets {
		err := p.Do(ctx, func(ctx context.Context, attempt int) error {
			return op(ctx, target, attempt)
		})
		if err == nil {
			return target, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", target, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", errors.New("no targets to try")
	}
	return "", errors.Join(errs...)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
