// Package retry implements the exponential-backoff retry wrapper used by
// outbound HTTP calls, grounded on the original implementation's
// infra/external/retry module.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
)

// Policy configures retry behavior. The zero value is invalid; use
// DefaultPolicy.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Exponential bool
	MaxDelay   time.Duration
}

// DefaultPolicy matches the spec default: 3 retries, 1s base delay,
// exponential backoff capped at 30s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second, Exponential: true, MaxDelay: 30 * time.Second}
}

func (p Policy) delayFor(attempt int) time.Duration {
	if !p.Exponential {
		return p.BaseDelay
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn, retrying per policy while apperrors.IsRetriable(err) and
// attempts remain. Each attempt is logged with correlation id, operation,
// attempt number, and error type.
func Do[T any](ctx context.Context, policy Policy, correlationID, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		errType := "unknown"
		var ae *apperrors.AppError
		if apperrors.As(err, &ae) {
			errType = string(ae.Kind)
		}
		slog.Info("outbound call attempt failed",
			"correlation_id", correlationID, "operation", operation, "attempt", attempt, "error_type", errType)

		if attempt > policy.MaxRetries || !apperrors.IsRetriable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.delayFor(attempt)):
		}
	}
	return zero, lastErr
}
