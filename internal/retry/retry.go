// AngelaMos | 2026
// retry.go

package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/core"
)

// Policy bounds one retry loop. MaxAttempts counts the first call, so a
// policy of 3 makes at most three calls in total. Each wait is BaseDelay
// plus a uniform random share of Jitter.
type Policy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
	Retryable   func(error) bool
}

func ProviderPolicy(cfg config.RetryConfig, retryable func(error) bool) Policy {
	return Policy{
		Name:        "provider",
		MaxAttempts: cfg.ProviderAttempts,
		BaseDelay:   cfg.ProviderBaseDelay,
		Jitter:      cfg.ProviderJitter,
		Retryable:   retryable,
	}
}

func MirrorPolicy(cfg config.RetryConfig) Policy {
	return Policy{
		Name:        "mirror",
		MaxAttempts: cfg.MirrorAttempts,
		BaseDelay:   cfg.MirrorDelay,
	}
}

type jitterBackOff struct {
	base   time.Duration
	jitter time.Duration
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	if b.jitter <= 0 {
		return b.base
	}
	//nolint:gosec // G404: retry jitter is not security sensitive
	return b.base + time.Duration(rand.Int64N(int64(b.jitter)+1))
}

func (b *jitterBackOff) Reset() {}

// Do calls op until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = &jitterBackOff{base: p.BaseDelay, jitter: p.Jitter}
	b = backoff.WithMaxRetries(b, uint64(attempts-1)) //nolint:gosec // G115: attempts >= 1
	b = backoff.WithContext(b, ctx)

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "retrying operation",
			"policy", p.Name,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", err,
		)
		core.AddSpanEvent(ctx, "retry",
			attribute.String("policy", p.Name),
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		)
	}

	err := backoff.RetryNotify(wrapped, b, notify)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}

	return err
}

// Value is Do for operations that produce a result.
func Value[T any](
	ctx context.Context,
	p Policy,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
