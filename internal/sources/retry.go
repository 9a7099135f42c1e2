package sources

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/radarerr"
)

// RetryConfig mirrors core/retry.py's retry_with_backoff: max attempts,
// base/max delay, and optional jitter.
type RetryConfig struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

// DefaultRetryConfig matches retry_with_backoff's defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
	Jitter:     false,
}

// WithRetry runs op with exponential backoff, logging each retry
// attempt the way the Python decorator's on_retry callback did. An
// error wrapping radarerr.ErrPermanent is returned at once, without
// further attempts.
func WithRetry(ctx context.Context, cfg RetryConfig, log zerolog.Logger, opName string, op func() error) error {
	attemptOp := func() error {
		err := op()
		if errors.Is(err, radarerr.ErrPermanent) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.MaxInterval = cfg.MaxDelay
	b.MaxElapsedTime = 0
	if !cfg.Jitter {
		b.RandomizationFactor = 0
	}
	bo := backoff.WithMaxRetries(b, cfg.MaxRetries)
	bo = backoff.WithContext(bo, ctx)

	attempt := 0
	return backoff.RetryNotify(attemptOp, bo, func(err error, delay time.Duration) {
		attempt++
		log.Warn().Err(err).Str("op", opName).Int("attempt", attempt).Dur("delay", delay).Msg("sources: retrying after failure")
	})
}
