package service

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"rentease/internal/repository"
)

// readWithRetry reintenta lecturas que fallan por errores transitorios de
// conexión, reiniciando el pool antes de cada nuevo intento. Cualquier otro
// error se devuelve sin reintentar. No usar para escrituras.
func readWithRetry[T any](ctx context.Context, s *AuthService, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		out     T
		attempt int
	)
	attempts := s.policy.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(defaultRetryBase(s.policy.RetryBaseDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		if !repository.IsTransient(err) {
			return err
		}
		s.logger.Warn("transient db error, resetting connections",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		s.users.ResetConnections()
		return retry.RetryableError(err)
	})
	return out, err
}

func defaultRetryBase(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return d
}
