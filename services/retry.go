package services

import (
	"context"
	"math/rand"
	"time"
)

const maxBackoff = 30 * time.Second

// calculateBackoff は指数バックオフ (±25% のジッター付き) を返す
func calculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}

	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff <= 0 || backoff > maxBackoff {
		backoff = maxBackoff
	}

	if half := int64(backoff) / 2; half > 0 {
		jitter := time.Duration(rand.Int63n(half)) - backoff/4
		backoff += jitter
	}
	return backoff
}

// withRetry は retryable なエラーの間だけ fn を最大 maxRetries 回再実行する
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(baseDelay, attempt)):
			}
		}

		err = fn()
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// callContext は1回の呼び出しにタイムアウトを付ける (0 なら無制限)
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
