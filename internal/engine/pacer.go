package engine

import (
	"context"
	"time"
)

// Delay converts a sends-per-hour rate limit into the fixed pause applied
// between two consecutive send attempts. This is a naive fixed-delay pacer,
// not a token bucket: it ignores time already spent sending and does not
// smooth bursts across campaigns.
func Delay(sendsPerHour int) time.Duration {
	if sendsPerHour < 1 {
		sendsPerHour = 1
	}
	return time.Hour / time.Duration(sendsPerHour)
}

// sleepCtx pauses for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
