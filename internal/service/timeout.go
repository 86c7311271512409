package service

import (
	"context"
	"time"
)

// Adaptive timeout bounds.
const (
	TimeoutBase  = 60 * time.Second
	TimeoutStep  = 60 * time.Second
	TimeoutMax   = 600 * time.Second
	TimeoutChunk = 100 << 20
)

// AdaptiveTimeout returns the deadline of each step of an import of an archive of size bytes.
func AdaptiveTimeout(size int64) time.Duration {
	var chunks int64
	if size > 0 {
		chunks = (size + TimeoutChunk - 1) / TimeoutChunk
	}

	timeout := TimeoutBase + time.Duration(chunks)*TimeoutStep
	if timeout > TimeoutMax {
		return TimeoutMax
	}
	return timeout
}

// runStep runs fn under its own deadline. A failure caused by the deadline
// becomes a TimeoutError unless the parent context was already done.
func runStep(ctx context.Context, step string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(sctx)
	if err != nil && sctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return &TimeoutError{Step: step, Timeout: timeout}
	}
	return err
}
