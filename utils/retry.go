package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// WithRetry executes an operation with retry logic using exponential backoff
func WithRetry(operation func() error, config *RetryConfig) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialInterval
	b.MaxInterval = config.MaxInterval
	b.MaxElapsedTime = config.MaxElapsedTime

	return backoff.Retry(operation, b)
}

// Growth selects how RetryPolicy delays grow with the attempt count.
type Growth int

const (
	// Linear grows as base*attempt (pairing-code requests).
	Linear Growth = iota
	// Exponential grows as base*2^(attempt-1) (reconnection).
	Exponential
)

// RetryPolicy is a bounded retry schedule shared by pairing-code requests
// and reconnection. Attempt numbers are 1-based.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Growth      Growth
}

// Delay returns the wait before the given attempt. Attempts outside
// [1, MaxAttempts] get the boundary delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Growth {
	case Exponential:
		return p.BaseDelay * time.Duration(1<<uint(attempt-1))
	default:
		return p.BaseDelay * time.Duration(attempt)
	}
}

// Exhausted reports whether the given attempt count has passed the ceiling.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}

// Run invokes op up to MaxAttempts times, sleeping Delay(n) after the n-th
// failure. The context cancels the wait between attempts.
func (p RetryPolicy) Run(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
