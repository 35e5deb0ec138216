// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidRate is returned when trying to create a Limiter with a zero,
// negative, or otherwise unusable rate.
var ErrInvalidRate = errors.New("invalid query rate")

// Limiter paces admissions to a configured rate of queries per second, using a
// continuously refilled token bucket. It is safe for concurrent use.
type Limiter struct {
	qps   float64
	burst int
	lim   *rate.Limiter
}

// LimiterOption can be passed to New when creating new [Limiter] objects.
type LimiterOption func(*Limiter)

// WithBurst sets the bucket capacity, that is, the maximum number of
// admissions granted back-to-back after an idle period. Zero or negative
// values keep the default of one second's worth of tokens.
func WithBurst(burst int) LimiterOption {
	return func(l *Limiter) {
		if burst > 0 {
			l.burst = burst
		}
	}
}

// DefaultBurst returns the default bucket capacity for the specified rate: one
// second's worth of tokens, but at least one token.
func DefaultBurst(qps float64) int {
	if qps <= 1 {
		return 1
	}
	return int(math.Ceil(qps))
}

// New returns a new Limiter admitting at most qps queries per second on the
// long run. The bucket starts full. Zero, negative, infinite and NaN rates are
// rejected.
func New(qps float64, options ...LimiterOption) (*Limiter, error) {
	if qps <= 0 || math.IsInf(qps, 0) || math.IsNaN(qps) {
		return nil, fmt.Errorf("%w: must be positive and finite, got %v", ErrInvalidRate, qps)
	}
	l := &Limiter{
		qps:   qps,
		burst: DefaultBurst(qps),
	}
	for _, opt := range options {
		opt(l)
	}
	l.lim = rate.NewLimiter(rate.Limit(qps), l.burst)
	return l, nil
}

// Acquire blocks until the caller is permitted to start one query, or until
// the context is done. Acquire only fails with the context's error once the
// context actually is done, even when its deadline is known in advance to pass
// before the next token; in this case no token has been consumed.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := l.lim.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// QPS returns the configured rate in queries per second.
func (l *Limiter) QPS() float64 { return l.qps }

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int { return l.burst }
