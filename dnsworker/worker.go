// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/siemens/subdig/types"

	"github.com/miekg/dns"
)

// ErrInvalidName is the cause of Failed outcomes for candidates that aren't
// valid domain names, such as those made from empty wordlist entries.
var ErrInvalidName = errors.New("invalid domain name")

// Resolve the specified candidate name exactly once using the resolver, bounded
// by the specified timeout, and return the classified outcome. Resolve never
// retries. A zero or negative timeout leaves the lookup bounded only by ctx.
//
// The outcome classification is as follows:
//   - one or more addresses: [types.Resolved].
//   - [ErrNotFound]: [types.NotFound].
//   - no answer before the timeout: [types.TimedOut].
//   - ctx cancelled: [types.Cancelled].
//   - anything else: [types.Failed], with the error as its cause.
func Resolve(ctx context.Context, r Resolver, candidate string, timeout time.Duration) types.Outcome {
	start := time.Now()
	if _, ok := dns.IsDomainName(candidate); !ok {
		return types.NewOutcome(candidate, types.Failed, nil,
			fmt.Errorf("%w: %q", ErrInvalidName, candidate), 0)
	}
	qctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	addrs, err := r.LookupAddrs(qctx, candidate)
	elapsed := time.Since(start)
	kind := Classify(ctx, addrs, err)
	if kind != types.Resolved {
		addrs = nil
		if err == nil {
			err = fmt.Errorf("%w: %s has no address records", ErrNotFound, candidate)
		}
	} else {
		err = nil
	}
	return types.NewOutcome(candidate, kind, addrs, err, elapsed)
}

// Classify the result of a lookup. The parent context ctx is used to tell a
// shutdown cancellation apart from a per-query timeout.
func Classify(ctx context.Context, addrs []string, err error) types.Kind {
	switch {
	case err == nil && len(addrs) > 0:
		return types.Resolved
	case err == nil, errors.Is(err, ErrNotFound):
		return types.NotFound
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return types.Cancelled
	case errors.Is(err, context.Canceled):
		return types.Cancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return types.TimedOut
	}
	var neterr interface{ Timeout() bool }
	if errors.As(err, &neterr) && neterr.Timeout() {
		return types.TimedOut
	}
	return types.Failed
}
