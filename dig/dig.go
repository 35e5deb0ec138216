// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/siemens/subdig/dnsworker"
	"github.com/siemens/subdig/ratelimit"
	"github.com/siemens/subdig/types"

	"github.com/gammazero/workerpool"
	"github.com/thediveo/lxkns/log"
)

// DefaultTimeout is the per-query timeout used unless told otherwise.
const DefaultTimeout = 5 * time.Second

// Limits of the automatically derived in-flight ceiling.
const (
	MinInFlight = 16
	MaxInFlight = 4096
)

// ErrAlreadyDug is returned when trying to run a Digger more than once.
var ErrAlreadyDug = errors.New("digger has already been run")

// Candidates is a single-pass sequence of candidate names, such as a
// [github.com/siemens/subdig/candidates.Source].
type Candidates interface {
	Next() (string, bool)
}

// Digger digs a sequence of candidate names, pacing the start of queries to the
// rate of its Limiter and running the queries concurrently, but with a bounded
// number of queries in flight. It streams the outcomes over its “news”
// channel, in the order the queries complete.
type Digger struct {
	resolver    dnsworker.Resolver
	limiter     *ratelimit.Limiter
	timeout     time.Duration
	maxInFlight int

	workers *workerpool.WorkerPool
	slots   chan struct{}
	news    chan types.Outcome

	started   atomic.Bool
	state     atomic.Int32
	admitted  atomic.Int64
	inFlight  atomic.Int64
	completed atomic.Int64
	delivered atomic.Int64
	cancelled atomic.Int64
	kinds     [types.Cancelled + 1]atomic.Int64
}

// DiggerOption can be passed to New when creating new [Digger] objects.
type DiggerOption func(*Digger)

// WithTimeout sets the per-query timeout.
func WithTimeout(timeout time.Duration) DiggerOption {
	return func(d *Digger) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxInFlight sets the maximum number of queries in flight. Zero or
// negative values keep the ceiling derived from rate, burst, and timeout.
func WithMaxInFlight(max int) DiggerOption {
	return func(d *Digger) {
		if max > 0 {
			d.maxInFlight = max
		}
	}
}

// DefaultMaxInFlight returns an in-flight ceiling generous enough to never
// throttle queries paced at qps with the specified burst, even if all of them
// run into the timeout: twice the number of queries that can be started within
// a timeout period, plus the burst. The ceiling is kept within
// [MinInFlight..MaxInFlight].
func DefaultMaxInFlight(qps float64, burst int, timeout time.Duration) int {
	n := math.Ceil(2*qps*timeout.Seconds()) + float64(burst)
	switch {
	case n < MinInFlight:
		return MinInFlight
	case n > MaxInFlight:
		return MaxInFlight
	}
	return int(n)
}

// New returns a new Digger using the specified resolver and pacing, together
// with the “news” channel streaming the outcomes. The news channel gets closed
// by [Digger.Dig] after the last outcome has been sent.
func New(resolver dnsworker.Resolver, limiter *ratelimit.Limiter, options ...DiggerOption) (*Digger, <-chan types.Outcome, error) {
	if resolver == nil {
		return nil, nil, errors.New("missing resolver")
	}
	if limiter == nil {
		return nil, nil, errors.New("missing rate limiter")
	}
	d := &Digger{
		resolver: resolver,
		limiter:  limiter,
		timeout:  DefaultTimeout,
	}
	for _, opt := range options {
		opt(d)
	}
	if d.maxInFlight == 0 {
		d.maxInFlight = DefaultMaxInFlight(limiter.QPS(), limiter.Burst(), d.timeout)
	}
	d.slots = make(chan struct{}, d.maxInFlight)
	d.news = make(chan types.Outcome, d.maxInFlight)
	return d, d.news, nil
}

// MaxInFlight returns the in-flight ceiling.
func (d *Digger) MaxInFlight() int { return d.maxInFlight }

// Timeout returns the per-query timeout.
func (d *Digger) Timeout() time.Duration { return d.timeout }

// State returns the current state of the Digger.
func (d *Digger) State() State { return State(d.state.Load()) }

func (d *Digger) setState(s State) {
	if old := State(d.state.Swap(int32(s))); old != s {
		log.Debugf("digger %s → %s", old, s)
	}
}

// Progress returns a snapshot of the Digger's counters.
func (d *Digger) Progress() Progress {
	return Progress{
		Admitted:  int(d.admitted.Load()),
		InFlight:  int(d.inFlight.Load()),
		Completed: int(d.completed.Load()),
	}
}

// Dig pulls the candidates one after another, admits each of them only after
// getting permission from the rate limiter, and then resolves it concurrently,
// without waiting for the result before admitting the next candidate. Only when
// the in-flight ceiling has been reached, Dig waits for a query to finish.
//
// Dig returns after the candidates have been exhausted and all admitted queries
// have completed, or after the context has been cancelled. In both cases the
// news channel gets closed exactly once before Dig returns, so consumers see no
// further outcomes.
//
// When the context gets cancelled, Dig immediately stops admitting candidates
// and cancels all in-flight queries. Outcomes of queries completing after the
// cancellation aren't sent, but instead counted as cancelled in the report.
func (d *Digger) Dig(ctx context.Context, names Candidates) (Report, error) {
	if !d.started.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyDug
	}
	start := time.Now()
	d.workers = workerpool.New(d.maxInFlight)
	log.Debugf("digging at %g qps (burst %d), max. %d queries in flight, timeout %s",
		d.limiter.QPS(), d.limiter.Burst(), d.maxInFlight, d.timeout)

	interrupted := !d.admit(ctx, names)
	if !interrupted && d.inFlight.Load() > 0 {
		d.setState(Draining)
	}
	d.workers.StopWait()
	close(d.news)
	d.setState(Done)

	report := Report{
		Admitted:    int(d.admitted.Load()),
		Delivered:   int(d.delivered.Load()),
		Cancelled:   int(d.cancelled.Load()),
		Kinds:       map[types.Kind]int{},
		Elapsed:     time.Since(start),
		Interrupted: interrupted || ctx.Err() != nil,
		State:       d.State(),
	}
	if s, ok := names.(interface{ Skipped() int }); ok {
		report.Skipped = s.Skipped()
	}
	for _, kind := range types.Kinds {
		if n := d.kinds[kind].Load(); n > 0 {
			report.Kinds[kind] = int(n)
		}
	}
	return report, nil
}

// admit runs the admission loop, returning false if it got interrupted by the
// context.
func (d *Digger) admit(ctx context.Context, names Candidates) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		name, ok := names.Next()
		if d.State() == Idle {
			d.setState(Running)
		}
		if !ok {
			return true
		}
		// Grab a worker slot first, so that the pacing permission gets used
		// immediately when it is granted.
		select {
		case d.slots <- struct{}{}:
		case <-ctx.Done():
			return false
		}
		if err := d.limiter.Acquire(ctx); err != nil {
			<-d.slots
			return false
		}
		d.admitted.Add(1)
		d.inFlight.Add(1)
		d.workers.Submit(func() { d.resolve(ctx, name) })
	}
}

// resolve a single admitted candidate and pass on its outcome. The worker slot
// is only released after the outcome has been handed over, so a slow consumer
// eventually throttles admission instead of piling up outcomes.
func (d *Digger) resolve(ctx context.Context, name string) {
	defer func() {
		d.inFlight.Add(-1)
		<-d.slots
	}()
	outcome := dnsworker.Resolve(ctx, d.resolver, name, d.timeout)
	d.completed.Add(1)
	if outcome.Kind == types.Cancelled || ctx.Err() != nil {
		d.cancelled.Add(1)
		return
	}
	if outcome.Kind.IsFailure() {
		log.Debugf("%s: %s after %s: %v", name, outcome.Kind, outcome.Elapsed, outcome.Err())
	}
	// Avoid blocking endless in case of the context getting cancelled.
	select {
	case d.news <- outcome:
		d.delivered.Add(1)
		d.kinds[outcome.Kind].Add(1)
	case <-ctx.Done():
		d.cancelled.Add(1)
	}
}
