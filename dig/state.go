// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"fmt"
	"time"

	"github.com/siemens/subdig/types"
)

// State of a [Digger].
type State int32

// The states a Digger passes through, in this order. Cancellation skips
// Draining and goes directly to Done.
const (
	Idle     State = iota // not yet started.
	Running                // admitting candidates.
	Draining               // candidates exhausted, waiting for queries in flight.
	Done                   // finished, news channel closed.
)

// String returns the clear-text representation of a State value.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", s)
}

// Progress is a snapshot of a Digger's counters while it is digging.
type Progress struct {
	Admitted  int // candidates admitted so far.
	InFlight  int // queries currently in flight.
	Completed int // queries completed so far, including cancelled ones.
}

// Report sums up a finished dig. Every admitted candidate is accounted for as
// either delivered or cancelled.
type Report struct {
	Admitted    int                // candidates admitted after getting rate permission.
	Delivered   int                // outcomes sent over the news channel.
	Cancelled   int                // admitted candidates whose outcomes were dropped due to cancellation.
	Skipped     int                // wordlist entries skipped as too long, if known.
	Kinds       map[types.Kind]int // delivered outcomes per kind.
	Elapsed     time.Duration      // overall duration of the dig.
	Interrupted bool               // true if the dig was cancelled.
	State       State              // always Done for reports returned by Dig.
}
