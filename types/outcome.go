// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"strings"
	"time"
)

// Outcome is the classified result of resolving exactly one candidate name.
type Outcome struct {
	Candidate string        `json:"candidate"`         // the candidate FQDN, without trailing dot.
	Kind      Kind          `json:"kind"`              // outcome classification.
	Records   []string      `json:"records,omitempty"` // resolved addresses, only for Resolved.
	Elapsed   time.Duration `json:"elapsed"`           // latency of the lookup.
	err       error         // cause for TimedOut, Failed, and Cancelled.
}

// NewOutcome returns a new Outcome for the specified candidate. The records
// are copied so that the outcome never shares its backing array with the
// caller.
func NewOutcome(candidate string, kind Kind, records []string, err error, elapsed time.Duration) Outcome {
	var recs []string
	if len(records) > 0 {
		recs = make([]string, len(records))
		copy(recs, records)
	}
	return Outcome{
		Candidate: candidate,
		Kind:      kind,
		Records:   recs,
		Elapsed:   elapsed,
		err:       err,
	}
}

// Err returns the optional cause of a non-resolved outcome.
func (o Outcome) Err() error { return o.err }

// String renders the outcome in the "name Kind [records]" form.
func (o Outcome) String() string {
	var b strings.Builder
	b.WriteString(o.Candidate)
	b.WriteByte(' ')
	b.WriteString(o.Kind.String())
	if len(o.Records) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(o.Records, ","))
	}
	return b.String()
}
