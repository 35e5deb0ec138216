// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// Kind classifies the outcome of resolving a single candidate name, such as
// resolved, not found, et cetera.
type Kind int

// The outcome kinds of a candidate name resolution.
const (
	Resolved  Kind = iota // name resolved into one or more addresses.
	NotFound              // no such name, or no address records for it.
	TimedOut              // no response within the per-query timeout.
	Failed                // any other resolver or network failure.
	Cancelled             // resolution aborted because the run was shut down.
)

// Kinds lists all outcome kinds in their canonical order.
var Kinds = []Kind{Resolved, NotFound, TimedOut, Failed, Cancelled}

// String returns the clear-text representation of a Kind value.
func (k Kind) String() string {
	switch k {
	case Resolved:
		return "Resolved"
	case NotFound:
		return "NotFound"
	case TimedOut:
		return "TimedOut"
	case Failed:
		return "Error"
	case Cancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsFailure returns true for the kinds carrying a diagnostic cause worth
// reporting in debug mode.
func (k Kind) IsFailure() bool {
	switch k {
	case TimedOut, Failed:
		return true
	default:
		return false
	}
}
