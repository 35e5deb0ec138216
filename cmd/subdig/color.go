// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"github.com/siemens/subdig/types"
)

var (
	resolvedStyle = termenv.Style{}.Foreground(termenv.ANSIGreen)
	notFoundStyle = termenv.Style{}.Faint()
	timedOutStyle = termenv.Style{}.Foreground(termenv.ANSIYellow)
	failedStyle   = termenv.Style{}.Foreground(termenv.ANSIRed)
)

var candidateStyle = termenv.Style{}.Bold()

// kindStyles maps outcome kinds to their display styles.
var kindStyles = map[types.Kind]termenv.Style{
	types.Resolved:  resolvedStyle,
	types.NotFound:  notFoundStyle,
	types.TimedOut:  timedOutStyle,
	types.Failed:    failedStyle,
	types.Cancelled: notFoundStyle,
}

// colorful returns true if the writer is a terminal capable of colors.
func colorful(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}
