// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/siemens/subdig/types"
)

// sink prints outcomes as lines of "<candidate> <Kind> [records]".
type sink struct {
	out          io.Writer
	resolvedOnly bool
	colored      bool
	mu           sync.Mutex
}

// Print a single outcome, unless it is filtered out.
func (s *sink) Print(o types.Outcome) {
	if s.resolvedOnly && o.Kind != types.Resolved {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, s.line(o))
}

func (s *sink) line(o types.Outcome) string {
	name, kind := o.Candidate, o.Kind.String()
	if s.colored {
		name = candidateStyle.Styled(name)
		kind = kindStyles[o.Kind].Styled(kind)
	}
	if len(o.Records) == 0 {
		return name + " " + kind
	}
	return name + " " + kind + " " + strings.Join(o.Records, ",")
}
