// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uilive"
	"github.com/siemens/subdig/dig"
)

// statusLine keeps a live "Pending / In progress / Completed" line updated on
// a terminal while digging.
type statusLine struct {
	term    *uilive.Writer
	spinner *spinner
	total   int
	digger  *dig.Digger
	done    chan struct{}
	stopped chan struct{}
}

// newStatusLine returns a status line for the specified digger, rendering to
// w. Call Start to begin updating it and Stop to render a final update.
func newStatusLine(w io.Writer, digger *dig.Digger, total int) *statusLine {
	// We don't use uilive's Start() with its own background updating, as it
	// may trigger anytime with the rendering into the buffer not yet complete.
	// Instead, we explicitly flush after having completed rendering.
	term := uilive.New()
	term.Out = w
	return &statusLine{
		term:    term,
		spinner: newSpinner(),
		total:   total,
		digger:  digger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start updating the status line every interval.
func (s *statusLine) Start(interval time.Duration) {
	s.spinner.Start(interval)
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.render()
			select {
			case <-ticker.C:
			case <-s.done:
				s.render()
				return
			}
		}
	}()
}

// Stop updating the status line after a final update.
func (s *statusLine) Stop() {
	close(s.done)
	<-s.stopped
	s.spinner.Stop()
}

func (s *statusLine) render() {
	p := s.digger.Progress()
	pending := s.total - p.Admitted
	if pending < 0 {
		pending = 0
	}
	fmt.Fprintf(s.term, "%sPending: %d, In progress: %d, Completed: %d\n",
		s.spinner.Spinner(), pending, p.InFlight, p.Completed)
	_ = s.term.Flush()
}
