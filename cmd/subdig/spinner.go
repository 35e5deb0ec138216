// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"sync/atomic"
	"time"
)

// spinnerPhases are the (braille) spinner phases, each followed by a space.
var spinnerPhases = []string{"⠉ ", "⠘ ", "⠰ ", "⠤ ", "⠆ ", "⠃ "}

// spinner advances through its phases in the background; just enough to show
// that we're still alive.
type spinner struct {
	phase atomic.Uint32
	done  chan struct{}
}

// newSpinner returns a new spinner; later call the Start method to make it
// spinning, and the Stop method to stop it and release background resources.
func newSpinner() *spinner {
	return &spinner{done: make(chan struct{})}
}

// Spinner returns the spinner string for the current phase.
func (s *spinner) Spinner() string {
	return spinnerPhases[int(s.phase.Load())%len(spinnerPhases)]
}

// Start the spinner to spin in steps every specified interval.
func (s *spinner) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.phase.Add(1)
			case <-s.done:
				return
			}
		}
	}()
}

// Stop the spinner and release the background resources.
func (s *spinner) Stop() {
	close(s.done)
}
