// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package candidates

import (
	"strings"

	"github.com/thediveo/lxkns/log"
)

// MaxNameLength is the maximum length of a domain name in textual form,
// excluding the trailing root dot.
const MaxNameLength = 253

// Source lazily produces candidate FQDNs by joining each wordlist entry with
// the target domain, in wordlist order. A Source is single-pass: once
// exhausted, a new Source needs to be created from the same entries.
//
// A Source must not be used concurrently from multiple goroutines; the
// dispatcher is its only consumer.
type Source struct {
	entries []string
	domain  string
	next    int
	skipped int
	onSkip  func(entry string)
}

// SourceOption can be passed to New when creating new [Source] objects.
type SourceOption func(*Source)

// WithSkipNotifier registers a function that gets called for each wordlist
// entry skipped because the resulting name would be too long.
func WithSkipNotifier(fn func(entry string)) SourceOption {
	return func(s *Source) {
		s.onSkip = fn
	}
}

// New returns a new Source for the specified (already loaded) wordlist entries
// and target domain. Any trailing dot of the domain is dropped. Entries are
// neither deduplicated nor otherwise altered.
func New(entries []string, domain string, options ...SourceOption) *Source {
	s := &Source{
		entries: entries,
		domain:  strings.TrimSuffix(domain, "."),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Domain returns the target domain without trailing dot.
func (s *Source) Domain() string { return s.domain }

// Next returns the next candidate name and true, or "" and false after the
// Source has been exhausted. Entries that would result in names exceeding
// [MaxNameLength] are skipped.
func (s *Source) Next() (string, bool) {
	for s.next < len(s.entries) {
		entry := s.entries[s.next]
		s.next++
		if len(entry)+1+len(s.domain) > MaxNameLength {
			s.skipped++
			log.Debugf("skipping over-long wordlist entry %q (%d bytes)", entry, len(entry))
			if s.onSkip != nil {
				s.onSkip(entry)
			}
			continue
		}
		return entry + "." + s.domain, true
	}
	return "", false
}

// Skipped returns the number of entries skipped so far.
func (s *Source) Skipped() int { return s.skipped }

// Remaining returns the number of wordlist entries not yet pulled (skipped
// entries included).
func (s *Source) Remaining() int { return len(s.entries) - s.next }
