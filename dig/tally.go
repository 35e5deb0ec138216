// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"sort"
	"sync"

	"github.com/siemens/subdig/types"
)

// Pair is a candidate name together with the kind of its outcome.
type Pair struct {
	Candidate string
	Kind      types.Kind
}

// Tally keeps the multiset of (candidate, outcome kind) pairs consumed from an
// outcome stream, as well as the addresses of resolved candidates. A typical
// use case for a Tally is to consume outcomes from a Digger's news channel
// while also passing them on to the actual presentation.
type Tally struct {
	mu    sync.Mutex
	pairs map[Pair]int
	addrs map[string][]string
	total int
}

// NewTally returns a new and properly initialized Tally.
func NewTally() *Tally {
	return &Tally{
		pairs: map[Pair]int{},
		addrs: map[string][]string{},
	}
}

// Update the tally with an outcome. The addresses of a resolved candidate that
// has been resolved before get merged.
func (t *Tally) Update(o types.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pairs[Pair{Candidate: o.Candidate, Kind: o.Kind}]++
	t.total++
	if o.Kind != types.Resolved {
		return
	}
	known := t.addrs[o.Candidate]
nextAddr:
	for _, addr := range o.Records {
		for _, k := range known {
			if k == addr {
				continue nextAddr
			}
		}
		known = append(known, addr)
	}
	t.addrs[o.Candidate] = known
}

// Total returns the number of outcomes tallied.
func (t *Tally) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Count returns the number of outcomes of the specified kind.
func (t *Tally) Count(kind types.Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for pair, count := range t.pairs {
		if pair.Kind == kind {
			n += count
		}
	}
	return n
}

// Pairs returns (a copy of) the multiset of (candidate, kind) pairs.
func (t *Tally) Pairs() map[Pair]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pairs := make(map[Pair]int, len(t.pairs))
	for pair, count := range t.pairs {
		pairs[pair] = count
	}
	return pairs
}

// Names returns the sorted candidate names with outcomes of the specified kind;
// names with multiple such outcomes are listed only once.
func (t *Tally) Names(kind types.Kind) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := []string{}
	for pair := range t.pairs {
		if pair.Kind == kind {
			names = append(names, pair.Candidate)
		}
	}
	sort.Strings(names)
	return names
}

// Addresses returns the addresses of a resolved candidate, or nil.
func (t *Tally) Addresses(candidate string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	addrs := t.addrs[candidate]
	if addrs == nil {
		return nil
	}
	return append([]string(nil), addrs...)
}

// Track outcomes received from the specified news channel until the channel is
// closed or the context done, passing each outcome on to the optional
// consumers after tallying it. Track only returns after processing all
// outcomes or when the context is done.
func (t *Tally) Track(ctx context.Context, news <-chan types.Outcome, consumers ...func(types.Outcome)) error {
	for {
		select {
		case o, ok := <-news:
			if !ok {
				return nil
			}
			t.Update(o)
			for _, consume := range consumers {
				consume(o)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
