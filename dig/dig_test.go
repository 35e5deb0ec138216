// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/subdig/candidates"
	"github.com/siemens/subdig/dig"
	"github.com/siemens/subdig/dnsworker"
	"github.com/siemens/subdig/ratelimit"
	"github.com/siemens/subdig/test"
	"github.com/siemens/subdig/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// resolveFixed returns a resolver answering names starting with "www." with a
// single address and reporting all other names as non-existing.
func resolveFixed() dnsworker.Resolver {
	return dnsworker.ResolverFunc(func(ctx context.Context, name string) ([]string, error) {
		if strings.HasPrefix(name, "www.") {
			return []string{"192.0.2.1"}, nil
		}
		return nil, fmt.Errorf("%w: %s", dnsworker.ErrNotFound, name)
	})
}

// blockUntilCancelled returns a resolver that never answers, so its lookups
// end only when their context is done.
func blockUntilCancelled(started *atomic.Int64) dnsworker.Resolver {
	return dnsworker.ResolverFunc(func(ctx context.Context, _ string) ([]string, error) {
		started.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func wordlist(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return words
}

func collect(ctx context.Context, news <-chan types.Outcome) (*dig.Tally, <-chan struct{}) {
	tally := dig.NewTally()
	done := make(chan struct{})
	go func() {
		defer GinkgoRecover()
		defer close(done)
		Expect(tally.Track(ctx, news)).To(Succeed())
	}()
	return tally, done
}

var _ = Describe("digging subdomains", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).Within(3 * time.Second).ProbeEvery(100 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("derives in-flight ceilings", func() {
		Expect(dig.DefaultMaxInFlight(1, 1, time.Second)).To(Equal(dig.MinInFlight))
		Expect(dig.DefaultMaxInFlight(10, 10, 5*time.Second)).To(Equal(110))
		Expect(dig.DefaultMaxInFlight(10000, 10000, 5*time.Second)).To(Equal(dig.MaxInFlight))
	})

	It("rejects missing resolvers and limiters", func() {
		_, _, err := dig.New(nil, Successful(ratelimit.New(10)))
		Expect(err).To(HaveOccurred())
		_, _, err = dig.New(resolveFixed(), nil)
		Expect(err).To(HaveOccurred())
	})

	It("configures timeout and ceiling", func() {
		d, _ := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(10)),
			dig.WithTimeout(2*time.Second), dig.WithMaxInFlight(3)))
		Expect(d.Timeout()).To(Equal(2 * time.Second))
		Expect(d.MaxInFlight()).To(Equal(3))
		Expect(d.State()).To(Equal(dig.Idle))

		d, _ = Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(10)),
			dig.WithTimeout(0), dig.WithMaxInFlight(-1)))
		Expect(d.Timeout()).To(Equal(dig.DefaultTimeout))
		Expect(d.MaxInFlight()).To(Equal(dig.DefaultMaxInFlight(10, 10, dig.DefaultTimeout)))
	})

	It("delivers one outcome per candidate", NodeTimeout(10*time.Second), func(ctx context.Context) {
		words := wordlist(50)
		words = append(words, "www")
		d, news := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(1000))))
		tally, done := collect(ctx, news)

		report := Successful(d.Dig(ctx, candidates.New(words, "example.com")))
		Eventually(done).Should(BeClosed())

		Expect(report.State).To(Equal(dig.Done))
		Expect(d.State()).To(Equal(dig.Done))
		Expect(report.Interrupted).To(BeFalse())
		Expect(report.Admitted).To(Equal(51))
		Expect(report.Delivered).To(Equal(51))
		Expect(report.Cancelled).To(BeZero())
		Expect(report.Kinds).To(Equal(map[types.Kind]int{
			types.Resolved: 1,
			types.NotFound: 50,
		}))

		Expect(tally.Total()).To(Equal(51))
		Expect(tally.Names(types.Resolved)).To(ConsistOf("www.example.com"))
		Expect(tally.Addresses("www.example.com")).To(ConsistOf("192.0.2.1"))
		for pair, count := range tally.Pairs() {
			Expect(count).To(Equal(1), "duplicate outcome for %s", pair.Candidate)
		}
		Expect(d.Progress()).To(Equal(dig.Progress{Admitted: 51, InFlight: 0, Completed: 51}))
	})

	It("yields the same outcomes when digging again", NodeTimeout(10*time.Second), func(ctx context.Context) {
		words := append(wordlist(20), "www", "www", "ftp")
		digAll := func() map[dig.Pair]int {
			d, news := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(1000))))
			tally, done := collect(ctx, news)
			Expect(d.Dig(ctx, candidates.New(words, "example.com"))).Error().NotTo(HaveOccurred())
			Eventually(done).Should(BeClosed())
			return tally.Pairs()
		}
		first := digAll()
		Expect(first).To(HaveKeyWithValue(dig.Pair{Candidate: "www.example.com", Kind: types.Resolved}, 2))
		Expect(digAll()).To(Equal(first))
	})

	It("finishes immediately on empty wordlists", NodeTimeout(5*time.Second), func(ctx context.Context) {
		d, news := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(10))))
		report := Successful(d.Dig(ctx, candidates.New(nil, "example.com")))
		Expect(news).To(BeClosed())
		Expect(report.Admitted).To(BeZero())
		Expect(report.Delivered).To(BeZero())
		Expect(report.State).To(Equal(dig.Done))
	})

	It("digs only once", NodeTimeout(5*time.Second), func(ctx context.Context) {
		d, _ := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(10))))
		Expect(d.Dig(ctx, candidates.New(nil, "example.com"))).Error().NotTo(HaveOccurred())
		Expect(d.Dig(ctx, candidates.New(nil, "example.com"))).Error().To(MatchError(dig.ErrAlreadyDug))
	})

	It("reports skipped candidates", NodeTimeout(5*time.Second), func(ctx context.Context) {
		d, news := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(100))))
		_, done := collect(ctx, news)
		report := Successful(d.Dig(ctx,
			candidates.New([]string{"www", strings.Repeat("a", 250)}, "example.com")))
		Eventually(done).Should(BeClosed())
		Expect(report.Skipped).To(Equal(1))
		Expect(report.Admitted).To(Equal(1))
	})

	It("paces queries to the target rate", NodeTimeout(10*time.Second), func(ctx context.Context) {
		d, news := Successful2R(dig.New(resolveFixed(),
			Successful(ratelimit.New(20, ratelimit.WithBurst(1)))))
		_, done := collect(ctx, news)
		start := time.Now()
		report := Successful(d.Dig(ctx, candidates.New(wordlist(21), "example.com")))
		Eventually(done).Should(BeClosed())
		Expect(report.Delivered).To(Equal(21))
		Expect(time.Since(start)).To(BeNumerically(">=", 950*time.Millisecond))
	})

	It("does not wait for slow queries before admitting the next", NodeTimeout(10*time.Second), func(ctx context.Context) {
		var active, peak atomic.Int64
		resolver := dnsworker.ResolverFunc(func(ctx context.Context, _ string) ([]string, error) {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []string{"192.0.2.42"}, nil
		})
		d, news := Successful2R(dig.New(resolver, Successful(ratelimit.New(100))))
		_, done := collect(ctx, news)
		start := time.Now()
		report := Successful(d.Dig(ctx, candidates.New(wordlist(20), "example.com")))
		Eventually(done).Should(BeClosed())
		Expect(report.Kinds[types.Resolved]).To(Equal(20))
		Expect(peak.Load()).To(BeNumerically(">", 1))
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	})

	It("never exceeds the in-flight ceiling", NodeTimeout(10*time.Second), func(ctx context.Context) {
		var active, peak atomic.Int64
		resolver := dnsworker.ResolverFunc(func(ctx context.Context, _ string) ([]string, error) {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			return nil, dnsworker.ErrNotFound
		})
		d, news := Successful2R(dig.New(resolver, Successful(ratelimit.New(1000)), dig.WithMaxInFlight(3)))
		_, done := collect(ctx, news)
		report := Successful(d.Dig(ctx, candidates.New(wordlist(30), "example.com")))
		Eventually(done).Should(BeClosed())
		Expect(report.Kinds[types.NotFound]).To(Equal(30))
		Expect(peak.Load()).To(BeNumerically("<=", 3))
	})

	It("throttles admission when the consumer lags behind", NodeTimeout(10*time.Second), func(ctx context.Context) {
		ctx, cancel := context.WithCancel(ctx)
		d, _ := Successful2R(dig.New(resolveFixed(), Successful(ratelimit.New(1000)), dig.WithMaxInFlight(2)))
		reported := make(chan dig.Report, 1)
		go func() {
			defer GinkgoRecover()
			reported <- Successful(d.Dig(ctx, candidates.New(wordlist(100), "example.com")))
		}()
		Eventually(func() int { return d.Progress().Admitted }).Should(BeNumerically(">=", 2))
		Consistently(func() int { return d.Progress().Admitted }).
			Within(250 * time.Millisecond).Should(BeNumerically("<=", 4))

		cancel()
		var report dig.Report
		Eventually(reported).Within(2 * time.Second).Should(Receive(&report))
		Expect(report.Interrupted).To(BeTrue())
		Expect(report.Admitted).To(Equal(report.Delivered + report.Cancelled))
	})

	It("stops digging and closes the news when cancelled", NodeTimeout(10*time.Second), func(ctx context.Context) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		var started atomic.Int64
		d, news := Successful2R(dig.New(blockUntilCancelled(&started), Successful(ratelimit.New(50)),
			dig.WithTimeout(time.Minute)))
		tally, done := collect(context.Background(), news)

		reported := make(chan dig.Report, 1)
		go func() {
			defer GinkgoRecover()
			reported <- Successful(d.Dig(ctx, candidates.New(wordlist(1000), "example.com")))
		}()
		Eventually(started.Load).Should(BeNumerically(">=", 5))
		Expect(d.State()).To(Equal(dig.Running))

		By("cancelling the dig")
		cancelledAt := time.Now()
		cancel()
		var report dig.Report
		Eventually(reported).Within(time.Second).Should(Receive(&report))
		Expect(time.Since(cancelledAt)).To(BeNumerically("<", time.Second))
		Eventually(done).Should(BeClosed())

		Expect(report.Interrupted).To(BeTrue())
		Expect(report.State).To(Equal(dig.Done))
		Expect(report.Admitted).To(BeNumerically("<", 1000))
		Expect(report.Cancelled).To(Equal(report.Admitted))
		Expect(report.Delivered).To(BeZero())
		Expect(tally.Total()).To(BeZero())
	})

	When("digging a real nameserver", func() {

		var srv *test.DNSServer

		BeforeEach(func() {
			srv = Successful(test.NewDNSServer(test.Zone{
				A:      map[string][]string{"www.example.com": {"93.184.216.34"}},
				Silent: []string{"ghost.example.com"},
			}))
			DeferCleanup(func() { srv.Stop() })
		})

		It("resolves, misses, and times out", NodeTimeout(10*time.Second), func(ctx context.Context) {
			pool := Successful(dnsworker.New(ctx, 4, srv.Addr()))
			DeferCleanup(pool.Close)

			d, news := Successful2R(dig.New(pool, Successful(ratelimit.New(10)),
				dig.WithTimeout(time.Second)))
			var mu sync.Mutex
			order := []string{}
			tally := dig.NewTally()
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(tally.Track(ctx, news, func(o types.Outcome) {
					mu.Lock()
					defer mu.Unlock()
					order = append(order, o.Candidate)
				})).To(Succeed())
			}()

			start := time.Now()
			report := Successful(d.Dig(ctx,
				candidates.New([]string{"www", "mail", "ghost"}, "example.com")))
			Eventually(done).Should(BeClosed())
			Expect(time.Since(start)).To(BeNumerically("<", 3*time.Second))

			Expect(report.Kinds).To(Equal(map[types.Kind]int{
				types.Resolved: 1,
				types.NotFound: 1,
				types.TimedOut: 1,
			}))
			Expect(tally.Addresses("www.example.com")).To(ConsistOf("93.184.216.34"))
			Expect(tally.Names(types.NotFound)).To(ConsistOf("mail.example.com"))
			Expect(tally.Names(types.TimedOut)).To(ConsistOf("ghost.example.com"))
			mu.Lock()
			defer mu.Unlock()
			Expect(order[len(order)-1]).To(Equal("ghost.example.com"))
		})

	})

})

var _ = Describe("tallying outcomes", func() {

	It("keeps the multiset of outcomes", func() {
		t := dig.NewTally()
		t.Update(types.NewOutcome("www.example.com", types.Resolved, []string{"192.0.2.1"}, nil, 0))
		t.Update(types.NewOutcome("www.example.com", types.Resolved, []string{"192.0.2.1", "192.0.2.2"}, nil, 0))
		t.Update(types.NewOutcome("mail.example.com", types.NotFound, nil, nil, 0))
		Expect(t.Total()).To(Equal(3))
		Expect(t.Count(types.Resolved)).To(Equal(2))
		Expect(t.Count(types.TimedOut)).To(BeZero())
		Expect(t.Pairs()).To(Equal(map[dig.Pair]int{
			{Candidate: "www.example.com", Kind: types.Resolved}:  2,
			{Candidate: "mail.example.com", Kind: types.NotFound}: 1,
		}))
		Expect(t.Addresses("www.example.com")).To(Equal([]string{"192.0.2.1", "192.0.2.2"}))
		Expect(t.Addresses("mail.example.com")).To(BeNil())
	})

	It("stops tracking when the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(dig.NewTally().Track(ctx, make(chan types.Outcome))).To(MatchError(context.Canceled))
	})

})
