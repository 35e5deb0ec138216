// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package redisstats

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/siemens/subdig/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// RedisAddrEnv names the environment variable with the address of a Redis
// server to test against.
const RedisAddrEnv = "SUBDIG_REDIS_ADDR"

var _ = Describe("recording outcomes in redis", func() {

	It("uses sane key prefixes", func() {
		Expect(New(nil).Prefix()).To(Equal(DefaultPrefix))
		Expect(New(nil, WithPrefix(":subdig:example.com:")).Prefix()).To(Equal("subdig:example.com"))
		Expect(New(nil, WithPrefix("::")).Prefix()).To(Equal(DefaultPrefix))
	})

	It("ignores recording without client", func(ctx context.Context) {
		var r *Recorder
		Expect(r.Record(ctx, types.NewOutcome("www.example.com", types.Resolved, nil, nil, 0))).To(Succeed())
		Expect(New(nil).Record(ctx, types.NewOutcome("www.example.com", types.Resolved, nil, nil, 0))).To(Succeed())
	})

	It("fails to dial unreachable servers", NodeTimeout(10*time.Second), func(ctx context.Context) {
		Expect(Dial(ctx, "127.0.0.1:1")).Error().To(HaveOccurred())
	})

	When("talking to a redis server", func() {

		var rec *Recorder
		var mr *miniredis.Miniredis // nil when testing against a real server.

		BeforeEach(func(ctx context.Context) {
			mr = nil
			addr := os.Getenv(RedisAddrEnv)
			if addr == "" {
				mr = Successful(miniredis.Run())
				DeferCleanup(mr.Close)
				addr = mr.Addr()
			}
			rec = Successful(Dial(ctx, addr,
				WithPrefix(fmt.Sprintf("subdig-test:%d", GinkgoRandomSeed())),
				WithTTL(time.Minute)))
			DeferCleanup(func(ctx context.Context) {
				Expect(rec.Reset(ctx)).To(Succeed())
				Expect(rec.Close()).To(Succeed())
			})
		})

		It("counts kinds and keeps resolved names", func(ctx context.Context) {
			for _, o := range []types.Outcome{
				types.NewOutcome("www.example.com", types.Resolved, []string{"192.0.2.1", "192.0.2.2"}, nil, 0),
				types.NewOutcome("mail.example.com", types.NotFound, nil, nil, 0),
				types.NewOutcome("ftp.example.com", types.NotFound, nil, nil, 0),
				types.NewOutcome("ghost.example.com", types.TimedOut, nil, nil, 0),
			} {
				Expect(rec.Record(ctx, o)).To(Succeed())
			}
			Expect(rec.Totals(ctx)).To(Equal(map[types.Kind]int64{
				types.Resolved: 1,
				types.NotFound: 2,
				types.TimedOut: 1,
			}))
			Expect(rec.Resolved(ctx)).To(Equal(map[string][]string{
				"www.example.com": {"192.0.2.1", "192.0.2.2"},
			}))
			Expect(rec.rdb.SMembers(ctx, rec.Prefix()+":resolved").Result()).
				To(ConsistOf("www.example.com"))
			Expect(rec.rdb.TTL(ctx, rec.Prefix()+":total").Result()).
				To(BeNumerically(">", time.Duration(0)))
		})

		It("lets recorded keys expire", func(ctx context.Context) {
			if mr == nil {
				Skip("needs an in-process redis server to fast-forward time")
			}
			Expect(rec.Record(ctx, types.NewOutcome("www.example.com", types.Resolved, []string{"192.0.2.1"}, nil, 0))).To(Succeed())
			Expect(mr.TTL(rec.Prefix() + ":resolved")).To(Equal(time.Minute))
			mr.FastForward(2 * time.Minute)
			Expect(rec.Totals(ctx)).To(BeEmpty())
			Expect(rec.Resolved(ctx)).To(BeEmpty())
		})

		It("rejects malformed counts", func(ctx context.Context) {
			Expect(rec.rdb.HSet(ctx, rec.Prefix()+":total", types.NotFound.String(), "lots").Err()).To(Succeed())
			Expect(rec.Totals(ctx)).Error().To(MatchError(ContainSubstring("malformed")))
		})

		It("shares a client", func(ctx context.Context) {
			other := New(rec.rdb, WithPrefix(rec.Prefix()))
			Expect(other.Record(ctx, types.NewOutcome("www.example.com", types.Resolved, nil, nil, 0))).To(Succeed())
			Expect(rec.Totals(ctx)).To(HaveKeyWithValue(types.Resolved, int64(1)))
			Expect(rec.Resolved(ctx)).To(HaveKeyWithValue("www.example.com", BeNil()))
		})

	})

})
