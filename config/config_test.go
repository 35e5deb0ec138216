// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package config

import (
	"math"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

func valid() Engine {
	e := Defaults()
	e.Wordlist = "subdomains.txt"
	e.Target = "example.com"
	return e
}

var _ = Describe("engine configuration", func() {

	It("has sensible defaults", func() {
		e := Defaults()
		Expect(e.QPS).To(Equal(10.0))
		Expect(e.Timeout).To(Equal(5 * time.Second))
		Expect(e.Network).To(Equal("udp"))
		Expect(e.Burst).To(BeZero())
		Expect(e.MaxInFlight).To(BeZero())
	})

	It("validates and normalizes", func() {
		e := valid()
		e.Target = "Example.COM."
		e.Nameserver = "192.0.2.53"
		e.Network = ""
		Expect(e.Validate()).To(Succeed())
		Expect(e.Target).To(Equal("Example.COM"))
		Expect(e.Nameserver).To(Equal("192.0.2.53:53"))
		Expect(e.Network).To(Equal("udp"))
	})

	DescribeTable("rejecting invalid configurations",
		func(mod func(*Engine)) {
			e := valid()
			mod(&e)
			Expect(e.Validate()).To(MatchError(ErrInvalid))
		},
		Entry("no wordlist", func(e *Engine) { e.Wordlist = "" }),
		Entry("no target", func(e *Engine) { e.Target = " " }),
		Entry("bad target", func(e *Engine) { e.Target = "exa..mple.com" }),
		Entry("zero qps", func(e *Engine) { e.QPS = 0 }),
		Entry("negative qps", func(e *Engine) { e.QPS = -1 }),
		Entry("NaN qps", func(e *Engine) { e.QPS = math.NaN() }),
		Entry("negative burst", func(e *Engine) { e.Burst = -1 }),
		Entry("zero timeout", func(e *Engine) { e.Timeout = 0 }),
		Entry("negative ceiling", func(e *Engine) { e.MaxInFlight = -1 }),
		Entry("bad transport", func(e *Engine) { e.Network = "quic" }),
		Entry("bad name server", func(e *Engine) { e.Nameserver = "ns.example.com" }),
		Entry("bad port", func(e *Engine) { e.Nameserver = "192.0.2.53:dns" }),
	)

	DescribeTable("normalizing name server addresses",
		func(addr, expected string) {
			Expect(NormalizeNameserver(addr)).To(Equal(expected))
		},
		Entry(nil, "192.0.2.53", "192.0.2.53:53"),
		Entry(nil, "192.0.2.53:5353", "192.0.2.53:5353"),
		Entry(nil, "2001:db8::53", "[2001:db8::53]:53"),
		Entry(nil, "[2001:db8::53]", "[2001:db8::53]:53"),
		Entry(nil, "[2001:db8::53]:5353", "[2001:db8::53]:5353"),
		Entry(nil, "ns.example.com:53", "ns.example.com:53"),
	)

	When("loading YAML files", func() {

		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		write := func(content string) string {
			path := filepath.Join(dir, "subdig.yaml")
			Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
			return path
		}

		It("overrides only what is present", func() {
			path := write(`
target: example.org
qps: 25.5
timeout: 1500ms
network: tcp
`)
			e := Successful(Load(path, Defaults()))
			Expect(e.Target).To(Equal("example.org"))
			Expect(e.QPS).To(Equal(25.5))
			Expect(e.Timeout).To(Equal(1500 * time.Millisecond))
			Expect(e.Network).To(Equal("tcp"))
			Expect(e.Burst).To(BeZero())
			Expect(e.Wordlist).To(BeEmpty())
		})

		It("rejects malformed files", func() {
			path := write("qps: [1, 2")
			Expect(Load(path, Defaults())).Error().To(MatchError(ErrInvalid))
		})

		It("reports missing files", func() {
			_, err := Load(filepath.Join(dir, "nada.yaml"), Defaults())
			Expect(err).To(MatchError(os.ErrNotExist))
			Expect(err).NotTo(MatchError(ErrInvalid))
		})

	})

})
