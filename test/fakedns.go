// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package test

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// Zone describes how a [DNSServer] answers queries for individual names. Names
// are given without trailing dot and matched case-insensitively.
type Zone struct {
	A       map[string][]string      // IPv4 addresses per name.
	AAAA    map[string][]string      // IPv6 addresses per name.
	NoData  []string                 // names that exist, but without address records.
	Silent  []string                 // names never answered, so queries time out.
	Rcode   map[string]int           // names answered with a specific rcode.
	Delay   map[string]time.Duration // names answered only after a delay.
	Default int                      // rcode for all other names; zero means NXDOMAIN.

	// TCPIdleTimeout closes TCP connections idle for longer; zero means
	// miekg/dns' default of 8s.
	TCPIdleTimeout time.Duration
}

// DNSServer is an in-process DNS server answering from a static [Zone]. It
// serves UDP and TCP on the same loopback port.
type DNSServer struct {
	zone    Zone
	udp     *dns.Server
	tcp     *dns.Server
	addr    string
	queries atomic.Int64
	mu      sync.Mutex
	seen    map[string]int
}

// NewDNSServer starts a new in-process DNS server on a random loopback port,
// answering from the specified zone. Callers must Stop the server after use.
func NewDNSServer(zone Zone) (*DNSServer, error) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", pc.LocalAddr().String())
	if err != nil {
		pc.Close()
		return nil, err
	}
	s := &DNSServer{
		zone: zone,
		addr: pc.LocalAddr().String(),
		seen: map[string]int{},
	}
	started := make(chan struct{}, 2)
	notify := func() { started <- struct{}{} }
	s.udp = &dns.Server{PacketConn: pc, Handler: s, NotifyStartedFunc: notify}
	s.tcp = &dns.Server{Listener: l, Handler: s, NotifyStartedFunc: notify}
	if idle := zone.TCPIdleTimeout; idle > 0 {
		s.tcp.IdleTimeout = func() time.Duration { return idle }
	}
	go func() { _ = s.udp.ActivateAndServe() }()
	go func() { _ = s.tcp.ActivateAndServe() }()
	<-started
	<-started
	return s, nil
}

// Addr returns the "host:port" address the server listens on.
func (s *DNSServer) Addr() string { return s.addr }

// Queries returns the total number of queries received so far.
func (s *DNSServer) Queries() int64 { return s.queries.Load() }

// QueriesFor returns the number of queries received for the specified name,
// regardless of query type.
func (s *DNSServer) QueriesFor(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[strings.ToLower(strings.TrimSuffix(name, "."))]
}

// Stop the server and release its sockets.
func (s *DNSServer) Stop() {
	_ = s.udp.Shutdown()
	_ = s.tcp.Shutdown()
}

// ServeDNS answers a single query from the zone.
func (s *DNSServer) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	s.queries.Add(1)
	if len(req.Question) != 1 {
		m := new(dns.Msg)
		m.SetRcode(req, dns.RcodeFormatError)
		_ = w.WriteMsg(m)
		return
	}
	q := req.Question[0]
	name := strings.ToLower(strings.TrimSuffix(q.Name, "."))
	s.mu.Lock()
	s.seen[name]++
	s.mu.Unlock()

	if contains(s.zone.Silent, name) {
		return
	}
	if d, ok := s.zone.Delay[name]; ok {
		time.Sleep(d)
	}
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true
	if rcode, ok := s.zone.Rcode[name]; ok {
		m.Rcode = rcode
		_ = w.WriteMsg(m)
		return
	}
	v4, has4 := s.zone.A[name]
	v6, has6 := s.zone.AAAA[name]
	switch {
	case has4 || has6 || contains(s.zone.NoData, name):
		switch q.Qtype {
		case dns.TypeA:
			for _, addr := range v4 {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP(addr).To4(),
				})
			}
		case dns.TypeAAAA:
			for _, addr := range v6 {
				m.Answer = append(m.Answer, &dns.AAAA{
					Hdr:  dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60},
					AAAA: net.ParseIP(addr),
				})
			}
		}
	case s.zone.Default != 0:
		m.Rcode = s.zone.Default
	default:
		m.Rcode = dns.RcodeNameError
	}
	_ = w.WriteMsg(m)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
