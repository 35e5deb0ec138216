// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// DefaultMaxIdle is the maximum time a pooled TCP connection may stay unused
// before it gets redialed. Name servers close idle TCP connections after a few
// seconds; miekg/dns servers, for instance, after 8s.
const DefaultMaxIdle = 4 * time.Second

// ConnPool is a (size-limited) pool of DNS client connections talking with the
// same DNS resolver address. It implements [Resolver].
type ConnPool struct {
	addr    string
	network string
	netns   relations.Relation // network namespace to dial in, or nil.
	free    chan *pooledConn   // free connections; nil entries are yet undialed.
	size    int
	maxIdle time.Duration
	once    sync.Once
}

// pooledConn is a DNS client connection together with the time it was last
// used.
type pooledConn struct {
	*dns.Conn
	used time.Time
}

// ConnPoolOption can be passed to New when creating new [ConnPool] objects.
type ConnPoolOption func(*ConnPool)

var _ Resolver = (*ConnPool)(nil)

// New returns a pool of up to the specified size of DNS client connections,
// all talking to the same DNS resolver address. The number of pool connections
// limits the number of concurrent lookups; further lookups wait until a
// connection becomes free again.
//
// Only the first connection is dialed immediately, using the passed context,
// so that an unusable address or network namespace gets reported early. The
// remaining connections are dialed on demand.
//
// To operate a ConnPool in a network namespace different to that of the
// OS-level thread of the caller specify the [InNetworkNamespace] option and
// pass it a filesystem path that must reference a network namespace (such as
// "/proc/666/ns/net").
func New(ctx context.Context, size int, addr string, options ...ConnPoolOption) (*ConnPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("connection pool size must be at least 1, got %d", size)
	}
	p := &ConnPool{
		addr:    addr,
		network: "udp",
		free:    make(chan *pooledConn, size),
		size:    size,
		maxIdle: DefaultMaxIdle,
	}
	for _, opt := range options {
		opt(p)
	}
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.free <- &pooledConn{Conn: conn, used: time.Now()}
	for i := 1; i < size; i++ {
		p.free <- nil
	}
	return p, nil
}

// InNetworkNamespace optionally runs a ConnPool inside the network namespace
// referenced by the specified filesystem path. An empty path leaves the pool
// in the caller's network namespace.
func InNetworkNamespace(netnsref string) ConnPoolOption {
	return func(p *ConnPool) {
		if netnsref == "" {
			return
		}
		p.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// WithNetwork sets the transport to use, either "udp" (default) or "tcp".
func WithNetwork(network string) ConnPoolOption {
	return func(p *ConnPool) {
		if network != "" {
			p.network = network
		}
	}
}

// WithMaxIdle sets the maximum time a pooled TCP connection may stay unused
// before it gets redialed. Zero keeps idle TCP connections indefinitely,
// relying only on redialing after the name server dropped them.
func WithMaxIdle(idle time.Duration) ConnPoolOption {
	return func(p *ConnPool) {
		if idle >= 0 {
			p.maxIdle = idle
		}
	}
}

// Addr returns the resolver address this pool talks to.
func (p *ConnPool) Addr() string { return p.addr }

// Size returns the maximum number of pool connections.
func (p *ConnPool) Size() int { return p.size }

// dial a new DNS client connection, switching into the pool's network
// namespace if necessary. Once dialed, the connection stays attached to that
// namespace.
func (p *ConnPool) dial(ctx context.Context) (*dns.Conn, error) {
	dnsclnt := dns.Client{Net: p.network}
	dial := func() interface{} {
		conn, err := dnsclnt.DialContext(ctx, p.addr)
		if err != nil {
			return err
		}
		return conn
	}
	var res interface{}
	if p.netns != nil {
		var err error
		res, err = ops.Execute(dial, p.netns)
		if err != nil {
			return nil, err
		}
	} else {
		res = dial()
	}
	switch r := res.(type) {
	case *dns.Conn:
		return r, nil
	case error:
		return nil, fmt.Errorf("cannot dial name server %s: %w", p.addr, r)
	}
	return nil, fmt.Errorf("cannot dial name server %s", p.addr)
}

// LookupAddrs looks up the IPv4 addresses of the specified name and, only if
// there are none, its IPv6 addresses. It waits for a free pool connection
// first. The overall lookup is bounded by the context's deadline; cancelling
// the context aborts an in-flight query.
//
// NXDOMAIN answers as well as names without any address records are reported
// as [ErrNotFound]; other non-successful rcodes as [*RcodeError].
func (p *ConnPool) LookupAddrs(ctx context.Context, fqdn string) ([]string, error) {
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return nil, fmt.Errorf("invalid domain name %q", fqdn)
	}
	var pc *pooledConn
	select {
	case pc = <-p.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if pc != nil && p.stale(pc) {
		log.Debugf("redialing idle %s connection to %s", p.network, p.addr)
		pc.Close()
		pc = nil
	}
	reused := pc != nil
	if !reused {
		var err error
		if pc, err = p.redial(ctx); err != nil {
			p.free <- nil
			return nil, err
		}
	}
	addrs, healthy, err := p.lookup(ctx, pc.Conn, dns.Fqdn(fqdn))
	if reused && p.network == "tcp" && dropped(err) && ctx.Err() == nil {
		// The name server closed the connection before our query got through,
		// so the query was never answered: send it on a fresh connection.
		log.Debugf("%s connection to %s dropped by server, redialing", p.network, p.addr)
		pc.Close()
		if pc, err = p.redial(ctx); err != nil {
			p.free <- nil
			return nil, err
		}
		addrs, healthy, err = p.lookup(ctx, pc.Conn, dns.Fqdn(fqdn))
	}
	// A connection that saw a transport failure or got closed due to the
	// context gets replaced by a fresh one upon next use.
	if !healthy {
		pc.Close()
		p.free <- nil
		return addrs, err
	}
	pc.used = time.Now()
	p.free <- pc
	return addrs, err
}

// redial returns a freshly dialed pool connection.
func (p *ConnPool) redial(ctx context.Context) (*pooledConn, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	return &pooledConn{Conn: conn, used: time.Now()}, nil
}

// stale returns true if the pooled connection is a TCP connection that has
// been idle for too long.
func (p *ConnPool) stale(pc *pooledConn) bool {
	return p.network == "tcp" && p.maxIdle > 0 && time.Since(pc.used) > p.maxIdle
}

// dropped returns true if the error indicates that the peer closed or reset
// the connection.
func dropped(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// lookup runs the A and (if necessary) AAAA queries on the specified
// connection. It additionally returns whether the connection is still usable.
func (p *ConnPool) lookup(ctx context.Context, conn *dns.Conn, fqdn string) (addrs []string, healthy bool, err error) {
	// While the queries are running, we need to monitor the context in case it
	// becomes "done" by either getting cancelled or reaching its deadline. We
	// then close the connection, as this reliably unblocks any read. The stop
	// channel works "the other way round" in the sense that it terminates the
	// concurrent context monitoring, and closed reports back whether the
	// monitor had to close the connection.
	stop := make(chan struct{})
	closed := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
			closed <- true
		case <-stop:
			closed <- false
		}
	}()
	defer func() {
		close(stop)
		if <-closed {
			healthy = false
		}
	}()

	deadline, hasDeadline := ctx.Deadline()
	for _, addrType := range []uint16{dns.TypeA, dns.TypeAAAA} {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		dnsclnt := dns.Client{Net: p.network}
		if hasDeadline {
			dnsclnt.Timeout = time.Until(deadline)
			if dnsclnt.Timeout <= 0 {
				return nil, true, context.DeadlineExceeded
			}
		}
		msg := dns.Msg{}
		msg.SetQuestion(fqdn, addrType)
		var r *dns.Msg
		r, _, err = dnsclnt.ExchangeWithConn(&msg, conn)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, false, cerr
			}
			var neterr interface{ Timeout() bool }
			if errors.As(err, &neterr) && neterr.Timeout() {
				return nil, false, context.DeadlineExceeded
			}
			return nil, false, err
		}
		switch r.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, true, fmt.Errorf("%w: %s", ErrNotFound, fqdn)
		default:
			return nil, true, &RcodeError{Name: fqdn, Rcode: r.Rcode}
		}
		for _, rr := range r.Answer {
			switch addrRR := rr.(type) {
			case *dns.A:
				addrs = append(addrs, addrRR.A.String())
			case *dns.AAAA:
				addrs = append(addrs, addrRR.AAAA.String())
			}
		}
		if len(addrs) > 0 {
			return addrs, true, nil
		}
	}
	return nil, true, fmt.Errorf("%w: %s has no address records", ErrNotFound, fqdn)
}

// Close waits for all in-flight lookups to release their connections and then
// closes all pool connections. Close must not be called while new lookups are
// still being started.
func (p *ConnPool) Close() {
	p.once.Do(func() {
		for i := 0; i < p.size; i++ {
			if pc := <-p.free; pc != nil {
				pc.Close()
			}
		}
	})
}
