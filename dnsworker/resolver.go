// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// ErrNotFound signals that a name does not exist (NXDOMAIN), or that it exists
// but has no address records.
var ErrNotFound = errors.New("no such name")

// Resolver looks up the IPv4 and IPv6 addresses of a fully-qualified name.
// Implementations must honor the context's deadline and cancellation and then
// return the context's error. A name without addresses must be reported using
// an error wrapping [ErrNotFound].
type Resolver interface {
	LookupAddrs(ctx context.Context, fqdn string) ([]string, error)
}

// ResolverFunc adapts an ordinary function into a [Resolver].
type ResolverFunc func(ctx context.Context, fqdn string) ([]string, error)

// LookupAddrs calls f(ctx, fqdn).
func (f ResolverFunc) LookupAddrs(ctx context.Context, fqdn string) ([]string, error) {
	return f(ctx, fqdn)
}

// RcodeError reports a response with an rcode other than success or NXDOMAIN,
// such as SERVFAIL or REFUSED.
type RcodeError struct {
	Name  string
	Rcode int
}

func (e *RcodeError) Error() string {
	rcode, ok := dns.RcodeToString[e.Rcode]
	if !ok {
		rcode = fmt.Sprintf("RCODE%d", e.Rcode)
	}
	return fmt.Sprintf("query for %q answered with %s", e.Name, rcode)
}

// DefaultResolvConf is the location of the system's resolver configuration.
const DefaultResolvConf = "/etc/resolv.conf"

// SystemNameserver returns the "host:port" address of the first name server
// configured in the specified resolv.conf-style file.
func SystemNameserver(resolvconf string) (string, error) {
	cfg, err := dns.ClientConfigFromFile(resolvconf)
	if err != nil {
		return "", fmt.Errorf("cannot read system resolver configuration: %w", err)
	}
	if len(cfg.Servers) == 0 {
		return "", fmt.Errorf("no name servers configured in %s", resolvconf)
	}
	port := cfg.Port
	if port == "" {
		port = "53"
	}
	return net.JoinHostPort(cfg.Servers[0], port), nil
}
