/*
Package dnsworker resolves candidate names into classified outcomes. It offers
the DNS-resolution capability in form of the [Resolver] interface, with
[ConnPool] as its implementation talking to a single name server over a
limited pool of DNS client connections, and [Resolve] as the resolution worker
classifying the result of a single lookup.

A lookup first queries the A records and then only if there are none the AAAA
records of a name, both within the same per-query timeout. No retries are ever
made, so that each admitted candidate costs a bounded and predictable number of
queries.

Usage

	pool, err := dnsworker.New(
	    context.Background(),
	    64,                   // max. number of parallel DNS connections
	    "127.0.0.1:53",       // address of server/resolver
	)
	defer pool.Close()
	outcome := dnsworker.Resolve(ctx, pool, "www.example.org", 5*time.Second)

If no name server is given explicitly, [SystemNameserver] picks the first one
from the system's resolver configuration.
*/
package dnsworker
