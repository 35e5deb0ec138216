/*
Package dig implements the subdomain digger: it resolves a sequence of
candidate names at a fixed target rate of queries per second, concurrently, and
streams the classified outcomes.

	              +--------+        +-------------+
	candidates -->| Digger +--ch--->| consumer(s) |
	              +--------+        +-------------+
	               |      ^
	         pacing|      |worker slots
	               v      |
	        ratelimit   workerpool --> dnsworker.Resolve

The [Digger] admits one candidate after another, in order, only after the rate
limiter granted permission. It never waits for a query to finish before
admitting the next one, except when the in-flight ceiling has been reached.
This ceiling is a resource-safety backstop only: it defaults to a value
generous enough that the rate limiter stays the throttle. Outcomes arrive in
the order the queries complete, not in the order the candidates were admitted.

Admission rate and in-flight limit are enforced independently: the rate limiter
paces, while a worker slot is held for each admitted query until its outcome
has been handed over to the consumer.

A [Tally] consumes the outcome stream, keeping the multiset of outcomes.

# Acknowledgements

Under its hood, [Digger] leverages [gammazero/workerpool] as the limiting
goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package dig
