/*
Package ratelimit implements the query pacer of subdig: a token bucket that
admits queries at a fixed, operator-supplied rate.

The bucket refills continuously (fractional tokens included) instead of in
per-second jumps, so under steady load admissions are spaced 1/QPS apart, while
short bursts up to the bucket capacity are absorbed without exceeding the
long-run rate. The capacity defaults to one second's worth of tokens.

# Acknowledgements

Under its hood, [Limiter] leverages [golang.org/x/time/rate].

[golang.org/x/time/rate]: https://pkg.go.dev/golang.org/x/time/rate
*/
package ratelimit
