/*
Package redisstats records dig outcomes in Redis: per-kind counters and the set
of resolved names together with their addresses. This allows multiple digs to
share their findings, as well as other tools to pick them up.

For a key prefix "subdig:example.com" the following keys are used:
  - "subdig:example.com:total", a hash of outcome kind names to counts.
  - "subdig:example.com:resolved", the set of resolved names.
  - "subdig:example.com:addrs", a hash of resolved names to their
    comma-separated addresses.
*/
package redisstats
