/*
Package types defines subdig's information model. Which is rather simple and
revolves around the [Outcome] of resolving a single candidate name and the
[Kind] classifying it.

Outcomes are passed by value through channels from the resolution workers to
whoever consumes the result stream. Outcomes thus behave as immutable values:
they offer no setters and [NewOutcome] copies the resolved records so that no
two goroutines ever share the same backing array. This avoids a locking mess as
well as tons of subtle bugs.
*/
package types
