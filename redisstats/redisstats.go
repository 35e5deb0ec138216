// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package redisstats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/siemens/subdig/types"
)

// DefaultPrefix is the key prefix used unless told otherwise.
const DefaultPrefix = "subdig"

// Recorder records outcomes in Redis.
type Recorder struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RecorderOption can be passed to New when creating new [Recorder] objects.
type RecorderOption func(*Recorder)

// WithPrefix sets the key prefix, such as "subdig:example.com".
func WithPrefix(prefix string) RecorderOption {
	return func(r *Recorder) {
		if prefix = strings.Trim(prefix, ":"); prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithTTL lets the recorded keys expire after the specified duration since the
// last recorded outcome. Zero means that the keys never expire.
func WithTTL(ttl time.Duration) RecorderOption {
	return func(r *Recorder) { r.ttl = ttl }
}

// New returns a new Recorder using the specified Redis client.
func New(rdb *redis.Client, options ...RecorderOption) *Recorder {
	r := &Recorder{
		rdb:    rdb,
		prefix: DefaultPrefix,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Dial connects to the Redis server at addr ("host:port") and returns a new
// Recorder, after checking that the server is reachable.
func Dial(ctx context.Context, addr string, options ...RecorderOption) (*Recorder, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cannot reach redis at %s, reason: %w", addr, err)
	}
	return New(rdb, options...), nil
}

// Prefix returns the key prefix.
func (r *Recorder) Prefix() string { return r.prefix }

// Record the specified outcome.
func (r *Recorder) Record(ctx context.Context, o types.Outcome) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	totalKey := r.prefix + ":total"

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, o.Kind.String(), 1)
	keys := []string{totalKey}
	if o.Kind == types.Resolved {
		resolvedKey := r.prefix + ":resolved"
		addrsKey := r.prefix + ":addrs"
		pipe.SAdd(ctx, resolvedKey, o.Candidate)
		pipe.HSet(ctx, addrsKey, o.Candidate, strings.Join(o.Records, ","))
		keys = append(keys, resolvedKey, addrsKey)
	}
	if r.ttl > 0 {
		for _, key := range keys {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Totals returns the recorded number of outcomes per kind.
func (r *Recorder) Totals(ctx context.Context) (map[types.Kind]int64, error) {
	fields, err := r.rdb.HGetAll(ctx, r.prefix+":total").Result()
	if err != nil {
		return nil, err
	}
	totals := map[types.Kind]int64{}
	for _, kind := range types.Kinds {
		count, ok := fields[kind.String()]
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(count, &n); err != nil {
			return nil, fmt.Errorf("malformed %s count %q", kind, count)
		}
		totals[kind] = n
	}
	return totals, nil
}

// Resolved returns the recorded resolved names with their addresses.
func (r *Recorder) Resolved(ctx context.Context) (map[string][]string, error) {
	fields, err := r.rdb.HGetAll(ctx, r.prefix+":addrs").Result()
	if err != nil {
		return nil, err
	}
	resolved := make(map[string][]string, len(fields))
	for name, addrs := range fields {
		if addrs == "" {
			resolved[name] = nil
			continue
		}
		resolved[name] = strings.Split(addrs, ",")
	}
	return resolved, nil
}

// Reset removes all keys recorded under this Recorder's prefix.
func (r *Recorder) Reset(ctx context.Context) error {
	return r.rdb.Del(ctx, r.prefix+":total", r.prefix+":resolved", r.prefix+":addrs").Err()
}

// Close the Recorder's Redis client.
func (r *Recorder) Close() error {
	return r.rdb.Close()
}
