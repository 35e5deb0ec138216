// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/siemens/subdig/candidates"
	"github.com/siemens/subdig/config"
	"github.com/siemens/subdig/dig"
	"github.com/siemens/subdig/dnsworker"
	"github.com/siemens/subdig/ratelimit"
	"github.com/siemens/subdig/redisstats"
	"github.com/siemens/subdig/types"

	"github.com/thediveo/lxkns/log"
	"golang.org/x/sync/errgroup"
)

// statusInterval is the update interval of the debug status line.
const statusInterval = 100 * time.Millisecond

// Enumerate the subdomains of the configured target domain, printing the
// outcomes to the specified sink. The configuration must have been validated.
// Enumerate returns an error only when it cannot start digging; an interrupted
// dig isn't an error.
func Enumerate(ctx context.Context, cfg config.Engine, out *sink, errout io.Writer) error {
	words, err := candidates.LoadWordlist(cfg.Wordlist)
	if err != nil {
		return err
	}
	log.Debugf("loaded %d wordlist entries from %s", len(words), cfg.Wordlist)

	ns := cfg.Nameserver
	if ns == "" {
		ns, err = dnsworker.SystemNameserver(dnsworker.DefaultResolvConf)
		if err != nil {
			return fmt.Errorf("no name server given and %w", err)
		}
		log.Debugf("using system name server %s", ns)
	}

	limiter, err := ratelimit.New(cfg.QPS, ratelimit.WithBurst(cfg.Burst))
	if err != nil {
		return err
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight == 0 {
		maxInFlight = dig.DefaultMaxInFlight(limiter.QPS(), limiter.Burst(), cfg.Timeout)
	}

	// Now lets put the required processing elements and their plumbing in
	// place.
	//
	//   - ConnPool resolving names using a single name server.
	//   - Digger pacing the candidates and producing outcomes.
	//   - Tally consuming the outcomes and passing them on to the sink and
	//     optionally to Redis.
	pool, err := dnsworker.New(ctx, maxInFlight, ns,
		dnsworker.WithNetwork(cfg.Network),
		dnsworker.InNetworkNamespace(cfg.NetNS))
	if err != nil {
		return fmt.Errorf("cannot talk to name server %s, reason: %w", ns, err)
	}
	defer pool.Close()

	digger, news, err := dig.New(pool, limiter,
		dig.WithTimeout(cfg.Timeout),
		dig.WithMaxInFlight(maxInFlight))
	if err != nil {
		return fmt.Errorf("cannot dig, reason: %w", err)
	}

	consumers := []func(types.Outcome){out.Print}
	if cfg.Redis != "" {
		rec, err := redisstats.Dial(ctx, cfg.Redis, redisstats.WithPrefix(redisstats.DefaultPrefix+":"+cfg.Target))
		if err != nil {
			return err
		}
		defer rec.Close()
		consumers = append(consumers, func(o types.Outcome) {
			if err := rec.Record(context.Background(), o); err != nil {
				log.Warnf("cannot record %s in redis: %s", o.Candidate, err.Error())
			}
		})
	}

	var status *statusLine
	if cfg.Debug {
		status = newStatusLine(errout, digger, len(words))
		status.Start(statusInterval)
	}

	// The tally only stops after the digger has closed the news channel, so
	// that it doesn't miss the last outcomes when we've been interrupted.
	tally := dig.NewTally()
	var report dig.Report
	var g errgroup.Group
	g.Go(func() error {
		return tally.Track(context.Background(), news, consumers...)
	})
	g.Go(func() error {
		var err error
		report, err = digger.Dig(ctx, candidates.New(words, cfg.Target,
			candidates.WithSkipNotifier(func(entry string) {
				log.Warnf("skipping %q: name too long", entry)
			})))
		return err
	})
	err = g.Wait()
	if status != nil {
		status.Stop()
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(errout, "Completed")
	log.Infof("%s: %d candidates in %s: %d resolved, %d not found, %d timed out, %d errors, %d cancelled, %d skipped",
		cfg.Target, report.Admitted, report.Elapsed.Round(time.Millisecond),
		tally.Count(types.Resolved), tally.Count(types.NotFound),
		tally.Count(types.TimedOut), tally.Count(types.Failed),
		report.Cancelled, report.Skipped)
	if report.Interrupted {
		log.Warnf("interrupted, not all candidates have been dug")
	}
	return nil
}
