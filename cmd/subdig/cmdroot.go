// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siemens/subdig/config"

	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

// flags holds the command-line flag values; they only take precedence over a
// configuration file when they have been explicitly set.
type flags struct {
	subdomains   *string
	target       *string
	ns           *string
	qps          *float64
	burst        *int
	timeout      *time.Duration
	maxInFlight  *int
	tcp          *bool
	netns        *string
	debug        *bool
	redis        *string
	configPath   *string
	resolvedOnly *bool
	noColor      *bool
}

func newRootCmd() (rootCmd *cobra.Command) {
	var f flags
	var cfg config.Engine
	rootCmd = &cobra.Command{
		Use:          "subdig [flags]",
		Short:        "subdig enumerates subdomains of a target domain by resolving names from a wordlist at a fixed rate",
		Version:      "0.9",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = f.engine(cmd)
			if err != nil {
				return err
			}
			if cfg.Debug {
				log.SetLevel(log.DebugLevel)
				log.Debugf("debug logging enabled")
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return Enumerate(ctx, cfg, &sink{
				out:          cmd.OutOrStdout(),
				resolvedOnly: *f.resolvedOnly,
				colored:      !*f.noColor && colorful(cmd.OutOrStdout()),
			}, cmd.ErrOrStderr())
		},
	}
	defaults := config.Defaults()
	// Sets up the flags.
	pf := rootCmd.PersistentFlags()
	f.subdomains = pf.StringP("subdomains", "s", "", "path to the wordlist with subdomain names, one per line")
	f.target = pf.StringP("target", "t", "", "target domain, such as \"example.com\"")
	f.ns = pf.StringP("ns", "n", "", "name server \"IP[:port]\" (default: first name server from /etc/resolv.conf)")
	f.qps = pf.Float64P("qps", "q", defaults.QPS, "queries per second")
	f.debug = pf.BoolP("debug", "d", false, "enable debugging output and progress status")
	f.burst = pf.Int("burst", 0, "maximum burst of queries (default: one second's worth)")
	f.timeout = pf.Duration("timeout", defaults.Timeout, "per-query timeout")
	f.maxInFlight = pf.Int("max-inflight", 0, "maximum number of queries in flight (default: derived from rate and timeout)")
	f.tcp = pf.Bool("tcp", false, "query the name server over TCP instead of UDP")
	f.netns = pf.String("netns", "", "path of the network namespace to query from, such as /proc/PID/ns/net")
	f.redis = pf.String("redis", "", "also record outcomes in the Redis server at \"host:port\"")
	f.configPath = pf.String("config", "", "path to YAML configuration file")
	f.resolvedOnly = pf.Bool("resolved-only", false, "show only resolved names")
	f.noColor = pf.Bool("no-color", false, "disable colored output")
	return
}

// engine returns the engine configuration from the built-in defaults, an
// optional configuration file, and the explicitly set flags, in this order.
func (f *flags) engine(cmd *cobra.Command) (config.Engine, error) {
	cfg := config.Defaults()
	if *f.configPath != "" {
		var err error
		cfg, err = config.Load(*f.configPath, cfg)
		if err != nil {
			return cfg, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("subdomains") {
		cfg.Wordlist = *f.subdomains
	}
	if changed("target") {
		cfg.Target = *f.target
	}
	if changed("ns") {
		cfg.Nameserver = *f.ns
	}
	if changed("qps") {
		cfg.QPS = *f.qps
	}
	if changed("burst") {
		cfg.Burst = *f.burst
	}
	if changed("timeout") {
		cfg.Timeout = *f.timeout
	}
	if changed("max-inflight") {
		cfg.MaxInFlight = *f.maxInFlight
	}
	if changed("tcp") {
		cfg.Network = "udp"
		if *f.tcp {
			cfg.Network = "tcp"
		}
	}
	if changed("netns") {
		cfg.NetNS = *f.netns
	}
	if changed("debug") {
		cfg.Debug = *f.debug
	}
	if changed("redis") {
		cfg.Redis = *f.redis
	}
	return cfg, nil
}
