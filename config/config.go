// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by all configuration validation errors.
var ErrInvalid = errors.New("invalid configuration")

// Built-in defaults.
const (
	DefaultQPS     = 10.0
	DefaultTimeout = 5 * time.Second
	DefaultNetwork = "udp"
	DNSPort        = "53"
)

// Engine configures a subdomain dig.
type Engine struct {
	Wordlist    string        `yaml:"subdomains"`
	Target      string        `yaml:"target"`
	Nameserver  string        `yaml:"ns"`
	QPS         float64       `yaml:"qps"`
	Burst       int           `yaml:"burst"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxInFlight int           `yaml:"max-inflight"`
	Network     string        `yaml:"network"`
	NetNS       string        `yaml:"netns"`
	Debug       bool          `yaml:"debug"`
	Redis       string        `yaml:"redis"`
}

// Defaults returns the built-in default configuration. Wordlist and target
// have no defaults; an empty name server means the system's name server.
func Defaults() Engine {
	return Engine{
		QPS:     DefaultQPS,
		Timeout: DefaultTimeout,
		Network: DefaultNetwork,
	}
}

// Load the YAML configuration file at path on top of the specified base
// configuration. Fields not present in the file keep their base values.
func Load(path string, base Engine) (Engine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("cannot read configuration, reason: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return base, fmt.Errorf("%w: malformed configuration file %q, reason: %s",
			ErrInvalid, path, err.Error())
	}
	return cfg, nil
}

// Validate the configuration, normalizing the name server address and the
// target domain in place.
func (e *Engine) Validate() error {
	if e.Wordlist == "" {
		return fmt.Errorf("%w: missing subdomains wordlist", ErrInvalid)
	}
	target := strings.TrimSuffix(strings.TrimSpace(e.Target), ".")
	if target == "" {
		return fmt.Errorf("%w: missing target domain", ErrInvalid)
	}
	if _, ok := dns.IsDomainName(target); !ok {
		return fmt.Errorf("%w: invalid target domain %q", ErrInvalid, e.Target)
	}
	e.Target = target
	if math.IsNaN(e.QPS) || math.IsInf(e.QPS, 0) || e.QPS <= 0 {
		return fmt.Errorf("%w: queries per second must be positive, got %g", ErrInvalid, e.QPS)
	}
	if e.Burst < 0 {
		return fmt.Errorf("%w: burst must not be negative, got %d", ErrInvalid, e.Burst)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, e.Timeout)
	}
	if e.MaxInFlight < 0 {
		return fmt.Errorf("%w: max in-flight queries must not be negative, got %d",
			ErrInvalid, e.MaxInFlight)
	}
	switch e.Network {
	case "":
		e.Network = DefaultNetwork
	case "udp", "tcp":
	default:
		return fmt.Errorf("%w: transport must be udp or tcp, got %q", ErrInvalid, e.Network)
	}
	if e.Nameserver != "" {
		ns, err := NormalizeNameserver(e.Nameserver)
		if err != nil {
			return err
		}
		e.Nameserver = ns
	}
	return nil
}

// NormalizeNameserver returns the name server address in "host:port" form,
// adding the DNS port 53 to bare IP addresses.
func NormalizeNameserver(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if ip := net.ParseIP(strings.Trim(addr, "[]")); ip != nil {
		return net.JoinHostPort(ip.String(), DNSPort), nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: malformed name server address %q", ErrInvalid, addr)
	}
	if host == "" {
		return "", fmt.Errorf("%w: name server address %q lacks host", ErrInvalid, addr)
	}
	if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
		return "", fmt.Errorf("%w: invalid port in name server address %q", ErrInvalid, addr)
	}
	return net.JoinHostPort(host, port), nil
}
