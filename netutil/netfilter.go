// Package netutil hardens the package fetcher's network path: SSRF
// filtering, DNS pinning, size-limited downloads, retrying transport
// and TLS defaults.
package netutil

import (
	"context"
	"net"
	"time"
)

// ValidationResult is the outcome of an address check.
type ValidationResult struct {
	Allowed bool
	Reason  string
}

type netfilterConfig struct {
	blockPrivate   bool
	blockLocalhost bool
	resolveDNS     bool
	resolver       *net.Resolver
	timeout        time.Duration
}

// NetfilterOption configures ValidateAddress.
type NetfilterOption func(*netfilterConfig)

// WithBlockPrivate controls whether RFC1918 and ULA ranges are blocked.
func WithBlockPrivate(block bool) NetfilterOption {
	return func(c *netfilterConfig) { c.blockPrivate = block }
}

// WithBlockLocalhost controls whether loopback addresses are blocked.
func WithBlockLocalhost(block bool) NetfilterOption {
	return func(c *netfilterConfig) { c.blockLocalhost = block }
}

// WithResolveDNS controls whether hostnames are resolved and each
// resulting IP checked. When disabled, hostnames pass and only literal
// IPs are checked.
func WithResolveDNS(resolve bool) NetfilterOption {
	return func(c *netfilterConfig) { c.resolveDNS = resolve }
}

// WithNetfilterResolver sets a custom DNS resolver.
func WithNetfilterResolver(r *net.Resolver) NetfilterOption {
	return func(c *netfilterConfig) { c.resolver = r }
}

// ValidateAddress checks a host or host:port against SSRF rules:
// loopback, private ranges, link-local and the unspecified address are
// blocked by default. Hostnames are resolved (unless disabled) and
// every returned IP must pass.
func ValidateAddress(addr string, opts ...NetfilterOption) ValidationResult {
	cfg := netfilterConfig{
		blockPrivate:   true,
		blockLocalhost: true,
		resolveDNS:     true,
		timeout:        5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip, cfg)
	}

	if !cfg.resolveDNS {
		return ValidationResult{Allowed: true}
	}

	resolver := cfg.resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()
	ips, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return ValidationResult{Reason: "DNS lookup failed: " + err.Error()}
	}
	if len(ips) == 0 {
		return ValidationResult{Reason: "no IP addresses resolved"}
	}
	for _, ipAddr := range ips {
		if result := checkIP(ipAddr.IP, cfg); !result.Allowed {
			return result
		}
	}
	return ValidationResult{Allowed: true}
}

func checkIP(ip net.IP, cfg netfilterConfig) ValidationResult {
	switch {
	case ip.IsUnspecified():
		return ValidationResult{Reason: "unspecified address blocked"}
	case ip.IsMulticast():
		return ValidationResult{Reason: "multicast address blocked"}
	case cfg.blockLocalhost && ip.IsLoopback():
		return ValidationResult{Reason: "loopback address blocked"}
	case cfg.blockPrivate && ip.IsPrivate():
		return ValidationResult{Reason: "private address blocked"}
	case cfg.blockPrivate && (ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()):
		return ValidationResult{Reason: "link-local address blocked"}
	}
	return ValidationResult{Allowed: true}
}
