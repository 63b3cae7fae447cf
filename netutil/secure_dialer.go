package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// SecureDialer dials with SSRF filtering and DNS pinning: a hostname is
// resolved once, validated, and the connection goes to the pinned IP.
// The pin is cached with a TTL so a rebinding DNS record cannot swap
// the target between validation and connect.
type SecureDialer struct {
	// OnBlocked is called when SSRF filtering blocks an address.
	OnBlocked func(addr string, reason string)

	// Resolver is an optional custom DNS resolver.
	Resolver *net.Resolver

	// Timeout is the dial timeout. Default 30s.
	Timeout time.Duration

	// CacheTTL is how long pinned IPs are kept. Default 5min.
	CacheTTL time.Duration

	// AllowPrivateNetwork permits loopback and private ranges, for
	// hosts that fetch from an internal package mirror.
	AllowPrivateNetwork bool

	mu   sync.RWMutex
	pins map[string]pin
}

type pin struct {
	ip       net.IP
	pinnedAt time.Time
}

// DialContext implements the dialer contract used by http.Transport.
func (d *SecureDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	if ip, ok := d.pinned(host); ok {
		return d.dialIP(ctx, network, ip, port)
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := d.validate(ip); err != nil {
			return nil, err
		}
		d.remember(host, ip)
		return d.dialIP(ctx, network, ip, port)
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ips, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}

	// Prefer IPv4 for compatibility.
	selected := ips[0].IP
	for _, ipAddr := range ips {
		if ipAddr.IP.To4() != nil {
			selected = ipAddr.IP
			break
		}
	}

	if err := d.validate(selected); err != nil {
		return nil, err
	}
	d.remember(host, selected)
	return d.dialIP(ctx, network, selected, port)
}

func (d *SecureDialer) validate(ip net.IP) error {
	opts := []NetfilterOption{WithResolveDNS(false)}
	if d.AllowPrivateNetwork {
		opts = append(opts, WithBlockPrivate(false), WithBlockLocalhost(false))
	}
	result := ValidateAddress(ip.String(), opts...)
	if !result.Allowed {
		if d.OnBlocked != nil {
			d.OnBlocked(ip.String(), result.Reason)
		}
		return &SSRFBlockedError{Address: ip.String(), Reason: result.Reason}
	}
	return nil
}

func (d *SecureDialer) pinned(host string) (net.IP, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.pins[host]
	if !ok {
		return nil, false
	}
	ttl := d.CacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	if time.Since(entry.pinnedAt) >= ttl {
		return nil, false
	}
	return entry.ip, true
}

func (d *SecureDialer) remember(host string, ip net.IP) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pins == nil {
		d.pins = make(map[string]pin)
	}
	d.pins[host] = pin{ip: ip, pinnedAt: time.Now()}
}

func (d *SecureDialer) dialIP(ctx context.Context, network string, ip net.IP, port string) (net.Conn, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// SSRFBlockedError is returned when SSRF filtering blocks a connection.
type SSRFBlockedError struct {
	Address string
	Reason  string
}

func (e *SSRFBlockedError) Error() string {
	return fmt.Sprintf("SSRF protection blocked connection to %s: %s", e.Address, e.Reason)
}

// IsSSRFBlockedError reports whether err is an SSRFBlockedError.
func IsSSRFBlockedError(err error) bool {
	var target *SSRFBlockedError
	return errors.As(err, &target)
}
