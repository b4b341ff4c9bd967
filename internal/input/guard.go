package input

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var blockedRanges = mustParseCIDRs(
	"0.0.0.0/8",
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

// Hostnames and suffixes that name the local machine or a private network.
var (
	blockedHosts    = []string{"localhost", "localhost.localdomain", "ip6-localhost", "ip6-loopback"}
	blockedSuffixes = []string{".local", ".internal", ".localhost", ".lan", ".home.arpa"}
)

func mustParseCIDRs(ranges ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(ranges))
	for _, r := range ranges {
		_, cidr, err := net.ParseCIDR(r)
		if err != nil {
			panic(err)
		}
		out = append(out, cidr)
	}
	return out
}

// isPrivateIP reports whether ip belongs to a loopback, private,
// link-local or otherwise non-public range.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, cidr := range blockedRanges {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func isInternalHostname(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, h := range blockedHosts {
		if host == h {
			return true
		}
	}
	for _, s := range blockedSuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// parseFetchURL checks scheme and host shape without touching the network.
func parseFetchURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL has no host")
	}
	if u.User != nil {
		return nil, fmt.Errorf("URLs with embedded credentials are not allowed")
	}
	return u, nil
}

// validateTarget rejects internal hostnames and any host that resolves to a
// blocked address.
func (r *Resolver) validateTarget(ctx context.Context, host string) error {
	if isInternalHostname(host) {
		return fmt.Errorf("host %q is an internal name", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if r.blocked(ip) {
			return fmt.Errorf("address %s is private or internal", ip)
		}
		return nil
	}

	ips, err := r.lookupIP(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("hostname %q has no addresses", host)
	}
	for _, ip := range ips {
		if r.blocked(ip) {
			return fmt.Errorf("host %q resolves to private or internal address %s", host, ip)
		}
	}
	return nil
}

func defaultLookupIP(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, len(addrs))
	for i, a := range addrs {
		out[i] = a.IP
	}
	return out, nil
}
