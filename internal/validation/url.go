// Package validation guards outbound URLs against SSRF: private IP ranges,
// localhost, and cloud metadata endpoints are rejected before the client
// ever dials them.
//
// Private targets can be permitted via BRANCH_ALLOW_PRIVATE (any value
// strconv.ParseBool accepts) or SetAllowPrivate(true), for local
// development. Cloud metadata endpoints stay blocked either way.
package validation

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var allowPrivate atomic.Bool

// privateNetworks holds the reserved ranges checked against resolved IPs,
// parsed once at package load.
var privateNetworks = parseCIDRs(
	// IPv4
	"10.0.0.0/8",      // RFC1918
	"172.16.0.0/12",   // RFC1918
	"192.168.0.0/16",  // RFC1918
	"100.64.0.0/10",   // RFC6598 shared address space
	"169.254.0.0/16",  // RFC3927 link local
	"192.0.0.0/24",    // RFC6890
	"192.0.2.0/24",    // RFC5737 documentation
	"198.18.0.0/15",   // RFC2544 benchmarking
	"198.51.100.0/24", // RFC5737 documentation
	"203.0.113.0/24",  // RFC5737 documentation
	"240.0.0.0/4",     // RFC1112 reserved
	// IPv6
	"fc00::/7",      // RFC4193 unique local
	"fe80::/10",     // RFC4291 link local
	"ff00::/8",      // RFC4291 multicast
	"::1/128",       // loopback
	"::/128",        // unspecified
	"100::/64",      // RFC6666 discard prefix
	"2001::/32",     // RFC4380 Teredo
	"2001:10::/28",  // RFC4843 ORCHID
	"2001:db8::/32", // RFC3849 documentation
)

func parseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, network)
		}
	}
	return nets
}

func init() {
	v, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("BRANCH_ALLOW_PRIVATE")))
	allowPrivate.Store(v)
}

// SetAllowPrivate toggles acceptance of private and localhost URLs, for
// development against a local server. Cloud metadata endpoints remain
// blocked regardless.
func SetAllowPrivate(enabled bool) {
	allowPrivate.Store(enabled)
}

// AllowPrivateEnabled reports the current private-URL setting.
func AllowPrivateEnabled() bool {
	return allowPrivate.Load()
}

// ValidateServerURL rejects server URLs that could be used for SSRF. The
// URL must be http or https with a hostname; the hostname must not be
// localhost (unless private is allowed), must not be a cloud metadata
// endpoint, and must not be or resolve to a forbidden IP.
func ValidateServerURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: only http and https are allowed, got %q", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must contain a hostname")
	}
	if !allowPrivate.Load() && isLocalhost(hostname) {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if isCloudMetadata(hostname) {
		return fmt.Errorf("cloud metadata endpoints are not allowed")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return validateIPAddress(ip)
	}
	return validateDomainName(hostname)
}

func isLocalhost(hostname string) bool {
	switch lowercase := strings.ToLower(hostname); lowercase {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0", "::":
		return true
	default:
		return strings.HasSuffix(lowercase, ".localhost")
	}
}

func isCloudMetadata(hostname string) bool {
	switch lowercase := strings.ToLower(hostname); lowercase {
	case "169.254.169.254", // AWS, Azure, GCP, DigitalOcean
		"metadata.google.internal", // GCP
		"metadata",                 // generic
		"instance-data",            // AWS
		"fd00:ec2::254":            // AWS IPv6
		return true
	default:
		return strings.HasSuffix(lowercase, ".metadata.google.internal")
	}
}

func validateIPAddress(ip net.IP) error {
	if ip.String() == "169.254.169.254" {
		return fmt.Errorf("cloud metadata IP address is not allowed")
	}
	if ip.IsUnspecified() {
		return fmt.Errorf("unspecified IP addresses are not allowed")
	}
	// Link-local stays blocked even in allow-private mode; the metadata
	// range lives there.
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("link-local IP addresses are not allowed")
	}
	if allowPrivate.Load() {
		return nil
	}
	if ip.IsLoopback() {
		return fmt.Errorf("loopback IP addresses are not allowed")
	}
	if isPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// validateDomainName resolves the hostname and checks every answer. The
// short timeout bounds DNS rebinding windows; a name that does not resolve
// is allowed through since the dial will fail on its own.
func validateDomainName(hostname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ips, err := (&net.Resolver{}).LookupIP(ctx, "ip", hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if err := validateIPAddress(ip); err != nil {
			return fmt.Errorf("domain %q resolves to forbidden IP %s: %w", hostname, ip.String(), err)
		}
	}
	return nil
}
