package validator

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
	"github.com/chicogong/ffmpeg-chain/pkg/storage"
)

// BlockedNetworks contains IP ranges that should not be accessible
var BlockedNetworks = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private network
	"172.16.0.0/12",  // Private network
	"192.168.0.0/16", // Private network
	"169.254.0.0/16", // Link-local (AWS metadata service)
	"::1/128",        // IPv6 localhost
	"fc00::/7",       // IPv6 unique local
	"fe80::/10",      // IPv6 link-local
}

// Resolver looks up the addresses of a host
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// SourcePolicy decides which source and sink locations a job may touch.
// Unlike Validate it performs I/O (DNS), so it runs only where graphs come
// from untrusted callers.
type SourcePolicy struct {
	// Schemes allowed for sources and sinks; empty means storage.AllowedSchemes
	Schemes []string

	// AllowLocalFiles permits plain paths and file:// URIs
	AllowLocalFiles bool

	// Resolver defaults to net.DefaultResolver
	Resolver Resolver
}

// Check inspects every source and sink path of g
func (p *SourcePolicy) Check(ctx context.Context, g *graph.Graph) error {
	for _, n := range g.Nodes() {
		if n.Kind == schemas.KindFilter {
			continue
		}
		if err := p.CheckURI(ctx, n.Path, n.Kind == schemas.KindSource); err != nil {
			return fmt.Errorf("%s: %w", n.Label(), err)
		}
	}
	return nil
}

// CheckURI validates one location. HTTP is only acceptable for reading.
func (p *SourcePolicy) CheckURI(ctx context.Context, uri string, read bool) error {
	scheme, _, err := storage.ParseURI(uri)
	if err != nil {
		return err
	}

	if scheme == "file" {
		if !p.AllowLocalFiles {
			return fmt.Errorf("local files are not allowed")
		}
		return nil
	}
	if !p.allowed(scheme) {
		return fmt.Errorf("scheme '%s' not allowed", scheme)
	}
	if scheme == "http" || scheme == "https" {
		if !read {
			return fmt.Errorf("cannot write to %s URIs", scheme)
		}
		return p.validateHTTPURI(ctx, uri)
	}
	return nil
}

func (p *SourcePolicy) allowed(scheme string) bool {
	if len(p.Schemes) == 0 {
		return storage.IsAllowedScheme(scheme)
	}
	for _, s := range p.Schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// IsBlockedIP checks if an IP address is in a blocked network range
func IsBlockedIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, cidr := range BlockedNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// validateHTTPURI rejects HTTP URIs whose host resolves into a blocked network
func (p *SourcePolicy) validateHTTPURI(ctx context.Context, uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid URI: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("expected http or https scheme")
	}

	hostname := parsed.Hostname()

	var resolver Resolver = net.DefaultResolver
	if p.Resolver != nil {
		resolver = p.Resolver
	}

	// Resolve hostname to IP addresses
	addrs, err := resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname: %w", err)
	}

	for _, addr := range addrs {
		ipStr := addr.IP.String()
		if IsBlockedIP(ipStr) {
			return fmt.Errorf("access denied: %s resolves to %s (%s)", hostname, ipStr, getBlockReason(addr.IP))
		}
	}

	return nil
}

// getBlockReason returns a human-readable reason for blocking an IP
func getBlockReason(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "localhost access not allowed"
	case ip.IsLinkLocalUnicast():
		return "link-local access not allowed"
	case ip.IsPrivate():
		return "private network access not allowed"
	}
	if strings.Contains(ip.String(), ":") {
		return "blocked IPv6 network"
	}
	return "blocked network"
}
