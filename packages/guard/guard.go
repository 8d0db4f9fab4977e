package guard

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Error reports a rejected target. The reason is written for end users and is
// safe to surface verbatim.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

var privateNets = mustParseCIDRs(
	"127.0.0.0/8",    // loopback
	"10.0.0.0/8",     // RFC1918
	"172.16.0.0/12",  // RFC1918
	"192.168.0.0/16", // RFC1918
	"169.254.0.0/16", // link-local
	"::1/128",        // IPv6 loopback
	"fc00::/7",       // unique-local
	"fe80::/10",      // IPv6 link-local
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("guard: bad builtin CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// Resolver looks up all addresses for a hostname. Injectable for tests.
type Resolver func(ctx context.Context, host string) ([]net.IP, error)

// Guard validates outbound URLs. Safe for concurrent use; the allowed port
// set may be swapped at runtime via SetAllowedPorts.
type Guard struct {
	mu           sync.RWMutex
	allowedPorts map[int]struct{}
	resolve      Resolver
}

// Option configures a Guard.
type Option func(*Guard)

// WithAllowedPorts replaces the default {80, 443} port allowlist.
func WithAllowedPorts(ports ...int) Option {
	return func(g *Guard) {
		g.setPorts(ports)
	}
}

// WithResolver replaces the DNS resolver used for non-literal hostnames.
func WithResolver(r Resolver) Option {
	return func(g *Guard) {
		g.resolve = r
	}
}

// New builds a Guard. Defaults: ports {80, 443}, the process-wide resolver.
func New(opts ...Option) *Guard {
	g := &Guard{
		resolve: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
	}
	g.setPorts([]int{80, 443})
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) setPorts(ports []int) {
	set := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	g.mu.Lock()
	g.allowedPorts = set
	g.mu.Unlock()
}

// SetAllowedPorts swaps the port allowlist at runtime (config reload).
func (g *Guard) SetAllowedPorts(ports []int) {
	g.setPorts(ports)
}

// AllowedPorts returns the current allowlist, sorted.
func (g *Guard) AllowedPorts() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int, 0, len(g.allowedPorts))
	for p := range g.allowedPorts {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func (g *Guard) portAllowed(port int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.allowedPorts[port]
	return ok
}

// Validate checks a URL against the full rule set. A nil return means the
// target may be contacted. Rules apply in order; the first failure wins.
func (g *Guard) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return &Error{Reason: fmt.Sprintf("URL validation failed: %v", err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Reason: "only http and https URLs are allowed"}
	}

	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return &Error{Reason: "URL is missing a hostname"}
	}

	// Cheap pre-DNS blocks for obviously local names.
	if host == "localhost" {
		return &Error{Reason: "access to localhost is blocked"}
	}
	if strings.HasSuffix(host, ".local") {
		return &Error{Reason: "access to .local domains is blocked"}
	}
	if !strings.Contains(host, ".") {
		return &Error{Reason: "single-label hostnames are blocked"}
	}

	port := effectivePort(u)
	if !g.portAllowed(port) {
		return &Error{Reason: fmt.Sprintf("port %d is not in the allowed set %v", port, g.AllowedPorts())}
	}

	// Literal IPs are checked directly; no DNS lookup happens.
	if ip := net.ParseIP(host); ip != nil {
		if isPrivate(ip) {
			return &Error{Reason: "access to private or reserved IP ranges is blocked"}
		}
		return nil
	}

	ips, err := g.resolve(ctx, host)
	if err != nil || len(ips) == 0 {
		return &Error{Reason: "DNS resolution failed"}
	}
	// One private address poisons the whole hostname. This intentionally
	// rejects dual-stack hosts that publish a private record alongside a
	// public one, which defeats multi-A-record tricks.
	for _, ip := range ips {
		if isPrivate(ip) {
			return &Error{Reason: "hostname resolves to a private or reserved address"}
		}
	}

	return nil
}

func effectivePort(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

func isPrivate(ip net.IP) bool {
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
