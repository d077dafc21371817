// Package originguard filters requests by client address prefix and by the
// declared page origin before any signature work is done.
//
// The address check is the access boundary. The Origin/Referer check is
// advisory: the header is client supplied, so a request without it is let
// through.
package originguard

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	"github.com/qolzam/telar/apps/relay/internal/types"
)

var (
	// ErrUnauthorizedIP is returned when the client address matches no allowed prefix.
	ErrUnauthorizedIP = errors.New("unauthorized IP")

	// ErrInvalidOrigin is returned when a declared origin is not allow-listed.
	ErrInvalidOrigin = errors.New("invalid origin")
)

const mappedIPv4Prefix = "::ffff:"

// Guard holds the parsed allow-lists.
type Guard struct {
	prefixes []string
	networks []netip.Prefix
	origins  map[string]struct{}
}

// NewGuard parses the allow-lists. It fails on a malformed CIDR entry.
func NewGuard(allowedIPPrefixes, allowedOrigins []string) (*Guard, error) {
	g := &Guard{origins: make(map[string]struct{}, len(allowedOrigins))}

	for _, entry := range allowedIPPrefixes {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			network, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
			}
			g.networks = append(g.networks, network.Masked())
			continue
		}
		g.prefixes = append(g.prefixes, NormalizeAddress(entry))
	}

	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			g.origins[origin] = struct{}{}
		}
	}

	return g, nil
}

// NormalizeAddress strips the IPv4-mapped IPv6 prefix.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) > len(mappedIPv4Prefix) && strings.EqualFold(addr[:len(mappedIPv4Prefix)], mappedIPv4Prefix) {
		return addr[len(mappedIPv4Prefix):]
	}
	return addr
}

// Check applies the address rule, then the origin rule. origin and referer
// are raw header values and may be empty.
func (g *Guard) Check(addr, origin, referer string) error {
	if !g.allowedAddress(NormalizeAddress(addr)) {
		return ErrUnauthorizedIP
	}

	declared := strings.TrimSpace(origin)
	if declared == "" && strings.TrimSpace(referer) != "" {
		declared = originOf(referer)
		if declared == "" {
			return ErrInvalidOrigin
		}
	}
	if declared == "" {
		return nil
	}

	if _, ok := g.origins[declared]; !ok {
		return ErrInvalidOrigin
	}
	return nil
}

func (g *Guard) allowedAddress(addr string) bool {
	if addr == "" {
		return false
	}
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(addr, prefix) {
			return true
		}
	}
	if len(g.networks) == 0 {
		return false
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, network := range g.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// originOf returns scheme://host[:port] of a Referer URL, or "" if it has none.
func originOf(referer string) string {
	u, err := url.Parse(strings.TrimSpace(referer))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorizedIP):
		return "UNAUTHORIZED_IP"
	case errors.Is(err, ErrInvalidOrigin):
		return "INVALID_ORIGIN"
	default:
		return "FORBIDDEN"
	}
}

// New creates a new middleware handler. It panics on a malformed CIDR entry,
// which Config validation is expected to have caught at startup.
func New(config Config) fiber.Handler {
	cfg := configDefault(config)

	guard, err := NewGuard(cfg.AllowedIPPrefixes, cfg.AllowedOrigins)
	if err != nil {
		panic(fmt.Sprintf("originguard: %v", err))
	}

	return func(c *fiber.Ctx) error {
		// Don't execute middleware if Next returns true
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		addr := cfg.ClientIP(c)
		if err := guard.Check(addr, c.Get(types.HeaderOrigin), c.Get(types.HeaderReferer)); err != nil {
			log.WarnWithContext(c.UserContext(), "Origin guard rejected %s %s from %s: %v", c.Method(), c.Path(), addr, err)
			return cfg.Forbidden(c, err)
		}

		return c.Next()
	}
}
