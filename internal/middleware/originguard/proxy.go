package originguard

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ParseTrustedProxies parses proxy addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var networks []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			network, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			networks = append(networks, network.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		networks = append(networks, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return networks, nil
}

// ProxyClientIP returns a client address resolver for requests arriving
// through reverse proxies. header is only read when the connecting peer is
// a trusted proxy; the chain is then walked from the right and the first
// hop that is not a trusted proxy is the client. A malformed hop resolves
// to "", which no allow-list entry matches.
func ProxyClientIP(header string, trustedProxies []string) (func(c *fiber.Ctx) string, error) {
	networks, err := ParseTrustedProxies(trustedProxies)
	if err != nil {
		return nil, err
	}

	return func(c *fiber.Ctx) string {
		peer := peerAddr(c.Context().RemoteIP())
		if header == "" || !peer.IsValid() || !trusted(networks, peer) {
			return peer.String()
		}

		value := strings.TrimSpace(c.Get(header))
		if value == "" {
			return peer.String()
		}

		hops := strings.Split(value, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				return ""
			}
			if !trusted(networks, addr.Unmap()) {
				return hop
			}
		}
		// Every hop is a trusted proxy.
		return strings.TrimSpace(hops[0])
	}, nil
}

func peerAddr(ip net.IP) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func trusted(networks []netip.Prefix, addr netip.Addr) bool {
	for _, network := range networks {
		if network.Contains(addr) {
			return true
		}
	}
	return false
}
