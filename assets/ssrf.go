package assets

import (
	"context"
	"fmt"
	"net"
	"os"
)

// AllowLocalEnv set to "1" lets imports reach loopback and private hosts.
const AllowLocalEnv = "SITEDECK_TEST_ALLOW_LOCAL"

// blockedNets are the ranges an import may never connect to.
var blockedNets = mustParseNets(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10", // carrier-grade NAT
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseNets(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("assets: bad range %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

func restricted(ip net.IP) bool {
	if os.Getenv(AllowLocalEnv) == "1" {
		return false
	}
	switch {
	case ip.IsLoopback(), ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(), ip.IsUnspecified():
		return true
	}
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// guardedDial resolves the host itself and dials the first public address it
// finds, so a second lookup cannot swap in a private one.
func guardedDial(dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		found, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		for _, a := range found {
			if !restricted(a.IP) {
				return dialer.DialContext(ctx, network, net.JoinHostPort(a.IP.String(), port))
			}
		}
		return nil, fmt.Errorf("refusing to connect to %s: only private or local addresses", host)
	}
}
