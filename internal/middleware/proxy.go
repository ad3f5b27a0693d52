package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() honor X-Real-IP and X-Forwarded-For,
// but only when the direct peer is inside one of trustedCIDRs. Rate limits
// and request logs depend on it behind a reverse proxy.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	e.IPExtractor = ipExtractor(parseCIDRs(trustedCIDRs))
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy CIDR", slog.String("cidr", cidr))
			continue
		}
		nets = append(nets, network)
	}
	return nets
}

func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	return func(req *http.Request) string {
		peer := req.RemoteAddr
		if host, _, err := net.SplitHostPort(peer); err == nil {
			peer = host
		}
		if !contains(trusted, peer) {
			return peer
		}

		if realIP := strings.TrimSpace(req.Header.Get(echo.HeaderXRealIP)); realIP != "" {
			return realIP
		}
		if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
			client, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(client)
		}
		return peer
	}
}

func contains(nets []*net.IPNet, addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
