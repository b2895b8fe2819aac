package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"
)

// Reasons reported by Inspect.
const (
	ReasonPathScan     = "path_scan"
	ReasonQueryScan    = "query_scan"
	ReasonScanner      = "scanner_agent"
	ReasonMethod       = "unusual_method"
	ReasonOversizedURL = "oversized_url"
	ReasonProxyChain   = "long_proxy_chain"
)

const (
	maxURLLength  = 2048
	maxProxyHops  = 5
	headerXFF     = "X-Forwarded-For"
	headerRealIP  = "X-Real-IP"
	unknownClient = "unknown"
)

// scanMarkers never appear in a legitimate call to the JSON API or the
// status page, but show up in file and injection scans.
var scanMarkers = []string{
	"../", "..\\", ".env", ".git/", ".ssh/", "wp-admin", "wp-login",
	"phpmyadmin", ".php", "etc/passwd", "cmd.exe", "<script", "javascript:",
	"union select", "eval(",
}

var scannerAgents = []string{
	"sqlmap", "nikto", "nmap", "masscan", "zgrab", "gobuster", "dirbuster", "nuclei",
}

var unusualMethods = map[string]bool{
	"TRACE": true, "TRACK": true, "DEBUG": true, http.MethodConnect: true,
}

// DetectorStats are running counters for the readiness payload.
type DetectorStats struct {
	Suspicious        int64
	InvalidRemoteAddr int64
}

// Detector flags requests that look like scans and resolves client IPs
// behind trusted proxies.
type Detector struct {
	proxies []netip.Prefix

	suspicious    atomic.Int64
	invalidRemote atomic.Int64
}

// NewDetector trusts loopback and private ranges as proxies.
func NewDetector() *Detector {
	d := &Detector{}
	for _, p := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128", "fc00::/7"} {
		d.proxies = append(d.proxies, netip.MustParsePrefix(p))
	}
	return d
}

// AddTrustedProxy trusts forwarded headers sent by peers in cidr.
// Call it before serving.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.proxies = append(d.proxies, p.Masked())
	return nil
}

// Inspect returns why r looks suspicious, or "" when it does not.
func (d *Detector) Inspect(r *http.Request) string {
	reason := inspect(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func inspect(r *http.Request) string {
	if unusualMethods[r.Method] {
		return ReasonMethod
	}
	if len(r.URL.RequestURI()) > maxURLLength {
		return ReasonOversizedURL
	}
	if containsMarker(strings.ToLower(r.URL.Path)) {
		return ReasonPathScan
	}
	query := r.URL.RawQuery
	if q, err := url.QueryUnescape(query); err == nil {
		query = q
	}
	if containsMarker(strings.ToLower(query)) {
		return ReasonQueryScan
	}
	ua := strings.ToLower(r.UserAgent())
	for _, agent := range scannerAgents {
		if strings.Contains(ua, agent) {
			return ReasonScanner
		}
	}
	if strings.Count(r.Header.Get(headerXFF), ",") >= maxProxyHops {
		return ReasonProxyChain
	}
	return ""
}

func containsMarker(s string) bool {
	for _, m := range scanMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the peer address, or, when the peer is a trusted
// proxy, the right-most untrusted address in X-Forwarded-For (X-Real-IP
// when that header is absent).
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	var addr netip.Addr
	if err == nil {
		addr = peer.Addr()
	} else if addr, err = netip.ParseAddr(r.RemoteAddr); err != nil {
		d.invalidRemote.Add(1)
		if r.RemoteAddr == "" {
			return unknownClient
		}
		return r.RemoteAddr
	}
	addr = addr.Unmap()
	if !d.trusted(addr) {
		return addr.String()
	}

	if xff := r.Header.Get(headerXFF); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !d.trusted(hop) {
				return hop.String()
			}
		}
	} else if realIP, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get(headerRealIP))); err == nil {
		return realIP.Unmap().String()
	}
	return addr.String()
}

func (d *Detector) trusted(a netip.Addr) bool {
	for _, p := range d.proxies {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func (d *Detector) Stats() DetectorStats {
	return DetectorStats{
		Suspicious:        d.suspicious.Load(),
		InvalidRemoteAddr: d.invalidRemote.Load(),
	}
}

// Middleware logs suspicious requests and lets them through. Rejection is
// left to the rate limiter and authentication.
func (d *Detector) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := d.Inspect(r); reason != "" {
				logger.WarnContext(r.Context(), "Suspicious request detected",
					"reason", reason,
					"client_ip", d.ExtractClientIP(r),
					"method", r.Method,
					"path", r.URL.Path,
					"user_agent", r.UserAgent())
			}
			next.ServeHTTP(w, r)
		})
	}
}
