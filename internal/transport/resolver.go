package transport

import (
	"context"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/domaintobiz/siteworker/internal/logger"
	"github.com/domaintobiz/siteworker/internal/metrics"
)

const (
	// Public DoH resolvers tried after the OS resolver fails.
	googleDoHURL     = "https://dns.google/resolve"
	cloudflareDoHURL = "https://cloudflare-dns.com/dns-query"

	// Each resolution method gets its own bounded attempt.
	defaultResolveTimeout = 10 * time.Second

	// DNS record type for IPv4 answers.
	dnsTypeA = 1
)

// Resolver resolves hostnames to IPv4 addresses through a fallback chain:
// OS resolver restricted to IPv4, then DNS-over-HTTPS via Google, then
// DNS-over-HTTPS via Cloudflare. The first successful answer wins.
// Individual method failures are logged, never returned.
type Resolver struct {
	timeout time.Duration
	doh     *resty.Client

	// Overridable in tests.
	googleURL     string
	cloudflareURL string
	osLookup      func(ctx context.Context, host string) ([]net.IP, error)
}

// NewResolver creates a resolver with the default fallback chain.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Resolver{
		timeout:       timeout,
		doh:           resty.New().SetTimeout(timeout),
		googleURL:     googleDoHURL,
		cloudflareURL: cloudflareDoHURL,
		osLookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip4", host)
		},
	}
}

// dohAnswer mirrors the JSON answer format shared by Google and Cloudflare DoH.
type dohAnswer struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		TTL  int    `json:"TTL"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// LookupIPv4 resolves host to an IPv4 address. The second return value is
// false when every method in the chain failed.
func (r *Resolver) LookupIPv4(ctx context.Context, host string) (string, bool) {
	if ip, ok := r.resolveOS(ctx, host); ok {
		metrics.IncDNSFallback("os", "hit")
		return ip, true
	}
	metrics.IncDNSFallback("os", "miss")

	if ip, ok := r.resolveDoH(ctx, r.googleURL, host, nil); ok {
		metrics.IncDNSFallback("doh_google", "hit")
		return ip, true
	}
	metrics.IncDNSFallback("doh_google", "miss")

	if ip, ok := r.resolveDoH(ctx, r.cloudflareURL, host, map[string]string{
		"Accept": "application/dns-json",
	}); ok {
		metrics.IncDNSFallback("doh_cloudflare", "hit")
		return ip, true
	}
	metrics.IncDNSFallback("doh_cloudflare", "miss")

	logger.CtxError(ctx, "All DNS resolution methods failed for %s", host)
	return "", false
}

func (r *Resolver) resolveOS(ctx context.Context, host string) (string, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ips, err := r.osLookup(lookupCtx, host)
	if err != nil {
		logger.CtxWarn(ctx, "OS resolver failed for %s: %v", host, err)
		return "", false
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			logger.CtxInfo(ctx, "Resolved %s -> %s via OS resolver", host, v4.String())
			return v4.String(), true
		}
	}
	logger.CtxWarn(ctx, "OS resolver returned no IPv4 addresses for %s", host)
	return "", false
}

func (r *Resolver) resolveDoH(ctx context.Context, endpoint, host string, headers map[string]string) (string, bool) {
	var answer dohAnswer
	req := r.doh.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name": host,
			"type": "A",
		}).
		SetResult(&answer)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		logger.CtxWarn(ctx, "DoH query to %s failed for %s: %v", endpoint, host, err)
		return "", false
	}
	if resp.StatusCode() != 200 {
		logger.CtxWarn(ctx, "DoH query to %s returned HTTP %d for %s", endpoint, resp.StatusCode(), host)
		return "", false
	}

	for _, a := range answer.Answer {
		if a.Type != dnsTypeA {
			continue
		}
		if ip := net.ParseIP(a.Data); ip != nil && ip.To4() != nil {
			logger.CtxInfo(ctx, "Resolved %s -> %s via %s", host, a.Data, endpoint)
			return a.Data, true
		}
	}
	logger.CtxWarn(ctx, "DoH query to %s returned no A records for %s", endpoint, host)
	return "", false
}
