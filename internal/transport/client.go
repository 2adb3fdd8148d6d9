package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/domaintobiz/siteworker/internal/logger"
)

// Config holds settings for a resilient HTTP client.
type Config struct {
	// BaseURL is the origin every request path is resolved against.
	BaseURL string

	// Headers are attached to every request (auth, content negotiation).
	Headers map[string]string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// InsecureIPFallback disables certificate verification on the IP-based
	// reissue. Off by default: the reissue pins TLS ServerName to the
	// original hostname, which keeps verification intact for endpoints
	// with a valid certificate for that name. Enable only for endpoints
	// that genuinely cannot be verified that way.
	InsecureIPFallback bool

	// ResolveTimeout bounds each DNS fallback method.
	ResolveTimeout time.Duration
}

// Response is the normalized result of a transport request.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether the response carries a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues HTTP requests against a single origin with a two-tier
// strategy: a standard attempt first, then, on any transport-level failure,
// one reissue against an IPv4 address obtained through the resolver
// fallback chain. Non-2xx responses are returned to the caller, never
// treated as transport failures. There is no retry loop beyond the reissue.
type Client struct {
	baseURL  *url.URL
	headers  map[string]string
	timeout  time.Duration
	primary  *resty.Client
	resolver *Resolver
	insecure bool
}

// NewClient creates a resilient client for the given origin.
func NewClient(cfg *Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Hostname() == "" {
		return nil, fmt.Errorf("base URL %q has no hostname", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	primary := resty.New().SetTimeout(timeout)
	if len(cfg.Headers) > 0 {
		primary.SetHeaders(cfg.Headers)
	}

	c := &Client{
		baseURL:  base,
		headers:  cfg.Headers,
		timeout:  timeout,
		primary:  primary,
		resolver: NewResolver(cfg.ResolveTimeout),
		insecure: cfg.InsecureIPFallback,
	}
	if c.insecure {
		logger.Warn("Transport for %s: certificate verification will be DISABLED on IP fallback reissues", base.Hostname())
	}
	return c, nil
}

// BaseHostname returns the hostname of the configured origin.
func (c *Client) BaseHostname() string {
	return c.baseURL.Hostname()
}

// Do issues a request for path below the configured origin. A nil query or
// body is simply omitted. The returned error is transport-level only;
// non-2xx responses come back as a *Response for the caller to classify.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	fullURL := c.baseURL.String() + path

	resp, err := c.execute(ctx, c.primary, method, fullURL, query, body, "")
	if err == nil {
		return resp, nil
	}

	logger.CtxWarn(ctx, "Request %s %s failed (%v), attempting IP fallback", method, path, err)

	ip, ok := c.resolver.LookupIPv4(ctx, c.baseURL.Hostname())
	if !ok {
		return nil, err
	}

	ipURL, rebuildErr := ipBasedURL(fullURL, ip)
	if rebuildErr != nil {
		logger.CtxError(ctx, "Failed to build IP-based URL: %v", rebuildErr)
		return nil, err
	}

	logger.CtxInfo(ctx, "Reissuing %s %s against %s (Host: %s)", method, path, ip, c.baseURL.Hostname())
	resp, fallbackErr := c.execute(ctx, c.fallbackClient(), method, ipURL, query, body, c.baseURL.Hostname())
	if fallbackErr != nil {
		logger.CtxError(ctx, "IP fallback also failed: %v", fallbackErr)
		// The original failure is what callers should see.
		return nil, err
	}
	return resp, nil
}

func (c *Client) execute(ctx context.Context, client *resty.Client, method, fullURL string, query url.Values, body any, hostOverride string) (*Response, error) {
	req := client.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}
	if hostOverride != "" {
		// Virtual-hosted endpoints route on the Host header, so the
		// reissue must carry the original hostname.
		req.SetHeader("Host", hostOverride)
	}

	resp, err := req.Execute(method, fullURL)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}, nil
}

// fallbackClient builds the client used for the IP-based reissue. TLS
// ServerName stays pinned to the original hostname so verification holds
// even though the dial target is a bare IP.
func (c *Client) fallbackClient() *resty.Client {
	client := resty.New().SetTimeout(c.timeout)
	if len(c.headers) > 0 {
		client.SetHeaders(c.headers)
	}
	client.SetTLSClientConfig(&tls.Config{
		ServerName:         c.baseURL.Hostname(),
		InsecureSkipVerify: c.insecure,
	})
	return client
}

// ipBasedURL swaps the hostname of rawURL for ip while preserving scheme,
// explicit port, path, and query.
func ipBasedURL(rawURL, ip string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := ip
	if port := u.Port(); port != "" {
		host = ip + ":" + port
	}
	u.Host = host
	return u.String(), nil
}
