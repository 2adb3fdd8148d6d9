package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/domaintobiz/siteworker/internal/config"
	"github.com/domaintobiz/siteworker/internal/logger"
	"github.com/domaintobiz/siteworker/internal/transport"
)

// dnscheck diagnoses the DNS situation the worker will run under: whether
// the OS resolver works, whether DNS-over-HTTPS fallback finds the host,
// whether an HTTPS request to a URL succeeds through the resilient
// transport, and whether the configured store answers through the full
// fallback chain.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		ServiceName: "dnscheck",
	})
	logger.SetDefaultLogger(appLogger)

	host := flag.String("host", "", "Hostname to resolve")
	probeURL := flag.String("url", "", "URL to fetch through the resilient transport")
	storePing := flag.Bool("store-ping", false, "Query the configured store (SUPABASE_URL) through the fallback chain")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-lookup timeout")
	insecure := flag.Bool("insecure", false, "Skip TLS verification on the IP-based fallback request")
	flag.Parse()

	if *host == "" && *probeURL == "" && !*storePing {
		fmt.Fprintln(os.Stderr, "usage: dnscheck -host <hostname> [-url <url>] [-store-ping] [-timeout 10s] [-insecure]")
		os.Exit(2)
	}

	var cfg *config.Config
	if *storePing {
		var err error
		cfg, err = config.Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "dnscheck: -store-ping needs store configuration: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*(*timeout)+30*time.Second)
	defer cancel()

	exitCode := 0

	if *host == "" && *probeURL != "" {
		if u, err := url.Parse(*probeURL); err == nil {
			*host = u.Hostname()
		}
	}
	if *host == "" && cfg != nil {
		if u, err := url.Parse(cfg.Store.URL); err == nil {
			*host = u.Hostname()
		}
	}

	if *host != "" {
		if !checkHost(ctx, *host, *timeout) {
			exitCode = 1
		}
	}

	if *probeURL != "" {
		if !checkURL(ctx, *probeURL, *timeout, *insecure) {
			exitCode = 1
		}
	}

	if cfg != nil {
		if !checkStore(ctx, cfg.Store.URL, cfg.Store.ServiceKey, *timeout, *insecure) {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

func checkHost(ctx context.Context, host string, timeout time.Duration) bool {
	fmt.Printf("Resolving %s\n", host)

	// OS resolver on its own first, so a DoH-only success is visible.
	osCtx, cancel := context.WithTimeout(ctx, timeout)
	ips, err := net.DefaultResolver.LookupIP(osCtx, "ip4", host)
	cancel()
	if err != nil || len(ips) == 0 {
		fmt.Printf("  os resolver:   FAILED (%v)\n", err)
	} else {
		fmt.Printf("  os resolver:   %s\n", ips[0].String())
	}

	resolver := transport.NewResolver(timeout)
	ip, ok := resolver.LookupIPv4(ctx, host)
	if !ok {
		fmt.Println("  full chain:    FAILED (os resolver and DNS-over-HTTPS)")
		return false
	}
	fmt.Printf("  full chain:    %s\n", ip)
	return true
}

func checkURL(ctx context.Context, probeURL string, timeout time.Duration, insecure bool) bool {
	fmt.Printf("Fetching %s\n", probeURL)

	client, err := transport.NewClient(&transport.Config{
		BaseURL:            probeURL,
		Timeout:            timeout,
		ResolveTimeout:     timeout,
		InsecureIPFallback: insecure,
	})
	if err != nil {
		fmt.Printf("  transport:     INVALID URL (%v)\n", err)
		return false
	}

	resp, err := client.Do(ctx, "GET", "", nil, nil)
	if err != nil {
		fmt.Printf("  transport:     FAILED (%v)\n", err)
		return false
	}
	fmt.Printf("  transport:     HTTP %d (%d bytes)\n", resp.StatusCode, len(resp.Body))
	return true
}

// checkStore issues an authenticated REST query against the store so the
// whole path the worker depends on is exercised, fallback included.
func checkStore(ctx context.Context, storeURL, serviceKey string, timeout time.Duration, insecure bool) bool {
	fmt.Printf("Pinging store %s\n", storeURL)

	client, err := transport.NewClient(&transport.Config{
		BaseURL: storeURL,
		Headers: map[string]string{
			"apikey":        serviceKey,
			"Authorization": "Bearer " + serviceKey,
		},
		Timeout:            timeout,
		ResolveTimeout:     timeout,
		InsecureIPFallback: insecure,
	})
	if err != nil {
		fmt.Printf("  store:         INVALID URL (%v)\n", err)
		return false
	}

	resp, err := client.Do(ctx, "GET", "/rest/v1/", nil, nil)
	if err != nil {
		fmt.Printf("  store:         FAILED (%v)\n", err)
		return false
	}
	fmt.Printf("  store:         HTTP %d\n", resp.StatusCode)
	return resp.StatusCode < 500
}
