// Package upstream holds the shared HTTP plumbing for the provider adapters:
// a tuned transport with cached DNS, a resty client factory, the APIError type,
// and the Guard that bounds every outbound call.
package upstream

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/dnscache"
)

const userAgent = "meridian/1.0"

// NewTransport returns a tuned *http.Transport with connection pooling and
// optional DNS caching.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// NewClient returns a resty client rooted at baseURL. A nil transport uses
// http.DefaultTransport. Timeouts come from the request context, not the client.
func NewClient(baseURL string, transport http.RoundTripper) *resty.Client {
	hc := &http.Client{Transport: transport}
	if transport == nil {
		hc.Transport = http.DefaultTransport
	}
	return resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}
