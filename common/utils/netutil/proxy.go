package netutil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

func NewProxyDialer(proxyUrl string) (proxy.Dialer, error) {
	url, err := url.Parse(proxyUrl)
	if err != nil {
		return nil, err
	}
	return proxy.FromURL(url, proxy.Direct)
}

// NewTransport clones http.DefaultTransport and routes it through proxyUrl.
// http and https proxies go through Transport.Proxy, anything else (socks5)
// through a proxy dialer. An empty proxyUrl leaves the transport direct.
func NewTransport(proxyUrl string) (*http.Transport, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if proxyUrl == "" {
		return t, nil
	}
	u, err := url.Parse(proxyUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		t.Proxy = http.ProxyURL(u)
		return t, nil
	}

	dialer, err := NewProxyDialer(proxyUrl)
	if err != nil {
		return nil, err
	}
	t.Proxy = nil
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}
	return t, nil
}
