package stealth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
)

// Dial and handshake timeouts for the impersonated transport.
const (
	dialTimeout      = 15 * time.Second
	handshakeTimeout = 15 * time.Second
	idleConnTimeout  = 90 * time.Second
)

// NewTransport builds an http.Transport whose TLS handshake presents the
// profile's browser ClientHello instead of Go's. ALPN is pinned to
// HTTP/1.1: Go's h2 stack would betray the impersonation at the frame
// layer anyway.
func NewTransport(profile Profile, proxyURL *url.URL) *http.Transport {
	tr := &http.Transport{
		DialTLSContext:    dialTLS(profile),
		ForceAttemptHTTP2: false,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
		IdleConnTimeout:   idleConnTimeout,
		MaxIdleConns:      10,
	}

	if proxyURL != nil {
		tr.Proxy = http.ProxyURL(proxyURL)
	}

	return tr
}

// dialTLS returns a dialer that wraps the TCP connection in a utls
// UClient carrying the profile's ClientHello fingerprint.
func dialTLS(profile Profile) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("split host %q: %w", addr, err)
		}

		dialer := &net.Dialer{Timeout: dialTimeout}

		raw, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}

		conn := utls.UClient(raw, &utls.Config{
			ServerName: host,
			NextProtos: []string{"http/1.1"},
		}, profile.HelloID)

		hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		defer cancel()

		if err := conn.HandshakeContext(hsCtx); err != nil {
			raw.Close()

			return nil, fmt.Errorf("tls handshake %s as %s: %w", host, profile.Name, err)
		}

		return conn, nil
	}
}
