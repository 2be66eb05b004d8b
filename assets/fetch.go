package assets

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"

// DefaultMaxBytes caps any single upload or fetched image.
const DefaultMaxBytes int64 = 32 * 1024 * 1024

// readLimited reads up to limit bytes from r and fails if there is more. A
// limit of 0 reads without limit.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	// Read limit+1 bytes so we can detect overflow without a custom reader.
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("body exceeds maximum allowed size (%s)", HumanSize(limit))
	}
	return data, nil
}

// newProxyClient creates a client that routes through the given proxy using
// standard TLS, since uTLS cannot negotiate CONNECT tunnels.
func newProxyClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	proxyURL, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxyAddr, err)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:       http.ProxyURL(proxyURL),
			DialContext: guardedDial(&net.Dialer{Timeout: timeout}),
		},
	}, nil
}

// utlsConn wraps a utls.UConn and satisfies net.Conn + the
// ConnectionState interface that net/http2 needs.
type utlsConn struct {
	*utls.UConn
}

func (c *utlsConn) ConnectionState() tls.ConnectionState {
	cs := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:                    cs.Version,
		HandshakeComplete:          cs.HandshakeComplete,
		CipherSuite:                cs.CipherSuite,
		NegotiatedProtocol:         cs.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: cs.NegotiatedProtocolIsMutual,
		ServerName:                 cs.ServerName,
		PeerCertificates:           cs.PeerCertificates,
		VerifiedChains:             cs.VerifiedChains,
		OCSPResponse:               cs.OCSPResponse,
		TLSUnique:                  cs.TLSUnique,
	}
}

// newBrowserClient creates an HTTP client that presents a browser TLS
// fingerprint. It speaks HTTP/1.1 and HTTP/2 and never dials private
// addresses.
func newBrowserClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	rt := &browserTransport{
		dialer: dialer,
		h1:     &http.Transport{DialContext: guardedDial(dialer)},
		h2:     &http2.Transport{},
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

type browserTransport struct {
	dialer *net.Dialer
	h1     *http.Transport
	h2     *http2.Transport
}

func (bt *browserTransport) dialUTLS(ctx context.Context, network, addr string) (net.Conn, string, error) {
	conn, err := guardedDial(bt.dialer)(ctx, network, addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloFirefox_120)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}
	return &utlsConn{tlsConn}, tlsConn.ConnectionState().NegotiatedProtocol, nil
}

func (bt *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return bt.h1.RoundTrip(req)
	}

	addr := req.URL.Host
	if !hasPort(addr) {
		addr += ":443"
	}

	conn, alpn, err := bt.dialUTLS(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	if alpn == "h2" {
		h2conn, err := bt.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2conn.RoundTrip(req)
	}

	// HTTP/1.1: hand the established TLS conn to a one-shot transport.
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
	}
	return transport.RoundTrip(req)
}

func hasPort(host string) bool {
	_, _, err := net.SplitHostPort(host)
	return err == nil
}
