package assets

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Importer copies a remote image into a Store, so a replaced image never
// hotlinks a third-party host.
type Importer struct {
	store     *Store
	client    *http.Client
	userAgent string
	maxBytes  int64
	log       *zap.Logger
}

type ImporterOption func(*Importer)

func WithImporterLogger(l *zap.Logger) ImporterOption {
	return func(im *Importer) {
		if l != nil {
			im.log = l
		}
	}
}

func WithUserAgent(ua string) ImporterOption {
	return func(im *Importer) {
		if ua != "" {
			im.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the browser-fingerprint client, e.g. for a proxy.
func WithHTTPClient(c *http.Client) ImporterOption {
	return func(im *Importer) {
		if c != nil {
			im.client = c
		}
	}
}

func NewImporter(store *Store, timeout time.Duration, opts ...ImporterOption) *Importer {
	im := &Importer{
		store:     store,
		client:    newBrowserClient(timeout),
		userAgent: DefaultUserAgent,
		maxBytes:  store.maxBytes,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// NewProxyImporter is NewImporter with every request sent through proxyAddr.
func NewProxyImporter(store *Store, timeout time.Duration, proxyAddr string, opts ...ImporterOption) (*Importer, error) {
	client, err := newProxyClient(proxyAddr, timeout)
	if err != nil {
		return nil, err
	}
	return NewImporter(store, timeout, append(opts, WithHTTPClient(client))...), nil
}

// Import downloads rawURL and stores it, returning the stored asset's URL.
func (im *Importer) Import(ctx context.Context, rawURL string) (string, error) {
	// Unescape HTML entities in URL (e.g. &amp; -> &)
	rawURL = html.UnescapeString(strings.TrimSpace(rawURL))
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", im.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/svg+xml,image/*;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Sec-Fetch-Dest", "image")

	resp, err := im.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}

	data, err := readLimited(resp.Body, im.maxBytes)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "image"
	}
	if path.Ext(name) == "" {
		if ct := stripParams(resp.Header.Get("Content-Type")); ct != "" && ct != "application/octet-stream" {
			name += extensionFor("", ct)
		}
	}

	im.log.Info("fetched image", zap.String("url", rawURL), zap.String("size", HumanSize(int64(len(data)))))
	return im.store.Put(ctx, name, data)
}
