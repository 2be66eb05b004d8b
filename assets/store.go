// Package assets stores images for replaced and imported site content: local
// uploads, remote imports and stock photo search.
package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store keeps uploaded files on local disk and serves them under BaseURL.
// It implements editor.Uploader.
type Store struct {
	dir      string
	baseURL  string
	prefix   string
	maxBytes int64
	optimize *OptimizeOptions
	log      *zap.Logger
}

type StoreOption func(*Store)

func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBytes limits the size of a single upload. 0 means unlimited.
func WithMaxBytes(n int64) StoreOption {
	return func(s *Store) { s.maxBytes = n }
}

// WithOptimize re-encodes raster uploads. nil stores every file as uploaded.
func WithOptimize(opts *OptimizeOptions) StoreOption {
	return func(s *Store) { s.optimize = opts }
}

// WithPrefix sets the key prefix uploads are stored under.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = strings.Trim(prefix, "/") }
}

func NewStore(dir, baseURL string, opts ...StoreOption) *Store {
	optimize := DefaultOptimizeOptions
	s := &Store{
		dir:      dir,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		prefix:   "uploads",
		maxBytes: DefaultMaxBytes,
		optimize: &optimize,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload reads body, optimizes it if it is a raster image and writes it under
// a fresh key. progress is called as body is read.
func (s *Store) Upload(ctx context.Context, name string, size int64, body io.Reader, progress func(percent int)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := readLimited(newProgressReader(body, size, progress), s.maxBytes)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return s.Put(ctx, name, data)
}

// Put stores data as if it were uploaded under name and returns its URL.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mimeType := detectMIME(name, data)
	ext := extensionFor(name, mimeType)
	original := len(data)

	if s.optimize != nil {
		out, ok, err := Optimize(data, mimeType, *s.optimize)
		switch {
		case err != nil:
			s.log.Warn("storing image unoptimized", zap.String("name", name), zap.Error(err))
		case ok:
			data, ext = out, ".jpg"
		}
	}

	key := path.Join(s.prefix, uuid.NewString()+ext)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating asset directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}

	s.log.Info("stored asset",
		zap.String("name", name),
		zap.String("key", key),
		zap.String("mime", mimeType),
		zap.String("original", HumanSize(int64(original))),
		zap.String("stored", HumanSize(int64(len(data)))),
	)
	return s.baseURL + "/" + key, nil
}

// Path returns the local file behind a URL returned by Put, if it is one.
func (s *Store) Path(assetURL string) (string, bool) {
	key, ok := strings.CutPrefix(assetURL, s.baseURL+"/")
	if !ok || strings.Contains(key, "..") {
		return "", false
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), true
}

// detectMIME trusts the file extension first, then sniffs the content.
func detectMIME(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return stripParams(t)
	}
	return stripParams(mimetype.Detect(data).String())
}

func stripParams(t string) string {
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func extensionFor(name, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
