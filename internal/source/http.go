package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html/charset"

	appLog "gdqnow/internal/log"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "gdqnow/0.1 (+schedule status)"
	maxBodyBytes     = 16 << 20
)

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	// CacheDir enables conditional GET (ETag / Last-Modified) with the body
	// kept on disk. Empty disables caching.
	CacheDir string
}

// HTTPFetcher downloads the schedule page over plain HTTP.
type HTTPFetcher struct {
	url       string
	userAgent string
	cacheDir  string
	client    *http.Client
}

// cacheMeta holds the HTTP validators of the last 200 response.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewHTTPFetcher creates an HTTPFetcher, filling in defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
	}
	return &HTTPFetcher{
		url:       opts.URL,
		userAgent: opts.UserAgent,
		cacheDir:  opts.CacheDir,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
	}
}

// Fetch downloads the page and returns it decoded to UTF-8. A 304 answer
// reuses the cached body; network errors and other statuses are returned
// as errors even when a cached copy exists.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	if f.url == "" {
		return "", ErrEmptyURL
	}

	cachePath := f.cachePath()
	var meta cacheMeta
	if cachePath != "" {
		meta, _ = loadCacheMeta(cachePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("schedule fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if cachePath == "" {
			return "", ErrNotModifiedNoCache
		}
		body, err := os.ReadFile(filepath.Join(cachePath, "body.html"))
		if err != nil || len(body) == 0 {
			return "", ErrNotModifiedNoCache
		}
		appLog.Debug("schedule not modified; using cache", "url", redactURL(f.url))
		return decode(body, meta.ContentType)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return "", fmt.Errorf("source: read body: %w", err)
		}
		contentType := resp.Header.Get("Content-Type")

		if cachePath != "" {
			newMeta := cacheMeta{
				URL:          f.url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				ContentType:  contentType,
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				// Still usable; only the next conditional GET is lost.
				appLog.Error("schedule cache save failed", err, "url", redactURL(f.url))
			}
		}

		appLog.Debug("schedule fetch success", "url", redactURL(f.url), "status", resp.StatusCode, "bytes", len(body))
		return decode(body, contentType)

	default:
		return "", &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

// decode converts body to UTF-8 using the declared or sniffed charset.
func decode(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("source: decode body: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("source: decode body: %w", err)
	}
	return string(out), nil
}

func (f *HTTPFetcher) cachePath() string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(f.url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheMeta, body []byte) error {
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return err
	}

	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.html"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
