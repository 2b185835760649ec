package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const page = `<html><body><table id="runTable"><tbody><tr><td>x</td></tr></tbody></table></body></html>`

func TestHTTPFetcherConditionalGET(t *testing.T) {
	var hits, notModified int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent header")
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPOptions{URL: server.URL, CacheDir: t.TempDir()})

	for i := 0; i < 2; i++ {
		body, err := f.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch() #%d error = %v", i, err)
		}
		if body != page {
			t.Fatalf("Fetch() #%d body = %q", i, body)
		}
	}
	if atomic.LoadInt32(&hits) != 2 || atomic.LoadInt32(&notModified) != 1 {
		t.Errorf("hits = %d, notModified = %d; want 2 and 1", hits, notModified)
	}
}

func TestHTTPFetcherNotModifiedWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(HTTPOptions{URL: server.URL}).Fetch(context.Background())
	if !errors.Is(err, ErrNotModifiedNoCache) {
		t.Errorf("Fetch() error = %v, want ErrNotModifiedNoCache", err)
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(HTTPOptions{URL: server.URL, CacheDir: t.TempDir()}).Fetch(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("Fetch() error = %v, want StatusError 503", err)
	}
}

func TestHTTPFetcherDecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Pokémon" in Latin-1.
		_, _ = w.Write([]byte("<p>Pok\xe9mon</p>"))
	}))
	defer server.Close()

	body, err := NewHTTPFetcher(HTTPOptions{URL: server.URL}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(body, "Pokémon") {
		t.Errorf("body = %q, want UTF-8 Pokémon", body)
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPOptions{URL: server.URL, Timeout: 50 * time.Millisecond})
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch() expected timeout error")
	}
}

func TestFetchersRequireURL(t *testing.T) {
	if _, err := NewHTTPFetcher(HTTPOptions{}).Fetch(context.Background()); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("HTTPFetcher error = %v, want ErrEmptyURL", err)
	}
	if _, err := NewChromiumFetcher(ChromiumOptions{}).Fetch(context.Background()); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("ChromiumFetcher error = %v, want ErrEmptyURL", err)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://gamesdonequick.com/schedule", "https://gamesdonequick.com/...(redacted)"},
		{"https://example.com", "https://example.com"},
		{"not a url", "...(redacted)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
