package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gdqnow/internal/config"
	"gdqnow/internal/display"
	"gdqnow/internal/model"
	"gdqnow/internal/refresh"
	"gdqnow/internal/render"
	"gdqnow/internal/schedule"
)

func sampleResult() refresh.Result {
	start := time.Date(2024, 1, 14, 17, 0, 0, 0, time.UTC)
	length := 90 * time.Minute
	cur := model.Entry{StartTime: start, Length: &length, Title: "Super Mario Odyssey", Runner: "Runner", Category: "Any%"}
	next := model.Entry{StartTime: start.Add(length), Title: "Celeste"}
	return refresh.Result{
		At:       start.Add(10 * time.Minute),
		Label:    render.Label{Text: "Super Mario Odyssey -> Celeste", Icon: "joystick", Category: "Any%", State: render.StateOK},
		Current:  &cur,
		Next:     &next,
		Entries:  []model.Entry{cur, next},
		Discards: []*schedule.Discard{{Index: 3, Reason: schedule.ErrMalformedRow, Err: errors.New("short")}},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, withResult bool) *httptest.Server {
	t.Helper()
	latest := &display.Latest{}
	if withResult {
		_ = latest.Show(sampleResult())
	}
	srv := httptest.NewServer(NewServer(cfg, latest).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), true)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "Super Mario Odyssey -> Celeste" || got.State != "ok" {
		t.Errorf("unexpected status %+v", got)
	}
	if got.Current == nil || got.Current.Length != "01:30:00" || got.Next == nil || got.Next.Title != "Celeste" {
		t.Errorf("unexpected entries current=%+v next=%+v", got.Current, got.Next)
	}
	if got.Entries != 2 || got.Discarded != 1 {
		t.Errorf("entries = %d, discarded = %d", got.Entries, got.Discarded)
	}
}

func TestEndpointsBeforeFirstPass(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), false)

	for _, path := range []string{"/api/status", "/api/entries", "/schedule.ics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, resp.StatusCode)
		}
	}
}

func TestEntriesAndICS(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), true)

	resp, err := http.Get(srv.URL + "/api/entries")
	if err != nil {
		t.Fatal(err)
	}
	var entries []entryDTO
	err = json.NewDecoder(resp.Body).Decode(&entries)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Title != "Celeste" {
		t.Errorf("entries = %+v", entries)
	}

	resp, err = http.Get(srv.URL + "/schedule.ics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "SUMMARY:Super Mario Odyssey") {
		t.Errorf("ics missing summary:\n%s", buf.String())
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		auth     *config.BasicAuthConfig
		user     string
		password string
		want     int
	}{
		{"plain ok", &config.BasicAuthConfig{Username: "admin", Password: "secret"}, "admin", "secret", http.StatusOK},
		{"plain wrong", &config.BasicAuthConfig{Username: "admin", Password: "secret"}, "admin", "nope", http.StatusUnauthorized},
		{"hash ok", &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}, "admin", "hunter2", http.StatusOK},
		{"hash wrong", &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}, "admin", "secret", http.StatusUnauthorized},
		{"wrong user", &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}, "root", "hunter2", http.StatusUnauthorized},
		{"no credentials", &config.BasicAuthConfig{Username: "admin", Password: "secret"}, "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.BasicAuth = tt.auth
			srv := newTestServer(t, cfg, true)

			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.password)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}

			health, err := http.Get(srv.URL + "/health")
			if err != nil {
				t.Fatal(err)
			}
			health.Body.Close()
			if health.StatusCode != http.StatusOK {
				t.Errorf("/health status = %d, want 200", health.StatusCode)
			}
		})
	}
}

func TestStatusRejectsPost(t *testing.T) {
	srv := newTestServer(t, config.DefaultConfig(), true)
	resp, err := http.Post(srv.URL+"/api/status", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
