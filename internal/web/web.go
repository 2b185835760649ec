package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gdqnow/internal/config"
	"gdqnow/internal/display"
	"gdqnow/internal/ics"
	appLog "gdqnow/internal/log"
	"gdqnow/internal/model"
	"gdqnow/internal/refresh"
)

// Server exposes the last refresh result over HTTP.
type Server struct {
	cfg    *config.Config
	latest *display.Latest
	mux    *http.ServeMux
}

// NewServer constructs a new Server reading from latest.
func NewServer(cfg *config.Config, latest *display.Latest) *Server {
	s := &Server{
		cfg:    cfg,
		latest: latest,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	ba := s.cfg.BasicAuth
	return ba.Username != "" && (ba.Password != "" || ba.PasswordHash != "")
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	ba := *s.cfg.BasicAuth

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, ba.Username) || !checkPassword(ba, p) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gdqnow", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkPassword prefers the bcrypt hash when one is configured.
func checkPassword(ba config.BasicAuthConfig, password string) bool {
	if ba.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(ba.PasswordHash), []byte(password)) == nil
	}
	return secureCompare(password, ba.Password)
}

// HashPassword returns a bcrypt hash suitable for basic_auth.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/entries", s.handleEntries)
	s.mux.HandleFunc("/schedule.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// entryDTO is a JSON-friendly view of a model.Entry.
type entryDTO struct {
	Title     string    `json:"title"`
	Runner    string    `json:"runner"`
	Category  string    `json:"category"`
	Host      string    `json:"host"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Length    string    `json:"length,omitempty"`
	SetupTime string    `json:"setup_time,omitempty"`
}

func toDTO(e model.Entry) entryDTO {
	start, end := e.Window()
	return entryDTO{
		Title:     e.Title,
		Runner:    e.Runner,
		Category:  e.Category,
		Host:      e.Host,
		Start:     start,
		End:       end,
		Length:    model.FormatClock(e.Length),
		SetupTime: model.FormatClock(e.SetupTime),
	}
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	Text      string    `json:"text"`
	Icon      string    `json:"icon"`
	Category  string    `json:"category,omitempty"`
	State     string    `json:"state"`
	Failure   string    `json:"failure,omitempty"`
	Error     string    `json:"error,omitempty"`
	Current   *entryDTO `json:"current,omitempty"`
	Next      *entryDTO `json:"next,omitempty"`
	Entries   int       `json:"entries"`
	Discarded int       `json:"discarded"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newStatusResponse(res refresh.Result) statusResponse {
	resp := statusResponse{
		Text:      res.Label.Text,
		Icon:      res.Label.Icon,
		Category:  res.Label.Category,
		State:     string(res.Label.State),
		Failure:   string(res.Failure),
		Entries:   len(res.Entries),
		Discarded: len(res.Discards),
		UpdatedAt: res.At,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if res.Current != nil {
		d := toDTO(*res.Current)
		resp.Current = &d
	}
	if res.Next != nil {
		d := toDTO(*res.Next)
		resp.Next = &d
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lastResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(res))
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lastResult(w, r)
	if !ok {
		return
	}
	dtos := make([]entryDTO, 0, len(res.Entries))
	for _, e := range res.Entries {
		dtos = append(dtos, toDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleICS serves the entries of the last pass as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lastResult(w, r)
	if !ok {
		return
	}
	body := ics.Export(res.Entries, ics.ExportOptions{
		Name:  "Schedule",
		TTL:   s.cfg.Interval,
		Stamp: res.At,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// lastResult writes an error response and returns false when the method is
// not GET or no pass has completed yet.
func (s *Server) lastResult(w http.ResponseWriter, r *http.Request) (refresh.Result, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return refresh.Result{}, false
	}
	res, ok := s.latest.Get()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no refresh completed yet")
		return refresh.Result{}, false
	}
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
