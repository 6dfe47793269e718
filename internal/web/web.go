package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"timesheet/internal/aggregate"
	"timesheet/internal/config"
	"timesheet/internal/history"
	appLog "timesheet/internal/log"
)

// WeekStore is the read side of the history store.
type WeekStore interface {
	List(ctx context.Context) ([]history.Entry, error)
	Get(ctx context.Context, weekStart string) (history.Entry, error)
}

// Server exposes the recorded weeks as a read-only JSON API.
type Server struct {
	cfg   *config.Config
	weeks WeekStore
	mux   *http.ServeMux
}

// NewServer constructs a new Server. weeks may be nil when history is not
// configured; the /api endpoints then answer 503.
func NewServer(cfg *config.Config, weeks WeekStore) *Server {
	s := &Server{
		cfg:   cfg,
		weeks: weeks,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="timesheet", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, weeks WeekStore) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, weeks).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "history", weeks != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/weeks", s.handleWeeks)
	s.mux.HandleFunc("GET /api/weeks/latest", s.handleLatest)
	s.mux.HandleFunc("GET /api/weeks/{week}", s.handleWeek)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// categoryDTO is one category column of a week.
type categoryDTO struct {
	Code      string  `json:"code"`
	Label     string  `json:"label"`
	Hours     float64 `json:"hours"`
	Formatted string  `json:"formatted"`
}

// weekDTO is the JSON view of a stored week.
type weekDTO struct {
	WeekStart       string        `json:"week_start"`
	Categories      []categoryDTO `json:"categories"`
	WeeklyDaysHours string        `json:"weekly_days_hours"`
	WeeklyHours     float64       `json:"weekly_hours"`
	RecordedAt      time.Time     `json:"recorded_at"`
}

type weeksResponse struct {
	Weeks []weekDTO `json:"weeks"`
}

func toDTO(e history.Entry) weekDTO {
	rec := e.Record
	cats := make([]categoryDTO, 0, len(aggregate.Categories()))
	for _, c := range aggregate.Categories() {
		d := rec.Totals.Total(c)
		cats = append(cats, categoryDTO{
			Code:      c.String(),
			Label:     c.Label(),
			Hours:     d.Hours(),
			Formatted: aggregate.FormatDuration(d, aggregate.DefaultDurationPattern),
		})
	}
	return weekDTO{
		WeekStart:       rec.Key(),
		Categories:      cats,
		WeeklyDaysHours: aggregate.FormatDuration(rec.WeeklyTotal(), aggregate.DefaultDurationPattern),
		WeeklyHours:     rec.WeeklyHours(),
		RecordedAt:      e.RecordedAt,
	}
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.weeks == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return false
	}
	return true
}

func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	entries, err := s.weeks.List(r.Context())
	if err != nil {
		appLog.Error("api weeks: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list weeks")
		return
	}
	resp := weeksResponse{Weeks: make([]weekDTO, 0, len(entries))}
	for _, e := range entries {
		resp.Weeks = append(resp.Weeks, toDTO(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	entries, err := s.weeks.List(r.Context())
	if err != nil {
		appLog.Error("api weeks latest: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list weeks")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "no weeks recorded")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(entries[0]))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	week := r.PathValue("week")
	if _, err := time.Parse(aggregate.WeekStartLayout, week); err != nil {
		writeError(w, http.StatusBadRequest, "week must be YYYY-MM-DD")
		return
	}
	e, err := s.weeks.Get(r.Context(), week)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "week not found")
		return
	}
	if err != nil {
		appLog.Error("api week: get failed", err, "week", week)
		writeError(w, http.StatusInternalServerError, "failed to load week")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(e))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
