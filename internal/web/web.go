package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"calshell/internal/battery"
	"calshell/internal/config"
	"calshell/internal/dates"
	"calshell/internal/ics"
	appLog "calshell/internal/log"
	"calshell/internal/ui/device"
)

const (
	maxDays     = 62
	maxBackfill = 31
)

// Server serves the calendar pages and the JSON API.
type Server struct {
	cfg     *config.Config
	agenda  *Agenda
	battery battery.Reader
	loc     *time.Location
	now     func() time.Time
	mux     *http.ServeMux
}

// NewServer wires the routes. battery may be nil.
func NewServer(cfg *config.Config, agenda *Agenda, br battery.Reader) *Server {
	s := &Server{
		cfg:     cfg,
		agenda:  agenda,
		battery: br,
		loc:     cfg.Location(),
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/battery", s.handleBattery)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /{$}", s.handleCalendar)
}

// Handler returns the full middleware chain: device classification, then
// Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := device.Middleware(s.cfg.Layout.MobileBreakpoint, s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe binds the configured address and serves until ctx is
// canceled. Bind errors are returned before anything is served.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String(), "basic_auth", s.basicAuthEnabled())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware guards everything except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="calshell", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) normalizer() dates.Normalizer {
	return dates.Normalizer{Location: s.loc, Now: s.now}
}

// handleCalendar renders the agenda page.
//
// GET /calendar?date=2024-01-15&days=7
//   - date: first day, in the display timezone (default today)
//   - days: number of days (default horizon_days, max 62)
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	norm := s.normalizer()
	q := r.URL.Query()

	today := norm.Day(norm.Parse(""))
	start := today
	if raw := q.Get("date"); raw != "" {
		t, err := norm.ParseStrict(raw)
		if err != nil {
			http.Error(w, "invalid date: use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = norm.Day(t)
	}
	days := clamp(parseIntDefault(q.Get("days"), s.cfg.HorizonDays), 1, maxDays)
	end := start.AddDate(0, 0, days)

	exp, err := s.agenda.Window(ctx, start, end)
	if err != nil {
		appLog.Error("calendar expand failed", err)
		http.Error(w, "failed to build agenda", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:      "calshell",
		Start:      start,
		Days:       ics.GroupByDay(exp.Occurrences, norm, start, days, today),
		DayCount:   days,
		PrevKey:    norm.Key(start.AddDate(0, 0, -days)),
		NextKey:    norm.Key(end),
		TodayKey:   norm.Key(today),
		ShowAllDay: s.cfg.ShowAllDay,
		Updated:    s.agenda.LastRefresh(),
	}
	if device.ClassFrom(ctx) == device.Mobile {
		data.Battery = s.readBattery(ctx)
	}

	var buf bytes.Buffer
	if err := calendarPage(device.FromContext{}, data).Render(ctx, &buf); err != nil {
		appLog.Error("calendar render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) readBattery(ctx context.Context) *battery.Status {
	if s.battery == nil {
		return nil
	}
	st, err := s.battery.Read(ctx)
	if err != nil {
		appLog.Warn("battery read failed", "reason", err)
		return nil
	}
	return &st
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if s.battery == nil {
		writeError(w, http.StatusServiceUnavailable, "battery reader unavailable")
		return
	}
	st, err := s.battery.Read(r.Context())
	if err != nil {
		appLog.Error("battery read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read battery")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath())
}

type eventsResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
	WeekStart       string          `json:"week_start"`
}

type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	AllDay      bool      `json:"all_day"`
	Highlight   bool      `json:"highlight"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents returns expanded occurrences.
//
// GET /api/events?date=2024-01-15&days=7&backfill=1
//   - date:     anchor day (default today), display timezone
//   - days:     days after the anchor (default 7)
//   - backfill: days before the anchor (default 1)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	norm := s.normalizer()
	q := r.URL.Query()

	anchor := norm.Parse("")
	if raw := q.Get("date"); raw != "" {
		t, err := norm.ParseStrict(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		anchor = t
	}
	days := clamp(parseIntDefault(q.Get("days"), 7), 1, maxDays)
	backfill := clamp(parseIntDefault(q.Get("backfill"), 1), 0, maxBackfill)
	rangeStart := anchor.AddDate(0, 0, -backfill)
	rangeEnd := anchor.AddDate(0, 0, days)

	exp, err := s.agenda.Window(r.Context(), rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("api events: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(exp.Occurrences))
	for _, o := range exp.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			SourceID:    o.SourceID,
			UID:         o.UID,
			InstanceKey: o.InstanceKey,
			Summary:     o.Summary,
			Description: o.Description,
			Location:    o.Location,
			AllDay:      o.AllDay,
			Highlight:   o.Highlight,
			Start:       o.Start,
			End:         o.End,
		})
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Occurrences:     dtos,
		TruncatedUIDs:   exp.Truncated,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: s.loc.String(),
		WeekStart:       s.cfg.WeekStart,
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
