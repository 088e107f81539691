package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/export"
	"barbershop/internal/metrics"
	"barbershop/internal/models"
	"barbershop/internal/service"
	"barbershop/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPServer is the input surface of the scheduler and serves the rendered view.
type HTTPServer struct {
	cfg      config.APIConfig
	session  *service.SchedulerSession
	view     *ViewState
	services []models.Service
	exports  string
	logger   *zerolog.Logger
	server   *http.Server
}

// NewHTTPServer wires the routes. exportsDir is where saved history exports go.
func NewHTTPServer(cfg config.APIConfig, session *service.SchedulerSession, view *ViewState, services []models.Service, exportsDir string, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		session:  session,
		view:     view,
		services: services,
		exports:  exportsDir,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(srv.loggingMiddleware)
	r.Use(newRateLimiter(cfg.RateLimit).Wrap)

	r.Get("/healthz", srv.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", srv.handleView)
		r.Post("/events", srv.handleEvent)
		r.Get("/services", srv.handleServices)
		r.Get("/history/export", srv.handleExport)
		r.Post("/history/export", srv.handleSaveExport)
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleView(w http.ResponseWriter, _ *http.Request) {
	var snap ViewSnapshot
	s.session.Observe(func() { snap = s.view.Snapshot() })
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	services := s.services
	if services == nil {
		services = []models.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

type eventRequest struct {
	Type     string   `json:"type"`
	Delta    int      `json:"delta"`
	Date     string   `json:"date"`
	Instant  string   `json:"instant"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Services []string `json:"services"`
	Key      string   `json:"key"`
}

func (s *HTTPServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body eventRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev, err := s.parseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The snapshot is taken before another event or view request can drain it.
	var snap ViewSnapshot
	if err := s.session.HandleEventAndObserve(r.Context(), ev, func() { snap = s.view.Snapshot() }); err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("event", string(ev.Kind)).Msg("event failed")
		} else {
			s.logger.Debug().Err(err).Str("event", string(ev.Kind)).Msg("event rejected")
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "view": snap})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// parseEvent maps the wire request onto a session event. Name and phone are
// required here, the way the booking form requires them.
func (s *HTTPServer) parseEvent(body eventRequest) (service.Event, error) {
	kind := service.EventKind(strings.TrimSpace(body.Type))
	ev := service.Event{Kind: kind}

	switch kind {
	case service.EventMonthChanged:
		ev.Delta = body.Delta
	case service.EventDateClicked:
		date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(body.Date), s.session.Location())
		if err != nil {
			return ev, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
		}
		ev.Date = date
	case service.EventSlotClicked:
		instant, err := time.Parse(time.RFC3339, strings.TrimSpace(body.Instant))
		if err != nil {
			return ev, fmt.Errorf("invalid instant; expected RFC 3339")
		}
		ev.Instant = instant
	case service.EventFormSubmitted:
		if strings.TrimSpace(body.Name) == "" {
			return ev, fmt.Errorf("name is required")
		}
		if strings.TrimSpace(body.Phone) == "" {
			return ev, fmt.Errorf("phone is required")
		}
		ev.Name, ev.Phone, ev.Services = body.Name, body.Phone, body.Services
	case service.EventExternalStoreChanged:
		ev.Key = body.Key
		if ev.Key == "" {
			ev.Key = models.KeyAppointments
		}
	default:
		return ev, fmt.Errorf("unknown event type %q", body.Type)
	}
	return ev, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrServiceRequired), errors.Is(err, service.ErrDateNotSelectable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSlotTaken), errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, service.ErrNoDateSelected), errors.Is(err, service.ErrNoSlotSelected):
		return http.StatusConflict
	case errors.Is(err, store.ErrPersistenceWrite), errors.Is(err, store.ErrPersistenceRead):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnknownEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, _ *http.Request) {
	view := s.session.History()
	if view.Err != nil {
		writeError(w, http.StatusInternalServerError, models.MessageHistoryFailed)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryXLSX(&buf, view.Entries, s.session.Location()); err != nil {
		s.logger.Error().Err(err).Msg("history export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="historico.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleSaveExport(w http.ResponseWriter, _ *http.Request) {
	view := s.session.History()
	if view.Err != nil {
		writeError(w, http.StatusInternalServerError, models.MessageHistoryFailed)
		return
	}

	path, err := export.SaveHistoryXLSX(s.exports, view.Entries, s.session.Location(), time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("history export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	s.logger.Info().Str("path", path).Int("entries", len(view.Entries)).Msg("history exported")
	writeJSON(w, http.StatusCreated, map[string]any{"path": path, "entries": len(view.Entries)})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(route)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
