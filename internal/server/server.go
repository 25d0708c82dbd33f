package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/selector"
	"github.com/hazz-dev/dnsswitch/internal/storage"
)

// Controller starts and stops the monitor loop.
type Controller interface {
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
}

// StateView exposes the monitor's shared state.
type StateView interface {
	Active() (selector.Pair, bool)
	Snapshot() ([]prober.Result, time.Time)
}

// Journal defines the storage queries the server needs.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
	LastStatus(ctx context.Context) (*storage.Entry, error)
}

// Subscriber hands out event subscriptions for the stream endpoint.
type Subscriber interface {
	Subscribe(buf int) (<-chan events.Event, func())
}

// Options holds the server's dependencies.
type Options struct {
	Interface  string
	Controller Controller
	State      StateView
	Journal    Journal
	Events     Subscriber
	// RunContext is the context monitor loops started over HTTP run under.
	// Defaults to context.Background().
	RunContext context.Context
}

// Server holds the chi router and its dependencies.
type Server struct {
	opts   Options
	router chi.Router
	logger *slog.Logger
}

// New creates a new Server and registers all routes.
func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RunContext == nil {
		opts.RunContext = context.Background()
	}
	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/results", s.handleResults)
	r.Post("/api/monitor/start", s.handleStart)
	r.Post("/api/monitor/stop", s.handleStop)
	r.Get("/api/events", s.handleEvents)
	if s.opts.Events != nil {
		r.Get("/api/stream", s.handleStream)
	}
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResponse struct {
	Interface  string         `json:"interface"`
	Running    bool           `json:"running"`
	Active     *selector.Pair `json:"active"`
	StatusText string         `json:"status_text"`
	LastRound  *time.Time     `json:"last_round"`
	LastChange *time.Time     `json:"last_change"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Interface:  s.opts.Interface,
		Running:    s.opts.Controller.Running(),
		StatusText: "Waiting for first round",
	}
	if p, ok := s.opts.State.Active(); ok {
		resp.Active = &p
		resp.StatusText = p.String()
	}
	if _, at := s.opts.State.Snapshot(); !at.IsZero() {
		resp.LastRound = &at
	}
	if s.opts.Journal != nil {
		last, err := s.opts.Journal.LastStatus(r.Context())
		if err != nil {
			s.logger.Error("LastStatus", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if last != nil {
			t := last.CreatedAt
			resp.LastChange = &t
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type resultRow struct {
	Endpoint  string    `json:"endpoint"`
	Latency   string    `json:"latency"`
	LatencyMs *int64    `json:"latency_ms"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type resultsResponse struct {
	RoundAt *time.Time  `json:"round_at"`
	Results []resultRow `json:"results"`
	Ranked  []string    `json:"ranked"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, at := s.opts.State.Snapshot()

	resp := resultsResponse{
		Results: make([]resultRow, 0, len(results)),
		Ranked:  []string{},
	}
	if !at.IsZero() {
		resp.RoundAt = &at
	}
	for _, res := range results {
		row := resultRow{
			Endpoint:  res.Endpoint,
			Latency:   res.LatencyText(),
			Status:    string(res.Status()),
			Error:     res.Error,
			CheckedAt: res.CheckedAt,
		}
		if res.Reachable {
			ms := res.Latency.Milliseconds()
			row.LatencyMs = &ms
		}
		resp.Results = append(resp.Results, row)
	}
	for _, res := range selector.Rank(results) {
		resp.Ranked = append(resp.Ranked, res.Endpoint)
	}
	writeJSON(w, http.StatusOK, resp)
}

type runResponse struct {
	Running bool `json:"running"`
	Changed bool `json:"changed"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	changed := s.opts.Controller.Start(s.opts.RunContext)
	writeJSON(w, http.StatusOK, runResponse{Running: s.opts.Controller.Running(), Changed: changed})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	changed := s.opts.Controller.Stop()
	writeJSON(w, http.StatusOK, runResponse{Running: s.opts.Controller.Running(), Changed: changed})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}

	const maxLimit = 1000

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}

	entries, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Recent", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	sw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
