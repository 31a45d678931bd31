package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/pingkeeper/internal/domain"
	apimw "github.com/hamed0406/pingkeeper/internal/httpapi/middleware"
	"github.com/hamed0406/pingkeeper/internal/metrics"
	"github.com/hamed0406/pingkeeper/internal/registry"
	"github.com/hamed0406/pingkeeper/internal/repo"
	"github.com/hamed0406/pingkeeper/internal/scheduler"
	"github.com/hamed0406/pingkeeper/internal/stats"
)

type Server struct {
	Logger   *zap.Logger
	Targets  repo.TargetStore
	Pings    repo.PingStore
	Prober   scheduler.Runner
	Stats    *stats.Service
	Registry *registry.Service
	Metrics  *metrics.Metrics
}

func NewServer(
	l *zap.Logger,
	ts repo.TargetStore,
	ps repo.PingStore,
	prober scheduler.Runner,
	st *stats.Service,
	reg *registry.Service,
	m *metrics.Metrics,
) *Server {
	return &Server{
		Logger:   l,
		Targets:  ts,
		Pings:    ps,
		Prober:   prober,
		Stats:    st,
		Registry: reg,
		Metrics:  m,
	}
}

// Router wires every route. pingRPM/pingBurst limit /api/ping per client;
// pingRPM <= 0 disables the limit.
func (s *Server) Router(allowedOrigins []string, pingRPM, pingBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", s.Metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.With(apimw.RateLimit(pingRPM, pingBurst, s.Logger)).Get("/ping", s.handlePing)
		r.Get("/dashboard", s.handleStats)
		r.Get("/stats", s.handleStats)
		r.Get("/pings", s.handlePings)
		r.Get("/get-urls", s.handleListTargets)
		r.Get("/url", s.handleURL)
	})

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Health{Status: "running", StatusCode: http.StatusOK})
}

type pingResponse struct {
	Msg     string               `json:"msg"`
	Results []domain.ProbeResult `json:"results"`
}

// handlePing runs a probe pass synchronously; the pass completes and is
// recorded even if the client goes away. Partial write failures still
// return the results that made it, with 503.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	results, err := s.Prober.RunOnce(r.Context(), metrics.TriggerOnDemand)
	if results == nil {
		results = []domain.ProbeResult{}
	}
	if err != nil {
		s.Logger.Warn("ping_failed", zap.Error(err))
		if len(results) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"msg":     "pong",
				"results": results,
				"error":   err.Error(),
			})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pingResponse{Msg: "pong", Results: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stats.ComputeStats(r.Context(), strings.TrimSpace(r.URL.Query().Get("url")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePings(w http.ResponseWriter, r *http.Request) {
	pings, err := s.Pings.ListPings(r.Context(), strings.TrimSpace(r.URL.Query().Get("url")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if pings == nil {
		pings = []domain.PingRecord{}
	}
	writeJSON(w, http.StatusOK, pings)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.ListTargets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ts == nil {
		ts = []domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

// handleURL serves /api/url?action=add|edit|delete&name=&id=&url=
func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmd, err := registry.ParseAction(q.Get("action"), q.Get("name"), q.Get("id"), q.Get("url"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.Registry.Execute(r.Context(), cmd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, registry.ErrInvalid):
		status, msg = http.StatusBadRequest, strings.TrimPrefix(err.Error(), registry.ErrInvalid.Error()+": ")
	case errors.Is(err, repo.ErrDuplicateName):
		status, msg = http.StatusConflict, "URL with this name already exists."
	case errors.Is(err, repo.ErrNotFound):
		status, msg = http.StatusNotFound, "URL with this name does not exist."
	case repo.IsStorage(err):
		status, msg = http.StatusServiceUnavailable, "storage unavailable"
	}
	if status >= 500 {
		s.Logger.Error("request_failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
