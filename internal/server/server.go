// Package server exposes the hunting pipeline as a local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyulab/huntdesk/internal/backend"
	"github.com/iyulab/huntdesk/internal/esql"
	"github.com/iyulab/huntdesk/internal/hunt"
	"github.com/iyulab/huntdesk/internal/indicators"
	"github.com/iyulab/huntdesk/internal/releases"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

var errReleasesNotConfigured = errors.New("releases not configured")

// Server is a local HTTP server in front of a Hunter and a release cache.
type Server struct {
	hunter     *hunt.Hunter
	releases   *releases.Cache // optional
	httpServer *http.Server
}

// New creates a Server. rel may be nil, in which case the release routes answer 503.
func New(h *hunt.Hunter, rel *releases.Cache) *Server {
	return &Server{hunter: h, releases: rel}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/query/esql", s.handleQueryESQL).Methods(http.MethodPost)
	r.HandleFunc("/api/query/kql", s.handleQueryKQL).Methods(http.MethodPost)
	r.HandleFunc("/api/hunt", s.handleHunt).Methods(http.MethodPost)
	r.HandleFunc("/api/indicators", s.handleIndicators).Methods(http.MethodPost)
	r.HandleFunc("/api/enrich", s.handleEnrich).Methods(http.MethodPost)
	r.HandleFunc("/api/releases", s.handleReleases).Methods(http.MethodGet)
	r.HandleFunc("/api/releases/cache", s.handleClearReleases).Methods(http.MethodDelete)
	r.HandleFunc("/api/releases/{version}", s.handleRelease).Methods(http.MethodGet)
	return r
}

// Start begins listening on the given port (0 = OS-assigned). Returns "host:port".
func (s *Server) Start(ctx context.Context, port int) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
		}
	}()

	slog.Info("api listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryResponse struct {
	Query string `json:"query"`
}

func (s *Server) handleQueryESQL(w http.ResponseWriter, r *http.Request) {
	var q esql.Query
	if !decode(w, r, &q) {
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Query: esql.Build(q)})
}

type kqlRequest struct {
	Conditions []esql.FilterCondition `json:"conditions"`
}

func (s *Server) handleQueryKQL(w http.ResponseWriter, r *http.Request) {
	var req kqlRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Query: esql.BuildKQL(req.Conditions)})
}

func (s *Server) handleHunt(w http.ResponseWriter, r *http.Request) {
	var req hunt.Request
	if !decode(w, r, &req) {
		return
	}
	if req.Dialect != "" {
		d, err := hunt.ParseDialect(string(req.Dialect))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Dialect = d
	}

	rep, err := s.hunter.Run(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type sourceRequest struct {
	Source map[string]any `json:"source"`
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, indicators.Extract(req.Source))
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.hunter.Enrich(r.Context(), req.Source)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request) {
	if s.releases == nil {
		writeError(w, http.StatusServiceUnavailable, errReleasesNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, s.releases.List(r.Context()))
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if s.releases == nil {
		writeError(w, http.StatusServiceUnavailable, errReleasesNotConfigured)
		return
	}
	version := mux.Vars(r)["version"]
	rel, ok := s.releases.Find(r.Context(), version)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("release %s not found", version))
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleClearReleases(w http.ResponseWriter, r *http.Request) {
	if s.releases == nil {
		writeError(w, http.StatusServiceUnavailable, errReleasesNotConfigured)
		return
	}
	s.releases.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return false
	}
	return true
}

// statusFor maps backend failures to 502, a missing enricher to 503 and
// everything else to 400.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr), errors.Is(err, backend.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, hunt.ErrNoEnricher):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
