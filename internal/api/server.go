// Package api serves a running simulation over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (pacing control).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/owenfs/contagion/internal/agent"
	"github.com/owenfs/contagion/internal/engine"
	"github.com/owenfs/contagion/internal/persistence"
)

// Server exposes simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Runner   *engine.Runner
	DB       *persistence.DB // nil disables the stored-runs endpoint
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	agentLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", RateLimitMiddleware(agentLimiter, s.handleAgents))
	mux.HandleFunc("/api/v1/series", s.handleSeries)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/variants", s.handleVariants)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST
// requests. GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "control endpoints disabled (no CONTAGION_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	scenario := s.Sim.Scenario()
	status := map[string]any{
		"scenario":          scenario.Name,
		"seed":              scenario.Seed,
		"n":                 scenario.N,
		"mode":              scenario.Spatial.Mode,
		"tick":              s.Sim.Tick(),
		"max_ticks":         scenario.MaxTicks,
		"counts":            s.Sim.Counts(),
		"active_infections": s.Sim.ActiveInfections(),
		"stopped":           string(s.Sim.StoppedReason()),
	}
	if s.Runner != nil {
		status["speed"] = s.Runner.Speed()
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	stateFilter := r.URL.Query().Get("state")
	if stateFilter != "" {
		if _, ok := agent.ParseState(stateFilter); !ok {
			http.Error(w, "unknown state", http.StatusBadRequest)
			return
		}
	}

	type agentSummary struct {
		ID          agent.ID `json:"id"`
		X           float64  `json:"x"`
		Y           float64  `json:"y"`
		State       string   `json:"state"`
		Variant     string   `json:"variant,omitempty"`
		Quarantined bool     `json:"quarantined,omitempty"`
	}

	variantsOn := s.Sim.Scenario().Disease.Variants.Enabled
	result := make([]agentSummary, 0)
	for _, a := range s.Sim.Agents() {
		if stateFilter != "" && a.State.String() != stateFilter {
			continue
		}
		entry := agentSummary{
			ID:          a.ID,
			X:           a.Position.X,
			Y:           a.Position.Y,
			State:       a.State.String(),
			Quarantined: a.Quarantined,
		}
		if variantsOn && (a.State == agent.Exposed || a.State == agent.Infectious) {
			entry.Variant = s.Sim.VariantName(a.Strain)
		}
		result = append(result, entry)
	}
	writeJSON(w, result)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series := s.Sim.Series()
	if l := r.URL.Query().Get("last"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n < len(series) {
			series = series[len(series)-n:]
		}
	}
	writeJSON(w, series)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.Events()
	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	type variantSummary struct {
		Name        string  `json:"name"`
		Infectivity float64 `json:"infectivity"`
		Fatality    float64 `json:"fatality"`
		FirstTick   uint64  `json:"first_tick"`
	}

	result := make([]variantSummary, 0)
	for _, v := range s.Sim.Variants() {
		result = append(result, variantSummary{
			Name:        s.Sim.VariantName(v.Code),
			Infectivity: v.Infectivity,
			Fatality:    v.Fatality,
			FirstTick:   v.FirstTick,
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run storage not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := s.DB.RecentRuns(limit)
	if err != nil {
		slog.Error("run listing failed", "error", err)
		http.Error(w, "run listing failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.RunSummary{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		http.Error(w, "no paced runner attached", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Runner.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Runner.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
