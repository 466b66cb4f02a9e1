// Package api provides the HTTP API for watching and playing the arena.
// GET endpoints are public (read-only observation).
// POST endpoints and the websocket require a bearer token when an admin key is set.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/gold-arena/internal/arena"
	"github.com/talgya/gold-arena/internal/economy"
	"github.com/talgya/gold-arena/internal/engine"
	"github.com/talgya/gold-arena/internal/llm"
	"github.com/talgya/gold-arena/internal/persistence"
)

const (
	maxSSEConns = 4
	maxWSConns  = 8
)

// Server serves the arena over HTTP and websocket.
type Server struct {
	Sim        *engine.Simulation
	Eng        *engine.Engine
	DB         *persistence.DB  // Optional; history endpoints return 503 without it
	Commentary *llm.Commentator // Optional
	Port       int
	AdminKey   string // Bearer token for POST endpoints. Empty = open.

	sseConns int32
	wsConns  int32
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
	}

	// Purchases mutate saved progression; keep scripted clients honest.
	purchaseLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/progression", s.handleProgression)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/matches", s.handleMatches)
	mux.HandleFunc("/api/v1/commentary", s.handleCommentary)
	mux.HandleFunc("/api/v1/config", s.handleConfig)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Control endpoints (POST, bearer token when configured).
	mux.HandleFunc("/api/v1/start", s.adminOnly(postOnly(s.handleStart)))
	mux.HandleFunc("/api/v1/acknowledge", s.adminOnly(postOnly(s.handleAcknowledge)))
	mux.HandleFunc("/api/v1/purchase", s.adminOnly(postOnly(RateLimitMiddleware(purchaseLimiter, s.handlePurchase))))
	mux.HandleFunc("/api/v1/intent", s.adminOnly(postOnly(s.handleIntent)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	// Live play: snapshots out, intents in.
	mux.HandleFunc("/api/v1/ws", s.handleWS)

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
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

// checkBearerToken returns true if the request carries the admin key, either as a
// bearer token or (for browser websockets) as the token query parameter.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey {
		return true
	}
	return r.URL.Query().Get("token") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Snapshot()
	p := s.Sim.Progression()

	status := map[string]any{
		"name":         "Gold Arena",
		"status":       st.Status,
		"match_id":     st.MatchID,
		"tick":         st.Tick,
		"teams":        st.Teams,
		"scores":       teamMap(st.Scores),
		"reserves":     teamMap(st.Reserves),
		"winner":       st.Winner,
		"currency":     p.Currency,
		"speed":        s.Eng.Speed(),
		"engine_ticks": s.Eng.Ticks(),
		"running":      s.Eng.Running(),
	}
	writeJSON(w, status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	cfg := s.Sim.Config()
	p := s.Sim.Progression()

	type upgradeInfo struct {
		Level     int  `json:"level"`
		NextCost  int  `json:"next_cost"`
		CanAfford bool `json:"can_afford"`
	}
	upgrades := make(map[economy.Upgrade]upgradeInfo, len(economy.Upgrades))
	for _, kind := range economy.Upgrades {
		level, _ := p.Level(kind)
		cost, _ := economy.Cost(cfg, kind, p)
		upgrades[kind] = upgradeInfo{Level: level, NextCost: cost, CanAfford: p.Currency >= cost}
	}

	writeJSON(w, map[string]any{
		"currency":  p.Currency,
		"upgrades":  upgrades,
		"modifiers": economy.ModifiersFor(cfg, p),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100, 1000)

	// ?source=db reads the persisted log across restarts.
	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			http.Error(w, "history not available", http.StatusServiceUnavailable)
			return
		}
		events, err := s.DB.RecentEvents(limit)
		if err != nil {
			slog.Error("read events", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
		return
	}
	writeJSON(w, s.Sim.RecentEvents(limit))
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	matches, err := s.DB.RecentMatches(queryLimit(r, 20, 200))
	if err != nil {
		slog.Error("read matches", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, matches)
}

func (s *Server) handleCommentary(w http.ResponseWriter, r *http.Request) {
	if s.Commentary == nil {
		writeJSON(w, llm.Line{Text: llm.Welcome})
		return
	}
	writeJSON(w, s.Commentary.Latest())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Config())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Teams []arena.Team `json:"teams"`
	}
	if !readValid(w, r, startSchema, &req) {
		return
	}
	st, err := s.Sim.StartMatch(req.Teams...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.Acknowledge(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Upgrade economy.Upgrade `json:"upgrade"`
	}
	if !readValid(w, r, purchaseSchema, &req) {
		return
	}
	p, err := s.Sim.Purchase(req.Upgrade)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var in arena.Intent
	if !readValid(w, r, intentSchema, &in) {
		return
	}
	s.Sim.SubmitIntent(in)
	writeJSON(w, s.Sim.Intent())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleStream sends the events of every published snapshot as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Catch-up with the last 50 events.
	for _, e := range s.Sim.RecentEvents(50) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			for _, e := range st.Events {
				writeSSEEvent(w, e)
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, economy.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, economy.ErrUnknownUpgrade):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func queryLimit(r *http.Request, def, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// teamMap renders a per-team array keyed by team name.
func teamMap(v [arena.NumTeams]int) map[string]int {
	out := make(map[string]int, arena.NumTeams)
	for _, t := range arena.AllTeams {
		out[t.String()] = v[t]
	}
	return out
}
