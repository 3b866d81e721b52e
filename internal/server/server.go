// Package server exposes the scheduler's telemetry over HTTP: a
// WebSocket upgrade endpoint that streams the snapshot/delta wire
// formats, a reconfiguration endpoint for adding/removing targets, and
// a liveness probe, bound to the host:port from Configuration with the
// same graceful start/shutdown contract the teacher uses for its
// preview server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	coderws "github.com/coder/websocket"

	"github.com/conneroisu/netpulse/internal/logging"
	"github.com/conneroisu/netpulse/internal/scheduler"
	"github.com/conneroisu/netpulse/internal/target"
	"github.com/conneroisu/netpulse/internal/websocket"
)

// connRateLimiterWindow/connRateLimiterMax bound how many WebSocket
// upgrade attempts a single process accepts per window; NetPulse has
// no per-IP accounting, so this is a coarse global throttle.
const (
	connRateLimiterMax    = 60
	connRateLimiterWindow = time.Minute
	shutdownGrace         = 5 * time.Second

	// defaultAddPort is the port a POST /api/targets add request gets
	// when it omits one, mirroring the original handler's default.
	defaultAddPort = 443
)

// Server wires the telemetry Hub to an http.Server, serving /ws,
// /api/targets and /healthz. Samples/metrics/events reach the Hub
// through callbacks registered on the scheduler by the caller
// (cmd/serve.go), not through Server itself — Server only owns the HTTP
// surface, the Hub, and the reconfiguration entrypoint.
//
// The Scheduler is documented as single-goroutine-only; schedMu is the
// lock every caller (the tick loop, every HTTP handler goroutine, and
// the config file watcher) takes before touching it, the same way the
// teacher guards its clients map with clientsMutex.
type Server struct {
	addr     string
	hub      *websocket.Hub
	sched    *scheduler.Scheduler
	schedMu  *sync.Mutex
	schedCfg scheduler.Config // template for reconfiguration; Targets kept in sync with sched
	log      logging.Logger
	rl       *ConnThrottle
	httpSv   *http.Server
}

// New builds a Server bound to addr (host:port), broadcasting through
// hub and reading/mutating target state in sched. schedMu must be the
// same mutex the caller locks around every other access to sched
// (notably the tick loop's Tick calls). schedCfg is the configuration
// sched was last synced with; its Targets field is Server's own record
// of the live target list.
func New(addr string, sched *scheduler.Scheduler, schedMu *sync.Mutex, hub *websocket.Hub, schedCfg scheduler.Config, log logging.Logger) *Server {
	s := &Server{
		addr:     addr,
		hub:      hub,
		sched:    sched,
		schedMu:  schedMu,
		schedCfg: schedCfg,
		log:      log.WithComponent("server"),
		rl:       NewConnThrottle(connRateLimiterMax, connRateLimiterWindow),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/targets", s.handleTargets)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpSv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP; it blocks until the listener stops, and
// returns nil when Shutdown caused that stop.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "http server listening", "addr", s.addr)
	err := s.httpSv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and closes the Hub,
// disconnecting every observer.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	err := s.httpSv.Shutdown(ctx)
	s.hub.Close()
	return err
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.rl.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := coderws.Accept(w, r, &coderws.AcceptOptions{
		CompressionMode: coderws.CompressionDisabled,
	})
	if err != nil {
		s.log.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	snapshot := s.buildSnapshot()
	s.hub.Register(conn, snapshot)
}

// targetsRequest is the POST /api/targets body: action "add" carries
// host/port/label, action "remove" carries target_id.
type targetsRequest struct {
	Action   string `json:"action"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Label    string `json:"label"`
	TargetID string `json:"target_id"`
}

type targetsResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	TargetID string `json:"target_id,omitempty"`
}

// handleTargets implements the reconfiguration entrypoint: add or
// remove one target, re-sync the scheduler, and broadcast
// targets_updated to every connected observer on success. Mirrors the
// original implementation's POST /api/targets add/remove actions.
func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req targetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "invalid request body"})
		return
	}

	switch req.Action {
	case "add":
		s.handleAddTarget(w, r, req)
	case "remove":
		s.handleRemoveTarget(w, r, req)
	default:
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "action must be add or remove"})
	}
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request, req targetsRequest) {
	if req.Host == "" || req.Label == "" {
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "host and label required"})
		return
	}
	port := req.Port
	if port == 0 {
		port = defaultAddPort
	}
	if port < 0 || port > 65535 {
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "port out of range"})
		return
	}

	newTarget, err := target.New(req.Host, uint16(port), req.Label)
	if err != nil {
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: err.Error()})
		return
	}

	s.schedMu.Lock()
	current := s.currentTargetsLocked()
	for _, t := range current {
		if t.ID == newTarget.ID {
			s.schedMu.Unlock()
			s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "duplicate target id"})
			return
		}
	}
	if len(current) >= target.MaxTargets {
		s.schedMu.Unlock()
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "too many targets"})
		return
	}

	cfg := s.schedCfg
	cfg.Targets = append(append([]target.Target{}, current...), newTarget)
	views, err := s.applyTargetsLocked(cfg)
	s.schedMu.Unlock()

	if err != nil {
		s.log.Warn(r.Context(), err, "target sync failed")
		s.writeTargetsResponse(w, http.StatusInternalServerError, targetsResponse{Error: "sync failed"})
		return
	}

	s.hub.Broadcast(websocket.BuildTargetsUpdatedMessage(views, s.wsConfigSummary()))
	s.writeTargetsResponse(w, http.StatusOK, targetsResponse{OK: true, TargetID: newTarget.ID})
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request, req targetsRequest) {
	if req.TargetID == "" {
		s.writeTargetsResponse(w, http.StatusBadRequest, targetsResponse{Error: "target_id required"})
		return
	}

	s.schedMu.Lock()
	current := s.currentTargetsLocked()
	remaining := make([]target.Target, 0, len(current))
	found := false
	for _, t := range current {
		if t.ID == req.TargetID {
			found = true
			continue
		}
		remaining = append(remaining, t)
	}
	if !found {
		s.schedMu.Unlock()
		s.writeTargetsResponse(w, http.StatusNotFound, targetsResponse{Error: "target not found"})
		return
	}

	cfg := s.schedCfg
	cfg.Targets = remaining
	views, err := s.applyTargetsLocked(cfg)
	s.schedMu.Unlock()

	if err != nil {
		s.log.Warn(r.Context(), err, "target sync failed")
		s.writeTargetsResponse(w, http.StatusInternalServerError, targetsResponse{Error: "sync failed"})
		return
	}

	s.hub.Broadcast(websocket.BuildTargetsUpdatedMessage(views, s.wsConfigSummary()))
	s.writeTargetsResponse(w, http.StatusOK, targetsResponse{OK: true})
}

func (s *Server) writeTargetsResponse(w http.ResponseWriter, status int, resp targetsResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// ReloadConfig re-syncs sched with cfg (as loaded fresh from the
// configuration file by a caller, e.g. the config file watcher) and
// broadcasts targets_updated on success. Safe to call concurrently with
// HTTP handlers and the tick loop.
func (s *Server) ReloadConfig(cfg scheduler.Config) error {
	s.schedMu.Lock()
	views, err := s.applyTargetsLocked(cfg)
	s.schedMu.Unlock()
	if err != nil {
		return err
	}
	s.hub.Broadcast(websocket.BuildTargetsUpdatedMessage(views, s.wsConfigSummary()))
	return nil
}

// applyTargetsLocked syncs sched with cfg, updates schedCfg on success,
// and returns the resulting TargetViews. Callers must hold schedMu.
func (s *Server) applyTargetsLocked(cfg scheduler.Config) ([]websocket.TargetView, error) {
	if err := s.sched.SyncTargets(cfg); err != nil {
		return nil, err
	}
	s.schedCfg = cfg
	return s.viewsLocked(), nil
}

// currentTargetsLocked returns the scheduler's live target list.
// Callers must hold schedMu.
func (s *Server) currentTargetsLocked() []target.Target {
	ids := s.sched.TargetIDs()
	out := make([]target.Target, 0, len(ids))
	for _, id := range ids {
		t, _, err := s.sched.GetTarget(id)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Server) buildSnapshot() any {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return websocket.BuildSnapshot(s.viewsLocked(), s.wsConfigSummary())
}

// viewsLocked assembles one TargetView per live target. Callers must
// hold schedMu.
func (s *Server) viewsLocked() []websocket.TargetView {
	ids := s.sched.TargetIDs()
	views := make([]websocket.TargetView, 0, len(ids))
	for _, id := range ids {
		tgt, metrics, err := s.sched.GetTarget(id)
		if err != nil {
			continue
		}
		samples, err := s.sched.GetSamples(id)
		if err != nil {
			continue
		}
		views = append(views, websocket.TargetView{Target: tgt, Metrics: metrics, Samples: samples})
	}
	return views
}

func (s *Server) wsConfigSummary() websocket.ConfigSummary {
	return websocket.ConfigSummary{
		ProbeIntervalMillis: s.schedCfg.ProbeIntervalMillis,
		ProbeTimeoutMillis:  s.schedCfg.ProbeTimeoutMillis,
		Thresholds:          s.schedCfg.Thresholds,
	}
}

// Addr returns the address Start will bind to, for logging and tests.
func (s *Server) Addr() string {
	return s.addr
}
