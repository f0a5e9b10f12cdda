// Package web provides the admin HTTP interface: health probes, Prometheus
// metrics, server statistics and a small key browser.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/velocitykv/velocity/internal/metrics"
	"github.com/velocitykv/velocity/internal/protocol"
	"github.com/velocitykv/velocity/internal/server"
	"github.com/velocitykv/velocity/internal/store"
	"github.com/velocitykv/velocity/internal/version"
)

const apiVersionPath = "/api/v1"

// Frontend is the RESP server as seen by the admin interface.
type Frontend interface {
	Stats() server.Stats
	Ready() <-chan struct{}
}

// Config wires the admin server to the rest of the process.
type Config struct {
	Addr     string
	Store    *store.Store
	Match    store.Matcher
	Handler  server.Handler
	Frontend Frontend
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Server represents the admin HTTP server.
type Server struct {
	cfg       Config
	server    *http.Server
	logger    *slog.Logger
	startTime time.Time
}

// New creates a new admin server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		logger:    logger.With("component", "admin"),
		startTime: time.Now(),
	}
}

// CommandRequest represents a command execution request.
type CommandRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// CommandResponse represents a command execution response.
type CommandResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatsResponse represents server statistics.
type StatsResponse struct {
	Version          string  `json:"version"`
	Uptime           int64   `json:"uptime"`
	UptimeHuman      string  `json:"uptime_human"`
	Keys             int     `json:"keys"`
	ConnectedClients int     `json:"connected_clients"`
	TotalConnections int64   `json:"total_connections"`
	TotalCommands    int64   `json:"total_commands"`
	MemoryUsed       uint64  `json:"memory_used"`
	MemoryUsedMB     float64 `json:"memory_used_mb"`
	GoRoutines       int     `json:"goroutines"`
	CPUs             int     `json:"cpus"`
}

// KeyInfo represents information about a key.
type KeyInfo struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	TTL   int64  `json:"ttl"`
	Value string `json:"value,omitempty"`
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("admin: failed to listen: %w", err)
	}

	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("admin interface listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", s.cfg.Metrics.Handler())

	mux.HandleFunc(apiVersionPath+"/stats", s.handleStats)
	mux.HandleFunc(apiVersionPath+"/keys", s.handleKeys)
	mux.HandleFunc(apiVersionPath+"/key/", s.handleKey)
	mux.HandleFunc(apiVersionPath+"/execute", s.handleExecute)

	return mux
}

// handleExecute runs one command through the same dispatcher the RESP
// server uses.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONWithStatus(w, http.StatusBadRequest, CommandResponse{Error: "invalid request"})
		return
	}

	argv := parseCommand(req.Command)
	argv = append(argv, req.Args...)
	if len(argv) == 0 {
		writeJSONWithStatus(w, http.StatusBadRequest, CommandResponse{Error: "empty command"})
		return
	}

	reply := s.cfg.Handler.Dispatch(protocol.Request{Argv: argv})
	if reply.IsError() {
		writeJSON(w, CommandResponse{Error: reply.Str})
		return
	}
	writeJSON(w, CommandResponse{Success: true, Result: replyToJSON(reply)})
}

// handleStats returns server statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(s.startTime)
	resp := StatsResponse{
		Version:      version.Version,
		Uptime:       int64(uptime.Seconds()),
		UptimeHuman:  formatDuration(uptime),
		Keys:         s.cfg.Store.Size(),
		MemoryUsed:   m.Alloc,
		MemoryUsedMB: float64(m.Alloc) / 1024 / 1024,
		GoRoutines:   runtime.NumGoroutine(),
		CPUs:         runtime.NumCPU(),
	}
	if s.cfg.Frontend != nil {
		stats := s.cfg.Frontend.Stats()
		resp.ConnectedClients = stats.ConnectedClients
		resp.TotalConnections = stats.TotalConnections
		resp.TotalCommands = stats.TotalCommands
	}

	writeJSON(w, resp)
}

// handleKeys returns live keys with optional pattern filtering.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	keys := s.cfg.Store.Keys(pattern, s.cfg.Match)
	total := len(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	infos := make([]KeyInfo, 0, len(keys))
	for _, key := range keys {
		infos = append(infos, KeyInfo{
			Key:  key,
			Type: s.cfg.Store.TypeOf(key),
			TTL:  s.cfg.Store.TTL(key),
		})
	}

	writeJSON(w, map[string]any{
		"keys":  infos,
		"total": total,
	})
}

// handleKey returns or deletes a single key.
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, apiVersionPath+"/key/")
	if key == "" {
		http.Error(w, "Key required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		v, ok := s.cfg.Store.Get(key)
		if !ok {
			http.Error(w, "Key not found", http.StatusNotFound)
			return
		}
		info := KeyInfo{Key: key, Type: v.Type(), TTL: s.cfg.Store.TTL(key)}
		if str, isString := v.(store.String); isString {
			info.Value = string(str)
		}
		writeJSON(w, info)

	case http.MethodDelete:
		writeJSON(w, map[string]any{"deleted": s.cfg.Store.Delete(key)})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports ready once the RESP listener is bound.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ready := false
	if s.cfg.Frontend != nil {
		select {
		case <-s.cfg.Frontend.Ready():
			ready = true
		default:
		}
	}

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}
	writeJSONWithStatus(w, statusCode, map[string]any{
		"status": status,
		"ready":  ready,
	})
}

// replyToJSON maps a reply onto plain JSON values.
func replyToJSON(v protocol.Value) any {
	switch v.Type {
	case protocol.TypeInteger:
		return v.Num
	case protocol.TypeArray:
		if v.Null {
			return nil
		}
		items := make([]any, len(v.Array))
		for i, item := range v.Array {
			items[i] = replyToJSON(item)
		}
		return items
	default:
		if v.Null {
			return nil
		}
		return v.Str
	}
}

// parseCommand parses a command string into parts, handling quoted strings.
func parseCommand(input string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case inQuote && c == quoteChar:
			inQuote = false
		case inQuote:
			current.WriteByte(c)
		case c == '"' || c == '\'':
			inQuote = true
			quoteChar = c
		case c == ' ':
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONWithStatus(w, http.StatusOK, data)
}

func writeJSONWithStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// formatDuration formats a duration as human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
