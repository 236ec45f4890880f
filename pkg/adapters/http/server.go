package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/session"
	"github.com/go-chi/chi/v5"
)

// Server exposes a controller and its session manager over HTTP.
type Server struct {
	Controller *espalier.Controller
	Sessions   *session.Manager
	Streams    *StreamManager
}

// NewHandler creates a new HTTP handler for the controller.
func NewHandler(ctrl *espalier.Controller, sessions *session.Manager) http.Handler {
	server := &Server{
		Controller: ctrl,
		Sessions:   sessions,
		Streams:    NewStreamManager(),
	}
	r := chi.NewRouter()

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/events", server.SubscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", server.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/mount", server.MountSession)
			r.Post("/events", server.DispatchEvent)
			r.Get("/", server.GetSession)
			r.Get("/view", server.RenderView)
			r.Delete("/", server.DeleteSession)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MountRequest is the body of POST /sessions/{id}/mount.
type MountRequest struct {
	Action  string         `json:"action"`
	Params  domain.Params  `json:"params,omitempty"`
	Session domain.Session `json:"session,omitempty"`
}

// EventRequest is the body of POST /sessions/{id}/events.
type EventRequest struct {
	Event  string        `json:"event"`
	Params domain.Params `json:"params,omitempty"`
}

// MountSession handles the POST /sessions/{id}/mount request.
func (s *Server) MountSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body MountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		slog.Warn("Mount: Invalid request body", "error", err)
		return
	}

	action, err := SanitizeInput(body.Action)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid action: %v", err), http.StatusBadRequest)
		slog.Warn("Mount: Action rejected", "error", err, "size", len(body.Action))
		return
	}

	env, err := s.Sessions.Mount(r.Context(), sessionID, s.Controller, action, body.Params, body.Session)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAction) {
			http.Error(w, fmt.Sprintf("Unknown action: %v", err), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Mount error: %v", err), http.StatusInternalServerError)
		slog.Error("Mount failed", "error", err)
		return
	}

	// An initial mount diffs against nothing, so the full state goes out.
	s.broadcastDiff(nil, env.State)

	writeJSON(w, env)
}

// DispatchEvent handles the POST /sessions/{id}/events request.
func (s *Server) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		slog.Warn("Dispatch: Invalid request body", "error", err)
		return
	}

	event, err := SanitizeInput(body.Event)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid event: %v", err), http.StatusBadRequest)
		slog.Warn("Dispatch: Event rejected", "error", err, "size", len(body.Event))
		return
	}

	// The prior state is snapshotted inside the dispatch lock so subscribers
	// receive exactly this event's delta.
	before, env, err := s.Sessions.DispatchObserved(r.Context(), sessionID, s.Controller, event, body.Params)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, fmt.Sprintf("Session not found: %v", err), http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrUnknownEvent) {
			http.Error(w, fmt.Sprintf("Unknown event: %v", err), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Dispatch error: %v", err), http.StatusInternalServerError)
		slog.Error("Dispatch failed", "error", err)
		return
	}

	s.broadcastDiff(before, env.State)

	writeJSON(w, env)
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := s.Sessions.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, fmt.Sprintf("Session not found: %v", err), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		slog.Error("GetSession failed", "error", err)
		return
	}

	writeJSON(w, state)
}

// RenderView handles the GET /sessions/{id}/view?action=... request.
func (s *Server) RenderView(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	action, err := SanitizeInput(r.URL.Query().Get("action"))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid action: %v", err), http.StatusBadRequest)
		return
	}

	state, err := s.Sessions.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, fmt.Sprintf("Session not found: %v", err), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		return
	}

	rendered, err := s.Controller.Render(r.Context(), action, state)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownAction):
			http.Error(w, fmt.Sprintf("Unknown action: %v", err), http.StatusNotFound)
		case errors.Is(err, domain.ErrViewNotFound):
			http.Error(w, fmt.Sprintf("View not found: %v", err), http.StatusNotFound)
		default:
			http.Error(w, fmt.Sprintf("Render error: %v", err), http.StatusInternalServerError)
			slog.Error("Render failed", "error", err)
		}
		return
	}

	writeJSON(w, rendered)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.Sessions.Delete(r.Context(), sessionID); err != nil {
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		slog.Error("DeleteSession failed", "error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.Sessions.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		slog.Error("ListSessions failed", "error", err)
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	writeJSON(w, map[string][]string{"sessions": sessions})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"app":        "espalier-http",
		"version":    strings.TrimSpace(espalier.Version),
		"controller": s.Controller.Name(),
		"actions":    s.Controller.Actions(),
		"events":     s.Controller.Events(),
	})
}

func (s *Server) broadcastDiff(before, after *domain.State) {
	if after == nil {
		return
	}
	diff := domain.Diff(before, after)
	if diff == nil {
		slog.Debug("No diff calculated", "session_id", after.SessionID)
		return
	}
	slog.Debug("Diff calculated", "diff", diff, "session_id", after.SessionID)
	if bytes, err := json.Marshal(diff); err == nil {
		s.Streams.Broadcast(after.SessionID, string(bytes))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	slog.Debug("StreamManager: Broadcasting", "session_id", sessionID, "payload_size", len(msg))

	if subs, ok := sm.subscribers[sessionID]; ok {
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				slog.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
			}
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		slog.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	slog.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	// Parse 'watch' filter
	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			slog.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !matchesWatch(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// matchesWatch deserializes the diff to check watched fields. Filtering at
// broadcast time would avoid the re-parse, but subscriber filters differ.
func matchesWatch(msg string, watchList []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watchList {
		switch strings.TrimSpace(field) {
		case "assigns":
			if len(diff.Assigns) > 0 {
				return true
			}
		case "redirect":
			if diff.Redirect != nil {
				return true
			}
		}
	}
	return false
}
