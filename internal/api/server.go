package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/biz/domain"
	"github.com/chatrouter/imessage-channel/internal/service"
)

// Sender is the channel surface the API exposes.
type Sender interface {
	SendMessage(ctx context.Context, jid, text string) error
	IsConnected() bool
	Cursor() int64
	Name() string
}

// ChatDirectory is the registry surface the API exposes.
type ChatDirectory interface {
	Register(jid, name string)
	Unregister(jid string)
	RegisteredGroups() map[string]domain.RegisteredGroup
	Chats() []domain.ChatMetadata
}

// Server provides the local HTTP control surface: status, observed chats,
// chat registration and a send endpoint.
type Server struct {
	channel  Sender
	registry ChatDirectory
	log      *zap.SugaredLogger

	server *http.Server
	port   int
}

// NewServer creates a new control API server.
func NewServer(channel Sender, registry ChatDirectory, port int, log *zap.SugaredLogger) *Server {
	return &Server{
		channel:  channel,
		registry: registry,
		log:      log,
		port:     port,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.routes(),
	}

	s.log.Infow("starting control API", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control API server failed: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/api/chats", s.handleChats)
	mux.HandleFunc("/api/chats/", s.handleChatItem)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"channel":    s.channel.Name(),
		"connected":  s.channel.IsConnected(),
		"cursor":     s.channel.Cursor(),
		"registered": len(s.registry.RegisteredGroups()),
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		JID  string `json:"jid"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.JID == "" || req.Text == "" {
		http.Error(w, "jid and text are required", http.StatusBadRequest)
		return
	}

	if err := s.channel.SendMessage(r.Context(), req.JID, req.Text); err != nil {
		s.writeSendError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"chats":      s.registry.Chats(),
		"registered": s.registry.RegisteredGroups(),
	})
}

// handleChatItem covers /api/chats/{jid}/register and .../unregister.
func (s *Server) handleChatItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	slash := strings.LastIndex(path, "/")
	if slash <= 0 {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	jid, action := path[:slash], path[slash+1:]

	switch action {
	case "register":
		var req struct {
			Name string `json:"name"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req)
		}
		if req.Name == "" {
			req.Name = jid
		}
		s.registry.Register(jid, req.Name)
		s.log.Infow("chat registered", "jid", jid, "name", req.Name)
	case "unregister":
		s.registry.Unregister(jid)
		s.log.Infow("chat unregistered", "jid", jid)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}

	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, service.ErrInvalidTarget):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotConnected):
		status = http.StatusConflict
	}
	s.writeJSONStatus(w, status, map[string]interface{}{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload interface{}) {
	s.writeJSONStatus(w, http.StatusOK, payload)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warnw("failed to encode response", "error", err)
	}
}
