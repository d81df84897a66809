package webui

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/session"
)

// inboundMessage is a client WebSocket frame.
type inboundMessage struct {
	Type    string `json:"type"`
	Tool    string `json:"tool"`
	Content string `json:"content"`
	User    string `json:"user"`
}

// researchRequest is the body of POST /api/research.
type researchRequest struct {
	Query string `json:"query"`
	User  string `json:"user"`
}

// handleWebSocket implements GET /ws. Frames on one connection are answered in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxRequestBytes)

	total := s.clients.Add(1)
	s.logger.Info("Client connected. Total clients: %d", total)
	defer func() {
		s.logger.Info("Client disconnected. Total clients: %d", s.clients.Add(-1))
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read failed: %v", err)
			}
			return
		}

		var env session.Envelope
		var msg inboundMessage
		switch {
		case json.Unmarshal(data, &msg) != nil:
			env = session.ErrorEnvelope(uuid.NewString(), "invalid JSON format", false)
		case msg.Tool != session.ToolResearch:
			env = session.ErrorEnvelope(uuid.NewString(), "unsupported tool "+msg.Tool+"; only research is available", false)
		default:
			env = s.sessions.Handle(ctx, session.Request{User: msg.User, Tool: msg.Tool, Query: msg.Content})
		}

		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(env); err != nil {
			s.logger.Warn("WebSocket write failed: %v", err)
			return
		}
	}
}

// handleResearch implements POST /api/research.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req researchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, session.ErrorEnvelope(uuid.NewString(), "invalid JSON body", false))
		return
	}

	env := s.sessions.Handle(r.Context(), session.Request{User: req.User, Tool: session.ToolResearch, Query: req.Query})
	s.writeJSON(w, http.StatusOK, env)
}

// handleHistory implements GET and DELETE /api/history?user=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.sessions.History(r.Context(), user))
	case http.MethodDelete:
		n, err := s.sessions.ClearHistory(r.Context(), user)
		if err != nil {
			s.logger.Error("Failed to clear history for %q: %v", user, err)
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear history"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"user": user, "cleared": n})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLogs implements GET /api/logs?domain=&since=.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	var since time.Time
	if raw := query.Get("since"); raw != "" {
		var err error
		if since, err = time.Parse(time.RFC3339, raw); err != nil {
			http.Error(w, "Invalid since parameter (use RFC3339)", http.StatusBadRequest)
			return
		}
	}

	logs := logx.GetRecentLogEntries(query.Get("domain"), since)
	if len(logs) > 1000 {
		logs = logs[len(logs)-1000:]
	}
	if logs == nil {
		logs = []logx.LogEntry{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

// handleUsage implements GET /api/usage?session=.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter is required", http.StatusBadRequest)
		return
	}

	switch {
	case s.opts.Usage != nil:
		usage, err := s.opts.Usage.GetSessionUsage(r.Context(), sessionID)
		if err != nil {
			s.logger.Error("Usage query for %s failed: %v", sessionID, err)
			http.Error(w, "usage query failed", http.StatusBadGateway)
			return
		}
		s.writeJSON(w, http.StatusOK, usage)
	case s.opts.InternalUsage != nil:
		usage := s.opts.InternalUsage.GetSessionUsage(sessionID)
		if usage == nil {
			http.Error(w, "no usage recorded for session", http.StatusNotFound)
			return
		}
		s.writeJSON(w, http.StatusOK, usage)
	default:
		http.Error(w, "usage reporting is not configured", http.StatusNotImplemented)
	}
}
