package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/novel-engine/internal/events"
	"github.com/jwebster45206/novel-engine/internal/session"
)

const keepaliveInterval = 30 * time.Second

// SessionLookup finds a live session by id.
type SessionLookup interface {
	Get(id uuid.UUID) (*session.Session, bool)
}

// EventsHandler streams a session's events as Server-Sent Events.
type EventsHandler struct {
	redisClient *redis.Client
	sessions    SessionLookup
	logger      *slog.Logger
}

// NewEventsHandler creates a new events handler. With a nil sessions lookup
// any well-formed id is accepted and no initial screen is sent.
func NewEventsHandler(redisClient *redis.Client, sessions SessionLookup, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		redisClient: redisClient,
		sessions:    sessions,
		logger:      logger,
	}
}

// ServeHTTP handles GET /v1/events/sessions/{sessionID}[?types=a,b].
// The stream opens with a connected event and, for a known session, its
// current screen. Only the listed event types are forwarded when types is set.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "events" || pathParts[2] != "sessions" {
		h.writeError(w, http.StatusBadRequest, "Invalid path. Expected /v1/events/sessions/{sessionID}")
		return
	}
	sessionID, err := uuid.Parse(pathParts[3])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format.")
		return
	}

	wanted, err := parseTypes(r.URL.Query().Get("types"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sess *session.Session
	if h.sessions != nil {
		var ok bool
		if sess, ok = h.sessions.Get(sessionID); !ok {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flush(w)

	channel := events.Channel(sessionID)
	pubsub := h.redisClient.Subscribe(r.Context(), channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	msgChan := pubsub.Channel()

	h.logger.Info("SSE connection established",
		"session_id", sessionID.String(),
		"remote_addr", r.RemoteAddr,
		"channel", channel)

	h.sendSSE(w, "connected", map[string]any{
		"game_id": sessionID.String(),
		"message": "Connected to event stream",
	})
	if sess != nil && wanted.allows(events.EventTypeScreenChanged) {
		v := sess.View()
		beatID := ""
		if v.Beat != nil {
			beatID = v.Beat.ID
		}
		ev := events.ScreenChanged(sessionID, string(v.Screen), beatID)
		h.sendSSE(w, string(ev.Type), ev.Data)
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "session_id", sessionID.String())
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if !wanted.allows(event.Type) {
				continue
			}
			h.sendSSE(w, string(event.Type), event.Data)

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			flush(w)
		}
	}
}

// typeFilter is the set of event types a client asked for. Empty means all.
type typeFilter map[events.EventType]bool

func (f typeFilter) allows(t events.EventType) bool {
	return len(f) == 0 || f[t]
}

func parseTypes(raw string) (typeFilter, error) {
	f := typeFilter{}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, ok := events.ParseType(name)
		if !ok {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		f[t] = true
	}
	return f, nil
}

func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err, "type", eventType)
		return
	}
	flush(w)
}

func (h *EventsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
