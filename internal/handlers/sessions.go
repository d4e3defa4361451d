package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/scenario"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ActionResponse is returned by every state-changing session endpoint.
// OK is false when the engine declined the action without an error, such as
// advancing past the last beat or using a skill on the enemy's turn.
type ActionResponse struct {
	OK      bool         `json:"ok"`
	Session session.View `json:"session"`
}

type TranscriptResponse struct {
	Entries []scenario.Entry `json:"entries"`
	Text    string           `json:"text"`
}

type SavesResponse struct {
	Available bool            `json:"available"`
	Slots     []save.SlotInfo `json:"slots"`
}

type ChoiceRequest struct {
	Target string `json:"target"`
}

type SkillRequest struct {
	SkillID string `json:"skill_id"`
}

type SessionsHandler struct {
	sessions      *session.Manager
	defaultScript string
	logger        *slog.Logger
}

func NewSessionsHandler(sessions *session.Manager, defaultScript string, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions:      sessions,
		defaultScript: defaultScript,
		logger:        logger,
	}
}

// ServeHTTP routes session requests.
// Routes:
// POST   /v1/sessions                        - Start a session
// GET    /v1/sessions/{id}                   - Current view
// DELETE /v1/sessions/{id}                   - End a session
// POST   /v1/sessions/{id}/advance           - Pass the current beat
// POST   /v1/sessions/{id}/choice            - Select a choice {target}
// POST   /v1/sessions/{id}/skill             - Use a battle skill {skill_id}
// POST   /v1/sessions/{id}/leave-battle      - Close the battle screen
// POST   /v1/sessions/{id}/new-game          - Restart from the first beat
// POST   /v1/sessions/{id}/auto              - Toggle auto play
// GET    /v1/sessions/{id}/transcript        - Beats seen so far
// GET    /v1/sessions/{id}/saves             - List manual slots
// GET|PUT|POST|DELETE /v1/sessions/{id}/saves/{slot|auto}
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.writeJSON(w, http.StatusOK, s.View())
		case http.MethodDelete:
			h.sessions.Delete(id)
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	action := parts[1]
	if action == "saves" {
		h.handleSaves(w, r, s, parts[2:])
		return
	}
	if len(parts) != 2 {
		h.writeError(w, http.StatusNotFound, "Unknown session endpoint")
		return
	}

	if action == "transcript" {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		h.writeJSON(w, http.StatusOK, TranscriptResponse{Entries: s.Transcript(), Text: s.TranscriptText()})
		return
	}

	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	ctx := r.Context()
	switch action {
	case "advance":
		h.respond(w, s, s.Advance(ctx), nil)
	case "choice":
		var req ChoiceRequest
		if !h.decode(w, r, &req) {
			return
		}
		h.respond(w, s, true, s.SelectChoice(ctx, req.Target))
	case "skill":
		var req SkillRequest
		if !h.decode(w, r, &req) {
			return
		}
		ok, err := s.UseSkill(ctx, req.SkillID)
		h.respond(w, s, ok, err)
	case "leave-battle":
		h.respond(w, s, true, s.LeaveBattle(ctx))
	case "new-game":
		s.NewGame(ctx)
		h.respond(w, s, true, nil)
	case "auto":
		h.respond(w, s, s.ToggleAuto(), nil)
	default:
		h.writeError(w, http.StatusNotFound, "Unknown session endpoint")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var opts session.CreateOptions
	if r.ContentLength != 0 {
		if !h.decode(w, r, &opts) {
			return
		}
	}
	if opts.Script == "" {
		opts.Script = h.defaultScript
	}

	s, err := h.sessions.Create(r.Context(), opts)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidScriptName):
			h.writeError(w, http.StatusBadRequest, "Invalid script name")
		case errors.Is(err, fs.ErrNotExist):
			h.writeError(w, http.StatusNotFound, "Script not found")
		default:
			h.logger.Error("Failed to create session", "error", err, "script", opts.Script)
			h.writeError(w, http.StatusInternalServerError, "Failed to create session")
		}
		return
	}

	h.logger.Info("Session created", "session_id", s.ID.String(), "script", opts.Script)
	h.writeJSON(w, http.StatusCreated, s.View())
}

func (h *SessionsHandler) handleSaves(w http.ResponseWriter, r *http.Request, s *session.Session, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		h.writeJSON(w, http.StatusOK, SavesResponse{Available: s.SavesAvailable(), Slots: s.ListSaves(ctx)})
		return
	}
	if len(rest) != 1 {
		h.writeError(w, http.StatusNotFound, "Unknown save endpoint")
		return
	}

	if rest[0] == "auto" {
		switch r.Method {
		case http.MethodPut:
			h.respond(w, s, true, s.AutoSave(ctx))
		case http.MethodPost:
			h.respond(w, s, true, s.LoadAutoSave(ctx))
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: PUT, POST")
		}
		return
	}

	slot, err := strconv.Atoi(rest[0])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid save slot")
		return
	}

	switch r.Method {
	case http.MethodGet:
		slots := s.ListSaves(ctx)
		if slot < 0 || slot >= len(slots) {
			h.writeError(w, http.StatusBadRequest, "Invalid save slot")
			return
		}
		h.writeJSON(w, http.StatusOK, slots[slot])
	case http.MethodPut:
		h.respond(w, s, true, s.Save(ctx, slot))
	case http.MethodPost:
		h.respond(w, s, true, s.Load(ctx, slot))
	case http.MethodDelete:
		h.respond(w, s, true, s.DeleteSave(ctx, slot))
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT, POST, DELETE")
	}
}

func (h *SessionsHandler) respond(w http.ResponseWriter, s *session.Session, ok bool, err error) {
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{OK: ok, Session: s.View()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoBattle), errors.Is(err, session.ErrBattleActive):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownSkill),
		errors.Is(err, session.ErrChoiceUnavailable),
		errors.Is(err, session.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSaveData):
		return http.StatusNotFound
	case errors.Is(err, session.ErrUnknownBeat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSaveFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *SessionsHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		h.logger.Warn("Invalid request body", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func (h *SessionsHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
