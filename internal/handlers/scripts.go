package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/script"
)

type ScriptSummary struct {
	Name  string `json:"name"`
	Beats int    `json:"beats"`
}

type ScriptHandler struct {
	library *storage.Library
	log     *slog.Logger
}

func NewScriptHandler(library *storage.Library, log *slog.Logger) *ScriptHandler {
	return &ScriptHandler{
		library: library,
		log:     log,
	}
}

// ServeHTTP handles
// GET /v1/scripts        - list script files
// GET /v1/scripts/{name} - the beats of one script
func (h *ScriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scripts"), "/")
	if name == "" {
		h.handleList(w, r)
		return
	}
	h.handleGet(w, r, name)
}

func (h *ScriptHandler) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.library.ListScripts(r.Context())
	if err != nil {
		http.Error(w, "Failed to list scripts", http.StatusInternalServerError)
		return
	}

	out := make([]ScriptSummary, 0, len(names))
	for _, name := range names {
		s, err := h.library.Script(r.Context(), name)
		if err != nil {
			h.log.Warn("Skipping unreadable script", "filename", name, "error", err)
			continue
		}
		out = append(out, ScriptSummary{Name: name, Beats: s.Len()})
	}
	h.write(w, out)
}

func (h *ScriptHandler) handleGet(w http.ResponseWriter, r *http.Request, name string) {
	s, err := h.library.Script(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidScriptName):
			http.Error(w, "Invalid filename", http.StatusBadRequest)
		case errors.Is(err, fs.ErrNotExist):
			http.Error(w, "Script not found", http.StatusNotFound)
		default:
			h.log.Error("Failed to get script", "error", err, "filename", name)
			http.Error(w, "Failed to retrieve script", http.StatusInternalServerError)
		}
		return
	}
	h.write(w, struct {
		Name  string        `json:"name"`
		Beats []script.Beat `json:"beats"`
	}{name, s.Beats()})
}

func (h *ScriptHandler) write(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to marshal script response", "error", err)
		http.Error(w, "Failed to process script", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error("Failed to write script response", "error", err)
	}
}
