package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/schedule"
	"github.com/jwebster45206/novel-engine/pkg/state"
	pkgstorage "github.com/jwebster45206/novel-engine/pkg/storage"
)

const introScript = `[
  {"storyID": "a", "speaker": "Guide", "text": "Hello.", "event": {"type": "FLAG", "payload": {"key": "met", "value": true}}},
  {"storyID": "b", "text": "A slime!", "event": {"type": "BATTLE", "payload": {"enemyIDs": ["slime"]}}},
  {"storyID": "c", "text": "Which way?", "event": {"type": "CHOICE", "payload": {"choices": [
    {"label": "Left", "nextStoryID": "d"},
    {"label": "Secret", "nextStoryID": "d", "conditions": {"flag": "met", "operator": "==", "value": false}}
  ]}}},
  {"storyID": "d", "text": "The end."}
]`

type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0.5 }
func (fixedRand) IntN(int) int     { return 0 }

func testLibrary(t *testing.T) *storage.Library {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenarios"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenarios", "intro.json"), []byte(introScript), 0o644))
	return storage.NewLibrary(dir, testLogger())
}

func newSessionsHandler(t *testing.T) (*SessionsHandler, *session.Manager) {
	t.Helper()
	lib := testLibrary(t)

	skills, err := battle.NewCatalog([]battle.Skill{
		{ID: "slash", Name: "Slash", Power: battle.Power{Base: 10, Scale: battle.ScaleStr}, Target: battle.TargetEnemy},
	})
	require.NoError(t, err)
	enemies, err := actor.NewEnemyCatalog([]actor.Enemy{{ID: "slime", Name: "Slime", Status: actor.Status{HP: 10, Str: 4}}})
	require.NoError(t, err)
	store := pkgstorage.NewMemoryStore()

	manager := session.NewManager(func(ctx context.Context, opts session.CreateOptions) (session.Deps, error) {
		s, err := lib.Script(ctx, opts.Script)
		if err != nil {
			return session.Deps{}, err
		}
		return session.Deps{
			Script:    s,
			Enemies:   enemies,
			Skills:    skills,
			Saves:     save.NewManager(store, save.WithLogger(testLogger())),
			Scheduler: schedule.NewFake(),
			Logger:    testLogger(),
			RNG:       fixedRand{},
		}, nil
	})
	return NewSessionsHandler(manager, "intro.json", testLogger()), manager
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeAction(t *testing.T, rr *httptest.ResponseRecorder) ActionResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ActionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var view session.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	require.NotEmpty(t, view.SessionID)
	return view.SessionID
}

func TestSessionsHandler_Create(t *testing.T) {
	h, manager := newSessionsHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/sessions", `{"script":"intro.json"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var view session.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	assert.Equal(t, state.ScreenNovel, view.Screen)
	require.NotNil(t, view.Beat)
	assert.Equal(t, "a", view.Beat.ID)
	assert.Equal(t, 4, view.Total)
	assert.Equal(t, 1, manager.Len())

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"missing script", http.MethodPost, `{"script":"missing.json"}`, http.StatusNotFound},
		{"path traversal", http.MethodPost, `{"script":"../intro.json"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, `{"script":`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, "/v1/sessions", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, decodeError(t, rr))
		})
	}
}

func TestSessionsHandler_Lookup(t *testing.T) {
	h, _ := newSessionsHandler(t)
	id := createSession(t, h)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/sessions/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/sessions/00000000-0000-0000-0000-000000000001", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/v1/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/sessions/"+id+"/advance", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/sessions/"+id+"/fly", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/sessions/"+id, "").Code)
}

func TestSessionsHandler_PlayThrough(t *testing.T) {
	h, _ := newSessionsHandler(t)
	base := "/v1/sessions/" + createSession(t, h)

	resp := decodeAction(t, do(t, h, http.MethodPost, base+"/advance", ""))
	assert.True(t, resp.OK)
	assert.Equal(t, "b", resp.Session.Beat.ID)
	assert.Equal(t, true, resp.Session.Flags["met"])

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/advance", ""))
	assert.Equal(t, state.ScreenBattle, resp.Session.Screen)
	require.NotNil(t, resp.Session.Battle)
	assert.Equal(t, battle.PlayerTurn, resp.Session.Battle.Phase)

	rr := do(t, h, http.MethodPost, base+"/choice", `{"target":"d"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, base+"/skill", `{"skill_id":"fireball"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/skill", `{"skill_id":"slash"}`))
	assert.True(t, resp.OK)
	assert.Equal(t, battle.Victory, resp.Session.Battle.Phase)

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/leave-battle", ""))
	assert.Equal(t, state.ScreenNovel, resp.Session.Screen)
	assert.Equal(t, "c", resp.Session.Beat.ID)
	require.Len(t, resp.Session.Choices, 2)
	assert.True(t, resp.Session.Choices[0].Available)
	assert.False(t, resp.Session.Choices[1].Available)

	rr = do(t, h, http.MethodPost, base+"/leave-battle", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "no active battle", decodeError(t, rr))

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/advance", ""))
	assert.False(t, resp.OK, "choice beats do not advance")

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/choice", `{"target":"d"}`))
	assert.Equal(t, "d", resp.Session.Beat.ID)
	assert.Equal(t, 100, resp.Session.Progress)

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/advance", ""))
	assert.False(t, resp.OK, "end of script")

	rr = do(t, h, http.MethodGet, base+"/transcript", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var tr TranscriptResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tr))
	assert.Len(t, tr.Entries, 4)
	assert.True(t, strings.HasPrefix(tr.Text, "Guide: Hello.\n"))

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/new-game", ""))
	assert.Equal(t, "a", resp.Session.Beat.ID)
	assert.Empty(t, resp.Session.Flags)
}

func TestSessionsHandler_Saves(t *testing.T) {
	h, _ := newSessionsHandler(t)
	base := "/v1/sessions/" + createSession(t, h)

	decodeAction(t, do(t, h, http.MethodPost, base+"/advance", ""))
	decodeAction(t, do(t, h, http.MethodPut, base+"/saves/0", ""))

	rr := do(t, h, http.MethodGet, base+"/saves", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var saves SavesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&saves))
	assert.True(t, saves.Available)
	require.Len(t, saves.Slots, save.DefaultSlotCount)
	assert.False(t, saves.Slots[0].IsEmpty)
	assert.True(t, saves.Slots[1].IsEmpty)

	rr = do(t, h, http.MethodGet, base+"/saves/0", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var info save.SlotInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.Equal(t, "b", info.Data.BeatID)

	decodeAction(t, do(t, h, http.MethodPost, base+"/new-game", ""))
	resp := decodeAction(t, do(t, h, http.MethodPost, base+"/saves/0", ""))
	assert.Equal(t, "b", resp.Session.Beat.ID)

	decodeAction(t, do(t, h, http.MethodPut, base+"/saves/auto", ""))
	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/saves/auto", ""))
	assert.Equal(t, "b", resp.Session.Beat.ID)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"empty slot", http.MethodPost, "/saves/1", http.StatusNotFound},
		{"slot out of range", http.MethodPut, "/saves/9", http.StatusBadRequest},
		{"get out of range", http.MethodGet, "/saves/-1", http.StatusBadRequest},
		{"slot not a number", http.MethodPut, "/saves/x", http.StatusBadRequest},
		{"auto method", http.MethodDelete, "/saves/auto", http.StatusMethodNotAllowed},
		{"list method", http.MethodPost, "/saves", http.StatusMethodNotAllowed},
		{"too deep", http.MethodGet, "/saves/0/extra", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, do(t, h, tt.method, base+tt.path, "").Code)
		})
	}

	decodeAction(t, do(t, h, http.MethodDelete, base+"/saves/0", ""))
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, base+"/saves/0", "").Code)

	decodeAction(t, do(t, h, http.MethodPost, base+"/advance", ""))
	rr = do(t, h, http.MethodPut, base+"/saves/0", "")
	assert.Equal(t, http.StatusConflict, rr.Code, "no saving mid-battle")
}

func TestSessionsHandler_AutoToggle(t *testing.T) {
	h, _ := newSessionsHandler(t)
	base := "/v1/sessions/" + createSession(t, h)

	resp := decodeAction(t, do(t, h, http.MethodPost, base+"/auto", ""))
	assert.True(t, resp.OK)
	assert.True(t, resp.Session.Auto)

	resp = decodeAction(t, do(t, h, http.MethodPost, base+"/auto", ""))
	assert.False(t, resp.OK)
	assert.False(t, resp.Session.Auto)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{session.ErrNoBattle, http.StatusConflict},
		{session.ErrBattleActive, http.StatusConflict},
		{session.ErrUnknownSkill, http.StatusBadRequest},
		{session.ErrChoiceUnavailable, http.StatusBadRequest},
		{session.ErrInvalidSlot, http.StatusBadRequest},
		{session.ErrNoSaveData, http.StatusNotFound},
		{session.ErrUnknownBeat, http.StatusUnprocessableEntity},
		{session.ErrSaveFailed, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
