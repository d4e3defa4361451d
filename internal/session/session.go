// Package session owns one play-through: a game state, the scenario engine
// walking it, an optional battle and the save slots. Every method takes the
// session lock, so timers and HTTP requests never mutate state concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/novel-engine/internal/events"
	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/scenario"
	"github.com/jwebster45206/novel-engine/pkg/schedule"
	"github.com/jwebster45206/novel-engine/pkg/script"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

var (
	ErrNoBattle          = errors.New("no active battle")
	ErrBattleActive      = errors.New("battle in progress")
	ErrUnknownSkill      = errors.New("unknown skill")
	ErrChoiceUnavailable = errors.New("choice not available")
	ErrInvalidSlot       = errors.New("invalid save slot")
	ErrNoSaveData        = errors.New("no save data")
	ErrSaveFailed        = errors.New("save failed")
	ErrUnknownBeat       = errors.New("saved beat not in script")
)

// Deps are the collaborators a session is built from.
type Deps struct {
	Script     *script.Store
	Title      string // written to saves as the chapter title
	Enemies    *actor.EnemyCatalog
	Characters map[string]actor.Character
	PlayerID   string
	Skills     *battle.Catalog
	Saves      *save.Manager
	Scheduler  schedule.Scheduler
	Clock      func() time.Time
	Logger     *slog.Logger
	Events     events.Publisher
	RNG        battle.Random

	// AutoSave writes the auto-save slot after every successful step.
	AutoSave     bool
	EnemyDelay   time.Duration
	AutoInterval time.Duration
}

// globalRand draws from the concurrency-safe math/rand/v2 top-level source.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

type Session struct {
	ID uuid.UUID

	mu     sync.Mutex
	deps   Deps
	logger *slog.Logger
	gs     *state.GameState
	engine *scenario.Engine
	runner *battle.Runner
	auto   *scenario.AutoPlayer
	player actor.Character

	// cleared is the final beat's battle once it has been won or skipped.
	cleared string

	playBase  time.Duration
	playStart time.Time
}

// New starts a fresh game on the first beat of deps.Script.
func New(deps Deps, id uuid.UUID) (*Session, error) {
	if deps.Script == nil {
		return nil, fmt.Errorf("session requires a script")
	}
	if deps.Enemies == nil {
		deps.Enemies, _ = actor.NewEnemyCatalog(nil)
	}
	if deps.Scheduler == nil {
		deps.Scheduler = schedule.Real{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if deps.RNG == nil {
		deps.RNG = globalRand{}
	}
	if deps.Saves == nil {
		deps.Saves = save.NewManager(nil, save.WithLogger(deps.Logger))
	}

	player, ok := deps.Characters[deps.PlayerID]
	if !ok {
		player = actor.DefaultHero()
	}

	s := &Session{
		ID:     id,
		deps:   deps,
		logger: deps.Logger.With("session_id", id.String()),
		gs:     state.NewGameState(),
		player: player,
	}
	s.engine = scenario.New(deps.Script, s.gs,
		scenario.WithScreenRouter(scenario.ScreenRouterFunc(s.requestScreen)),
		scenario.WithLogger(s.logger),
	)
	s.auto = scenario.NewAutoPlayer(autoTarget{s}, deps.Scheduler,
		scenario.WithInterval(deps.AutoInterval),
		scenario.WithAutoExecutor(s.locked),
	)
	s.gs.SetScreen(state.ScreenNovel)
	s.playStart = deps.Clock()
	return s, nil
}

// locked runs f under the session lock. Timer callbacks are routed through it.
func (s *Session) locked(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}

// autoTarget lets the auto player drive the session with the lock already held.
type autoTarget struct{ s *Session }

func (a autoTarget) CurrentBeat() (script.Beat, bool) { return a.s.engine.CurrentBeat() }
func (a autoTarget) Advance() bool                    { return a.s.advance(context.Background()) }

// Close cancels pending timers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto.Stop()
	if s.runner != nil {
		s.runner.Cancel()
	}
}

func (s *Session) playSeconds() int64 {
	return int64((s.playBase + s.deps.Clock().Sub(s.playStart)) / time.Second)
}

func (s *Session) setScreen(ctx context.Context, screen state.Screen) {
	s.gs.SetScreen(screen)
	beatID := ""
	if beat, ok := s.engine.CurrentBeat(); ok {
		beatID = beat.ID
	}
	if err := s.deps.Events.PublishScreenChanged(ctx, s.ID, string(screen), beatID); err != nil {
		s.logger.Debug("Failed to publish screen change", "error", err)
	}
}

// Advance passes the current beat. It returns false when the game is not
// on the novel screen or the engine refuses to advance.
func (s *Session) Advance(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advance(ctx)
}

func (s *Session) advance(ctx context.Context) bool {
	if s.gs.Screen != state.ScreenNovel {
		return false
	}
	if beat, ok := s.engine.CurrentBeat(); ok && beat.ID == s.cleared {
		return false
	}
	if !s.engine.Advance() {
		return false
	}
	if s.gs.Screen == state.ScreenNovel {
		s.afterStep(ctx)
	}
	return true
}

// SelectChoice takes a branch of the current choice beat. Only choices whose
// conditions hold are accepted.
func (s *Session) SelectChoice(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		return ErrBattleActive
	}
	allowed := false
	for _, c := range s.engine.AvailableChoices() {
		if c.Target == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrChoiceUnavailable, target)
	}
	if err := s.engine.SelectChoice(target); err != nil {
		return err
	}
	s.afterStep(ctx)
	return nil
}

func (s *Session) afterStep(ctx context.Context) {
	if !s.deps.AutoSave {
		return
	}
	if s.deps.Saves.AutoSave(ctx, s.snapshot()) {
		if err := s.deps.Events.PublishGameSaved(ctx, s.ID, -1, true); err != nil {
			s.logger.Debug("Failed to publish save", "error", err)
		}
	}
}

// ToggleAuto starts or stops auto play and reports whether it is running.
func (s *Session) ToggleAuto() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gs.Screen != state.ScreenNovel {
		return false
	}
	return s.auto.Toggle()
}

// Transcript returns the beats seen so far.
func (s *Session) Transcript() []scenario.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Transcript().Entries()
}

// TranscriptText renders the transcript for export.
func (s *Session) TranscriptText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Transcript().Format()
}

// NewGame discards the current play-through and starts from the first beat.
func (s *Session) NewGame(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimers()
	s.gs.Reset()
	s.engine.Reset()
	s.cleared = ""
	s.playBase = 0
	s.playStart = s.deps.Clock()
	s.setScreen(ctx, state.ScreenNovel)
	s.logger.Info("New game started")
}

func (s *Session) stopTimers() {
	s.auto.Stop()
	if s.runner != nil {
		s.runner.Cancel()
		s.runner = nil
	}
}
