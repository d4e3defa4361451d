package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/jwebster45206/novel-engine/pkg/script"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// ErrNotFound is returned when a beat id is not in the script.
var ErrNotFound = errors.New("beat not found")

// ScreenRouter receives screen change requests. The engine never renders;
// it only asks the owner to switch screens.
type ScreenRouter interface {
	RequestScreen(screen state.Screen, beat script.Beat)
}

// ScreenRouterFunc adapts a function to ScreenRouter.
type ScreenRouterFunc func(screen state.Screen, beat script.Beat)

func (f ScreenRouterFunc) RequestScreen(screen state.Screen, beat script.Beat) {
	f(screen, beat)
}

// Engine walks a script one beat at a time, applying flag, item and jump
// events to the game state. It is not safe for concurrent use.
type Engine struct {
	store      *script.Store
	gs         *state.GameState
	idx        int
	transcript *Transcript
	router     ScreenRouter
	logger     *slog.Logger
}

type Option func(*Engine)

func WithScreenRouter(r ScreenRouter) Option {
	return func(e *Engine) { e.router = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStartIndex starts the engine at position i instead of the first beat.
func WithStartIndex(i int) Option {
	return func(e *Engine) { e.idx = i }
}

// New creates an engine over store that mutates gs. The starting beat is
// recorded in the transcript.
func New(store *script.Store, gs *state.GameState, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		gs:         gs,
		transcript: NewTranscript(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.record()
	return e
}

// CurrentBeat returns the beat at the current position. ok is false when
// the position is outside the script.
func (e *Engine) CurrentBeat() (script.Beat, bool) {
	return e.store.At(e.idx)
}

func (e *Engine) Index() int { return e.idx }
func (e *Engine) Total() int { return e.store.Len() }

func (e *Engine) Transcript() *Transcript { return e.transcript }

func (e *Engine) GameState() *state.GameState { return e.gs }

// Advance passes the current beat. It returns false without touching any
// state when there is no current beat or the beat waits on a choice.
// Otherwise the beat's flags are applied in declaration order before its
// event runs. A battle event hands off to the screen router and leaves the
// position unchanged; ResumeAfterBattle moves on once the fight is over.
func (e *Engine) Advance() bool {
	beat, ok := e.CurrentBeat()
	if !ok {
		return false
	}
	if beat.EventType() == script.EventChoice {
		return false
	}

	for _, f := range beat.Flags {
		e.gs.SetFlag(f.Key, f.Value)
	}

	switch ev := beat.Event.(type) {
	case script.FlagEvent:
		e.gs.SetFlag(ev.Key, ev.Value)
	case script.ItemEvent:
		e.gs.AddItem(ev.ItemID, ev.Count)
	case script.JumpEvent:
		i, ok := e.store.IndexOf(ev.Target)
		if !ok {
			e.logger.Warn("jump target not found", "beat", beat.ID, "target", ev.Target)
			return false
		}
		e.moveTo(i)
		return true
	case script.BattleEvent:
		if e.router != nil {
			e.router.RequestScreen(state.ScreenBattle, beat)
		}
		return true
	}

	if e.idx+1 >= e.store.Len() {
		return false
	}
	e.moveTo(e.idx + 1)
	return true
}

// SelectChoice moves to the beat with the given id. Callers pass targets
// taken from the current beat's choices; conditions are not re-checked.
func (e *Engine) SelectChoice(targetID string) error {
	return e.JumpTo(targetID)
}

// JumpTo moves to the beat with the given id.
func (e *Engine) JumpTo(id string) error {
	i, ok := e.store.IndexOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.moveTo(i)
	return nil
}

// ResumeAfterBattle moves past the current battle beat. It returns false
// if the current beat is not a battle or is the last beat.
func (e *Engine) ResumeAfterBattle() bool {
	beat, ok := e.CurrentBeat()
	if !ok || beat.EventType() != script.EventBattle {
		return false
	}
	if e.idx+1 >= e.store.Len() {
		return false
	}
	e.moveTo(e.idx + 1)
	return true
}

// Progress is the current position as a percentage of the script, rounded
// and clamped to [0,100]. Scripts of one beat or fewer report 0.
func (e *Engine) Progress() int {
	total := e.store.Len()
	if total <= 1 {
		return 0
	}
	p := int(math.Round(float64(e.idx) / float64(total-1) * 100))
	return min(100, max(0, p))
}

// Choices returns every choice of the current beat.
func (e *Engine) Choices() []script.Choice {
	beat, ok := e.CurrentBeat()
	if !ok {
		return nil
	}
	return beat.Choices()
}

// AvailableChoices returns the choices of the current beat whose conditions hold.
func (e *Engine) AvailableChoices() []script.Choice {
	var out []script.Choice
	for _, c := range e.Choices() {
		if c.Available(e.gs) {
			out = append(out, c)
		}
	}
	return out
}

// Restore moves to position index, as when loading a save.
func (e *Engine) Restore(index int) error {
	if index < 0 || index >= e.store.Len() {
		return fmt.Errorf("restore index %d out of range [0,%d)", index, e.store.Len())
	}
	e.moveTo(index)
	return nil
}

// Reset returns to the first beat with an empty transcript.
func (e *Engine) Reset() {
	e.idx = 0
	e.transcript.Reset()
	e.record()
}

func (e *Engine) moveTo(i int) {
	e.idx = i
	e.record()
}

func (e *Engine) record() {
	beat, ok := e.CurrentBeat()
	if !ok {
		return
	}
	e.transcript.Append(Entry{BeatID: beat.ID, Speaker: beat.Speaker, Text: beat.Text})
}
