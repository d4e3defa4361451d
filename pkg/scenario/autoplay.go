package scenario

import (
	"time"

	"github.com/jwebster45206/novel-engine/pkg/schedule"
	"github.com/jwebster45206/novel-engine/pkg/script"
)

// DefaultAutoInterval is the pause between automatic advances.
const DefaultAutoInterval = 2500 * time.Millisecond

// Advancer is what the auto player drives. *Engine implements it; owners
// that wrap Advance with extra behaviour can pass their own.
type Advancer interface {
	CurrentBeat() (script.Beat, bool)
	Advance() bool
}

// AutoPlayer advances on a timer until a choice or battle is reached or the
// script ends. It is not safe for concurrent use; scheduled ticks run
// through the executor so the owner can take its own lock.
type AutoPlayer struct {
	target   Advancer
	sched    schedule.Scheduler
	interval time.Duration
	exec     func(func())
	onStop   func()

	timer   schedule.Timer
	gen     int
	running bool
}

type AutoOption func(*AutoPlayer)

// WithInterval sets the pause between advances. Non-positive values are ignored.
func WithInterval(d time.Duration) AutoOption {
	return func(a *AutoPlayer) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithAutoExecutor(exec func(func())) AutoOption {
	return func(a *AutoPlayer) { a.exec = exec }
}

// WithOnStop registers f to run when auto play stops on its own.
func WithOnStop(f func()) AutoOption {
	return func(a *AutoPlayer) { a.onStop = f }
}

func NewAutoPlayer(target Advancer, sched schedule.Scheduler, opts ...AutoOption) *AutoPlayer {
	a := &AutoPlayer{
		target:   target,
		sched:    sched,
		interval: DefaultAutoInterval,
		exec:     func(f func()) { f() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins auto play. It does nothing if the current beat blocks.
func (a *AutoPlayer) Start() {
	if a.running || a.blocked() {
		return
	}
	a.running = true
	a.schedule()
}

// Stop cancels a pending advance.
func (a *AutoPlayer) Stop() {
	a.running = false
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Toggle starts or stops auto play and reports whether it is now running.
func (a *AutoPlayer) Toggle() bool {
	if a.running {
		a.Stop()
	} else {
		a.Start()
	}
	return a.running
}

func (a *AutoPlayer) Running() bool {
	return a.running
}

func (a *AutoPlayer) blocked() bool {
	beat, ok := a.target.CurrentBeat()
	if !ok {
		return true
	}
	switch beat.EventType() {
	case script.EventChoice, script.EventBattle:
		return true
	}
	return false
}

func (a *AutoPlayer) schedule() {
	gen := a.gen
	a.timer = a.sched.AfterFunc(a.interval, func() {
		a.exec(func() { a.tick(gen) })
	})
}

func (a *AutoPlayer) tick(gen int) {
	if gen != a.gen || !a.running {
		return
	}
	a.timer = nil
	if a.blocked() || !a.target.Advance() || a.blocked() {
		a.Stop()
		if a.onStop != nil {
			a.onStop()
		}
		return
	}
	a.schedule()
}
