package battle

import (
	"log/slog"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/schedule"
)

// Runner drives a Battle in real time: after each accepted player action it
// schedules the enemy's turn behind the enemy's think delay.
//
// Runner is not safe for concurrent use. Scheduled callbacks are routed
// through the executor so the owner can run them under its own lock.
type Runner struct {
	battle   *Battle
	sched    schedule.Scheduler
	exec     func(func())
	delay    time.Duration
	logger   *slog.Logger
	onFinish func(Phase)

	timer    schedule.Timer
	gen      int
	notified bool
}

type RunnerOption func(*Runner)

// WithExecutor runs scheduled callbacks through exec.
func WithExecutor(exec func(func())) RunnerOption {
	return func(r *Runner) { r.exec = exec }
}

// WithDelay overrides every enemy's think delay. Non-positive values are ignored.
func WithDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.delay = d
		}
	}
}

func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(b *Battle, sched schedule.Scheduler, opts ...RunnerOption) *Runner {
	r := &Runner{
		battle: b,
		sched:  sched,
		exec:   func(f func()) { f() },
		delay:  b.EnemyDelay(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Battle() *Battle {
	return r.battle
}

// OnFinish registers f to run once when the battle reaches Victory or Defeat.
func (r *Runner) OnFinish(f func(Phase)) {
	r.onFinish = f
}

// UseSkill forwards the player's action and schedules the enemy's reply.
func (r *Runner) UseSkill(skill Skill) bool {
	if !r.battle.UseSkill(skill) {
		r.logger.Debug("skill rejected",
			"skill", skill.ID,
			"phase", r.battle.Phase(),
			"mp", r.battle.Player().MP)
		return false
	}
	r.step()
	return true
}

func (r *Runner) step() {
	switch r.battle.Phase() {
	case EnemyTurn:
		r.scheduleEnemy()
	case Victory, Defeat:
		r.finish()
	}
}

func (r *Runner) scheduleEnemy() {
	r.Cancel()
	gen := r.gen
	r.timer = r.sched.AfterFunc(r.delay, func() {
		r.exec(func() { r.enemyAct(gen) })
	})
}

func (r *Runner) enemyAct(gen int) {
	// A cancelled timer may still fire if it was already running.
	if gen != r.gen {
		return
	}
	r.timer = nil
	if r.battle.ResolveEnemyTurn() {
		r.step()
	}
}

func (r *Runner) finish() {
	if r.notified {
		return
	}
	r.notified = true
	r.logger.Info("battle finished",
		"enemy", r.battle.Enemy().ID,
		"phase", r.battle.Phase(),
		"turns", r.battle.Turn())
	if r.onFinish != nil {
		r.onFinish(r.battle.Phase())
	}
}

// Cancel stops a pending enemy action. Safe to call at any time.
func (r *Runner) Cancel() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Pending reports whether an enemy action is scheduled.
func (r *Runner) Pending() bool {
	return r.timer != nil
}
