package session

import (
	"context"
	"fmt"

	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/script"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// requestScreen is the engine's screen router. It runs with the lock held.
func (s *Session) requestScreen(screen state.Screen, beat script.Beat) {
	if screen != state.ScreenBattle {
		s.setScreen(context.Background(), screen)
		return
	}
	if err := s.startBattle(beat); err != nil {
		// Without a fight the story would be stuck on this beat.
		s.logger.Warn("Battle skipped", "beat", beat.ID, "error", err)
		s.resumeAfterBattle()
	}
}

// resumeAfterBattle moves past the current battle beat. A battle on the last
// beat is marked cleared so it cannot be fought again.
func (s *Session) resumeAfterBattle() {
	beat, ok := s.engine.CurrentBeat()
	if !s.engine.ResumeAfterBattle() && ok {
		s.cleared = beat.ID
	}
}

func (s *Session) startBattle(beat script.Beat) error {
	ev, _ := beat.Event.(script.BattleEvent)
	s.auto.Stop()

	enemy, ok := s.deps.Enemies.Pick(ev.EnemyIDs, s.deps.RNG.IntN)
	if !ok {
		return fmt.Errorf("no enemies available")
	}

	block, err := actor.StatBlock(s.player.ID, s.player.Status)
	if err != nil {
		return err
	}
	player := battle.NewCombatant(s.player.ID, s.player.Name, block)

	skills := s.deps.Skills.Resolve(s.player.Skills)
	if len(skills) == 0 {
		skills = []battle.Skill{s.deps.Skills.SkillOrDefault(battle.DefaultSkillID)}
	}
	b, err := battle.New(player, skills, enemy, s.deps.Skills, s.deps.RNG)
	if err != nil {
		return err
	}
	s.runner = battle.NewRunner(b, s.deps.Scheduler,
		battle.WithExecutor(s.locked),
		battle.WithDelay(s.deps.EnemyDelay),
		battle.WithRunnerLogger(s.logger),
	)
	s.runner.OnFinish(s.battleFinished)

	ctx := context.Background()
	s.setScreen(ctx, state.ScreenBattle)
	if err := s.deps.Events.PublishBattleStarted(ctx, s.ID, enemy.ID, enemy.Name); err != nil {
		s.logger.Debug("Failed to publish battle start", "error", err)
	}
	s.logger.Info("Battle started", "beat", beat.ID, "enemy", enemy.ID)
	return nil
}

// battleFinished runs with the lock held, either inside UseSkill or inside
// the enemy timer callback.
func (s *Session) battleFinished(phase battle.Phase) {
	var items []string
	if drop, ok := s.runner.Battle().Reward(); ok {
		items = drop.Items
	}
	if err := s.deps.Events.PublishBattleFinished(context.Background(), s.ID, string(phase), items); err != nil {
		s.logger.Debug("Failed to publish battle end", "error", err)
	}
}

// UseSkill performs the player's battle action. The boolean is false when
// the battle rejected the action (wrong turn or not enough MP).
func (s *Session) UseSkill(ctx context.Context, skillID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner == nil {
		return false, ErrNoBattle
	}
	for _, sk := range s.runner.Battle().Skills() {
		if sk.ID == skillID {
			return s.runner.UseSkill(sk), nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownSkill, skillID)
}

// LeaveBattle closes the battle screen. After a victory the drop is added
// to the inventory and the story moves past the battle beat; after a defeat
// the game returns to the title screen. Leaving an unfinished battle cancels
// the enemy's pending action and returns to the battle beat.
func (s *Session) LeaveBattle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner == nil {
		return ErrNoBattle
	}
	s.runner.Cancel()
	b := s.runner.Battle()
	s.runner = nil

	switch b.Phase() {
	case battle.Victory:
		b.ApplyReward(s.gs)
		s.resumeAfterBattle()
		s.setScreen(ctx, state.ScreenNovel)
		s.afterStep(ctx)
	case battle.Defeat:
		s.setScreen(ctx, state.ScreenTitle)
	default:
		s.logger.Info("Battle abandoned", "enemy", b.Enemy().ID, "turn", b.Turn())
		s.setScreen(ctx, state.ScreenNovel)
	}
	return nil
}
