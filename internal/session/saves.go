package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

func (s *Session) snapshot() *save.SaveData {
	flags, inv := s.gs.Snapshot()
	d := &save.SaveData{
		Flags:           flags,
		Inventory:       inv,
		PlayTimeSeconds: s.playSeconds(),
		Title:           s.deps.Title,
	}
	if beat, ok := s.engine.CurrentBeat(); ok {
		d.BeatID = beat.ID
		d.BattleCleared = beat.ID == s.cleared
	}
	return d
}

func (s *Session) restore(ctx context.Context, d *save.SaveData) error {
	idx, ok := s.deps.Script.IndexOf(d.BeatID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBeat, d.BeatID)
	}
	s.stopTimers()
	s.gs.Restore(d.Flags, d.Inventory)
	if err := s.engine.Restore(idx); err != nil {
		return err
	}
	s.cleared = ""
	if d.BattleCleared {
		s.cleared = d.BeatID
	}
	s.playBase = time.Duration(d.PlayTimeSeconds) * time.Second
	s.playStart = s.deps.Clock()
	s.setScreen(ctx, state.ScreenNovel)
	s.logger.Info("Game loaded", "beat", d.BeatID)
	return nil
}

func (s *Session) checkSlot(slot int) error {
	if slot < 0 || slot >= s.deps.Saves.SlotCount() {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// Save writes the current position to a manual slot. Saving is refused
// during a battle because battle state is not persisted.
func (s *Session) Save(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSlot(slot); err != nil {
		return err
	}
	if s.runner != nil {
		return ErrBattleActive
	}
	if !s.deps.Saves.Save(ctx, slot, s.snapshot()) {
		return ErrSaveFailed
	}
	if err := s.deps.Events.PublishGameSaved(ctx, s.ID, slot, false); err != nil {
		s.logger.Debug("Failed to publish save", "error", err)
	}
	return nil
}

// Load replaces the current play-through with a manual slot.
func (s *Session) Load(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSlot(slot); err != nil {
		return err
	}
	d := s.deps.Saves.Load(ctx, slot)
	if d == nil {
		return ErrNoSaveData
	}
	return s.restore(ctx, d)
}

// LoadAutoSave resumes from the auto-save slot.
func (s *Session) LoadAutoSave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.deps.Saves.LoadAutoSave(ctx)
	if d == nil {
		return ErrNoSaveData
	}
	return s.restore(ctx, d)
}

// AutoSave writes the auto-save slot regardless of the AutoSave setting.
func (s *Session) AutoSave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		return ErrBattleActive
	}
	if !s.deps.Saves.AutoSave(ctx, s.snapshot()) {
		return ErrSaveFailed
	}
	if err := s.deps.Events.PublishGameSaved(ctx, s.ID, -1, true); err != nil {
		s.logger.Debug("Failed to publish save", "error", err)
	}
	return nil
}

func (s *Session) DeleteSave(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSlot(slot); err != nil {
		return err
	}
	if !s.deps.Saves.Delete(ctx, slot) {
		return ErrSaveFailed
	}
	return nil
}

func (s *Session) ListSaves(ctx context.Context) []save.SlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Saves.ListSaves(ctx)
}

func (s *Session) HasSaveData(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Saves.HasSaveData(ctx)
}

// SavesAvailable reports whether persistent storage passed its probe.
func (s *Session) SavesAvailable() bool {
	return s.deps.Saves.Available()
}
