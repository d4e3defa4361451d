package session

import (
	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/script"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// View is a read-only picture of a session for presentation clients.
type View struct {
	SessionID string         `json:"session_id"`
	Screen    state.Screen   `json:"screen"`
	Beat      *BeatView      `json:"beat,omitempty"`
	Choices   []ChoiceView   `json:"choices,omitempty"`
	Progress  int            `json:"progress"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	Flags     map[string]any `json:"flags"`
	Inventory []state.Item   `json:"inventory"`
	PlayTime  int64          `json:"play_time"`
	Auto      bool           `json:"auto"`
	Battle    *BattleView    `json:"battle,omitempty"`
}

type BeatView struct {
	ID      string           `json:"storyID"`
	Speaker string           `json:"speaker,omitempty"`
	Text    string           `json:"text"`
	Tags    []string         `json:"tags,omitempty"`
	Event   script.EventType `json:"event"`
	Tips    []string         `json:"tips,omitempty"`
}

// ChoiceView lists every choice; Available is false when its condition fails.
type ChoiceView struct {
	Label     string `json:"label"`
	Target    string `json:"target"`
	Available bool   `json:"available"`
}

type BattleView struct {
	Phase        battle.Phase      `json:"phase"`
	Turn         int               `json:"turn"`
	Player       battle.Combatant  `json:"player"`
	Enemy        battle.Combatant  `json:"enemy"`
	Skills       []SkillView       `json:"skills"`
	Log          []battle.LogEntry `json:"log"`
	EnemyPending bool              `json:"enemy_pending"`
	Reward       *actor.Drop       `json:"reward,omitempty"`
}

type SkillView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	MPCost int    `json:"mp_cost"`
	Usable bool   `json:"usable"`
}

// View returns the current state of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, inv := s.gs.Snapshot()
	v := View{
		SessionID: s.ID.String(),
		Screen:    s.gs.Screen,
		Progress:  s.engine.Progress(),
		Index:     s.engine.Index(),
		Total:     s.engine.Total(),
		Flags:     flags,
		Inventory: inv,
		PlayTime:  s.playSeconds(),
		Auto:      s.auto.Running(),
	}

	if beat, ok := s.engine.CurrentBeat(); ok {
		v.Beat = &BeatView{
			ID:      beat.ID,
			Speaker: beat.Speaker,
			Text:    beat.Text,
			Tags:    beat.Tags,
			Event:   beat.EventType(),
			Tips:    beat.Tips,
		}
		for _, c := range s.engine.Choices() {
			v.Choices = append(v.Choices, ChoiceView{
				Label:     c.Label,
				Target:    c.Target,
				Available: c.Available(s.gs),
			})
		}
	}

	if s.runner != nil {
		b := s.runner.Battle()
		bv := &BattleView{
			Phase:        b.Phase(),
			Turn:         b.Turn(),
			Player:       b.Player(),
			Enemy:        b.Enemy(),
			Log:          b.Log(),
			EnemyPending: s.runner.Pending(),
		}
		for _, sk := range b.Skills() {
			bv.Skills = append(bv.Skills, SkillView{
				ID:     sk.ID,
				Name:   sk.Name,
				MPCost: sk.Cost.MP,
				Usable: b.CanUse(sk),
			})
		}
		if drop, ok := b.Reward(); ok {
			bv.Reward = &drop
		}
		v.Battle = bv
	}
	return v
}
