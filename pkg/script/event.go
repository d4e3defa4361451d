package script

import (
	"fmt"

	"github.com/jwebster45206/novel-engine/pkg/conditionals"
)

// EventType names the variant of a beat's event.
type EventType string

const (
	EventNone   EventType = "NONE"
	EventChoice EventType = "CHOICE"
	EventBattle EventType = "BATTLE"
	EventItem   EventType = "ITEM"
	EventFlag   EventType = "FLAG"
	EventJump   EventType = "JUMP"
)

// Event is the effect a beat triggers. Exactly one variant per beat;
// each variant carries only its own payload.
type Event interface {
	Type() EventType
	isEvent()
}

// NoEvent is a plain line of dialogue or narration.
type NoEvent struct{}

// ChoiceEvent blocks progression until the player picks one of Choices.
type ChoiceEvent struct {
	Choices []Choice
}

// BattleEvent hands control to the battle engine.
type BattleEvent struct {
	EnemyIDs []string
	Reward   Reward
}

// ItemEvent grants Count units of ItemID when the beat is passed.
type ItemEvent struct {
	ItemID string
	Count  int
}

// FlagEvent sets a single flag when the beat is passed.
type FlagEvent struct {
	Key   string
	Value any
}

// JumpEvent moves to Target instead of the next beat.
type JumpEvent struct {
	Target string
}

func (NoEvent) Type() EventType     { return EventNone }
func (ChoiceEvent) Type() EventType { return EventChoice }
func (BattleEvent) Type() EventType { return EventBattle }
func (ItemEvent) Type() EventType   { return EventItem }
func (FlagEvent) Type() EventType   { return EventFlag }
func (JumpEvent) Type() EventType   { return EventJump }

func (NoEvent) isEvent()     {}
func (ChoiceEvent) isEvent() {}
func (BattleEvent) isEvent() {}
func (ItemEvent) isEvent()   {}
func (FlagEvent) isEvent()   {}
func (JumpEvent) isEvent()   {}

// Reward is the scripted reward attached to a battle beat.
type Reward struct {
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`
	Exp   int      `json:"exp,omitempty" yaml:"exp,omitempty"`
}

// Choice is one selectable branch of a choice event.
type Choice struct {
	Label     string                  `json:"label" yaml:"label"`
	Target    string                  `json:"nextStoryID" yaml:"nextStoryID"`
	Condition *conditionals.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Available reports whether the choice may be selected with the given flags.
func (c Choice) Available(flags conditionals.FlagView) bool {
	if c.Condition == nil {
		return true
	}
	return conditionals.Evaluate(*c.Condition, flags)
}

// wireEvent is the on-disk shape of an event: a type tag plus a shared payload object.
type wireEvent struct {
	Type    EventType   `json:"type" yaml:"type"`
	Payload wirePayload `json:"payload" yaml:"payload"`
}

type wirePayload struct {
	Choices     []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
	EnemyIDs    []string `json:"enemyIDs,omitempty" yaml:"enemyIDs,omitempty"`
	Reward      *Reward  `json:"reward,omitempty" yaml:"reward,omitempty"`
	ItemID      string   `json:"itemID,omitempty" yaml:"itemID,omitempty"`
	Count       int      `json:"count,omitempty" yaml:"count,omitempty"`
	Key         string   `json:"key,omitempty" yaml:"key,omitempty"`
	Value       any      `json:"value,omitempty" yaml:"value,omitempty"`
	NextStoryID string   `json:"nextStoryID,omitempty" yaml:"nextStoryID,omitempty"`
}

func (w *wireEvent) toEvent() (Event, error) {
	if w == nil {
		return NoEvent{}, nil
	}
	p := w.Payload
	switch w.Type {
	case "", EventNone:
		return NoEvent{}, nil
	case EventChoice:
		return ChoiceEvent{Choices: p.Choices}, nil
	case EventBattle:
		ev := BattleEvent{EnemyIDs: p.EnemyIDs}
		if p.Reward != nil {
			ev.Reward = *p.Reward
		}
		return ev, nil
	case EventItem:
		count := p.Count
		if count <= 0 {
			count = 1
		}
		return ItemEvent{ItemID: p.ItemID, Count: count}, nil
	case EventFlag:
		return FlagEvent{Key: p.Key, Value: p.Value}, nil
	case EventJump:
		return JumpEvent{Target: p.NextStoryID}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", w.Type)
	}
}

func fromEvent(ev Event) wireEvent {
	switch e := ev.(type) {
	case ChoiceEvent:
		return wireEvent{Type: EventChoice, Payload: wirePayload{Choices: e.Choices}}
	case BattleEvent:
		r := e.Reward
		return wireEvent{Type: EventBattle, Payload: wirePayload{EnemyIDs: e.EnemyIDs, Reward: &r}}
	case ItemEvent:
		return wireEvent{Type: EventItem, Payload: wirePayload{ItemID: e.ItemID, Count: e.Count}}
	case FlagEvent:
		return wireEvent{Type: EventFlag, Payload: wirePayload{Key: e.Key, Value: e.Value}}
	case JumpEvent:
		return wireEvent{Type: EventJump, Payload: wirePayload{NextStoryID: e.Target}}
	default:
		return wireEvent{Type: EventNone}
	}
}
