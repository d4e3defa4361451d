package battle

import (
	"math"

	"github.com/jwebster45206/d20"

	"github.com/jwebster45206/novel-engine/pkg/actor"
)

// Combatant is one side of a battle. Battles own their combatants by value.
type Combatant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
	MP          int    `json:"mp"`
	MaxMP       int    `json:"max_mp"`
	Str         int    `json:"str"`
	Dex         int    `json:"dex"`
	Int         int    `json:"int"`
	IsDefending bool   `json:"is_defending"`
}

// NewCombatant reads a combatant from a d20 stat block built by actor.StatBlock.
func NewCombatant(id, name string, a *d20.Actor) Combatant {
	attr := func(k string) int {
		v, _ := a.Attribute(k)
		return v
	}
	mp := attr(actor.AttrMP)
	return Combatant{
		ID:    id,
		Name:  name,
		HP:    a.HP(),
		MaxHP: a.MaxHP(),
		MP:    mp,
		MaxMP: mp,
		Str:   attr(actor.AttrStr),
		Dex:   attr(actor.AttrDex),
		Int:   attr(actor.AttrInt),
	}
}

// Alive reports whether hp is above zero.
func (c Combatant) Alive() bool {
	return c.HP > 0
}

func (c Combatant) stat(s Scale) int {
	switch s {
	case ScaleStr:
		return c.Str
	case ScaleInt:
		return c.Int
	default:
		return c.Dex
	}
}

// Damage computes the hit of skill from attacker against defender. roll is a
// uniform sample in [0,1) that selects the multiplier in [0.9, 1.1].
// The result is never below 1.
func Damage(attacker, defender Combatant, skill Skill, roll float64) int {
	raw := skill.Power.Base + half(attacker.stat(skill.Power.Scale))
	dmg := int(math.Floor(float64(raw) * (0.9 + roll*0.2)))
	if defender.IsDefending {
		dmg = half(dmg)
	}
	return max(1, dmg)
}

// healAmount is base + floor(int/2).
func healAmount(c Combatant, skill Skill) int {
	return skill.Power.Base + half(c.Int)
}

// half is floor(n*0.5), rounding toward negative infinity.
func half(n int) int {
	return int(math.Floor(float64(n) * 0.5))
}
