// Package battle resolves one-on-one turn-based fights between the player
// and a single enemy.
//
// A Battle is a synchronous state machine:
//
//	PlayerTurn -> EnemyTurn -> PlayerTurn ... -> Victory | Defeat
//
// It never sleeps. The delay before the enemy acts is owned by Runner.
package battle

import (
	"fmt"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// maxLogEntries is how many battle log lines are kept.
const maxLogEntries = 10

type Phase string

const (
	PlayerTurn Phase = "player"
	EnemyTurn  Phase = "enemy"
	Victory    Phase = "victory"
	Defeat     Phase = "defeat"
)

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == Victory || p == Defeat
}

type LogKind string

const (
	LogDamage LogKind = "damage"
	LogHeal   LogKind = "heal"
	LogInfo   LogKind = "info"
)

type LogEntry struct {
	Message string  `json:"message"`
	Kind    LogKind `json:"type"`
}

// Random is the randomness a battle draws on. *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Battle holds the state of one fight.
type Battle struct {
	player       Combatant
	enemy        Combatant
	enemyDef     actor.Enemy
	playerSkills []Skill
	catalog      *Catalog
	rng          Random

	phase    Phase
	turn     int
	log      []LogEntry
	rewarded bool
}

// New starts a battle in PlayerTurn. The enemy's stat block is validated
// through actor.StatBlock.
func New(player Combatant, playerSkills []Skill, enemy actor.Enemy, cat *Catalog, rng Random) (*Battle, error) {
	if rng == nil {
		return nil, fmt.Errorf("battle requires a random source")
	}
	if !player.Alive() {
		return nil, fmt.Errorf("player %q has no hp", player.ID)
	}
	block, err := actor.StatBlock(enemy.ID, enemy.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to build enemy: %w", err)
	}
	b := &Battle{
		player:       player,
		enemy:        NewCombatant(enemy.ID, enemy.Name, block),
		enemyDef:     enemy,
		playerSkills: append([]Skill(nil), playerSkills...),
		catalog:      cat,
		rng:          rng,
		phase:        PlayerTurn,
		turn:         1,
	}
	b.addLog(fmt.Sprintf("%s appears!", enemy.Name), LogInfo)
	return b, nil
}

func (b *Battle) Phase() Phase          { return b.phase }
func (b *Battle) Turn() int             { return b.turn }
func (b *Battle) Player() Combatant     { return b.player }
func (b *Battle) Enemy() Combatant      { return b.enemy }
func (b *Battle) EnemyDef() actor.Enemy { return b.enemyDef }
func (b *Battle) Finished() bool        { return b.phase.Terminal() }

// Log returns the most recent log entries, oldest first.
func (b *Battle) Log() []LogEntry {
	out := make([]LogEntry, len(b.log))
	copy(out, b.log)
	return out
}

// Skills returns the player's skills.
func (b *Battle) Skills() []Skill {
	out := make([]Skill, len(b.playerSkills))
	copy(out, b.playerSkills)
	return out
}

// CanUse reports whether the player could use skill right now.
func (b *Battle) CanUse(skill Skill) bool {
	return b.phase == PlayerTurn && b.player.MP >= skill.Cost.MP
}

func (b *Battle) addLog(msg string, kind LogKind) {
	b.log = append(b.log, LogEntry{Message: msg, Kind: kind})
	if len(b.log) > maxLogEntries {
		b.log = b.log[len(b.log)-maxLogEntries:]
	}
}

// UseSkill performs the player's action. It returns false, leaving the
// battle unchanged apart from the log, when it is not the player's turn or
// the player lacks mp. Every accepted skill ends the player's turn.
func (b *Battle) UseSkill(skill Skill) bool {
	if b.phase != PlayerTurn {
		return false
	}
	if b.player.MP < skill.Cost.MP {
		b.addLog("Not enough MP!", LogInfo)
		return false
	}

	b.player.MP -= skill.Cost.MP
	b.player.IsDefending = false

	if skill.Target == TargetSelf {
		switch skill.ID {
		case SkillGuard:
			b.player.IsDefending = true
			b.addLog(fmt.Sprintf("%s takes a defensive stance!", b.player.Name), LogInfo)
		case SkillHeal:
			amount := healAmount(b.player, skill)
			b.player.HP = min(b.player.MaxHP, b.player.HP+amount)
			b.addLog(fmt.Sprintf("%s recovers %d HP!", b.player.Name, amount), LogHeal)
		}
	} else {
		dmg := Damage(b.player, b.enemy, skill, b.rng.Float64())
		b.enemy.HP = max(0, b.enemy.HP-dmg)
		b.addLog(fmt.Sprintf("%s uses %s! %s takes %d damage!", b.player.Name, skill.Name, b.enemy.Name, dmg), LogDamage)
	}

	b.phase = EnemyTurn
	if !b.enemy.Alive() {
		b.phase = Victory
		b.addLog(fmt.Sprintf("%s is defeated!", b.enemy.Name), LogInfo)
	}
	return true
}

// enemySkill picks uniformly from the enemy's skill list, falling back to
// the catalog default.
func (b *Battle) enemySkill() Skill {
	ids := b.enemyDef.Skills
	if len(ids) == 0 {
		return b.catalog.SkillOrDefault(DefaultSkillID)
	}
	return b.catalog.SkillOrDefault(ids[b.rng.IntN(len(ids))])
}

// ResolveEnemyTurn performs the enemy's action. It returns false outside EnemyTurn.
func (b *Battle) ResolveEnemyTurn() bool {
	if b.phase != EnemyTurn {
		return false
	}
	if !b.enemy.Alive() {
		b.phase = Victory
		b.addLog(fmt.Sprintf("%s is defeated!", b.enemy.Name), LogInfo)
		return true
	}

	skill := b.enemySkill()
	dmg := Damage(b.enemy, b.player, skill, b.rng.Float64())
	b.player.HP = max(0, b.player.HP-dmg)
	b.player.IsDefending = false
	b.addLog(fmt.Sprintf("%s uses %s! %s takes %d damage!", b.enemy.Name, skill.Name, b.player.Name, dmg), LogDamage)

	if !b.player.Alive() {
		b.phase = Defeat
		b.addLog(fmt.Sprintf("%s has fallen...", b.player.Name), LogDamage)
		return true
	}
	b.turn++
	b.phase = PlayerTurn
	return true
}

// EnemyDelay is how long the enemy waits before acting.
func (b *Battle) EnemyDelay() time.Duration {
	return b.enemyDef.Delay()
}

// Reward returns the enemy's drop. ok is false unless the battle was won.
func (b *Battle) Reward() (actor.Drop, bool) {
	if b.phase != Victory {
		return actor.Drop{}, false
	}
	return b.enemyDef.Drop, true
}

// ApplyReward adds one unit of each listed drop item to gs. Duplicate ids in
// the drop list each grant a unit. It applies at most once per battle.
func (b *Battle) ApplyReward(gs *state.GameState) bool {
	drop, ok := b.Reward()
	if !ok || b.rewarded {
		return false
	}
	for _, id := range drop.Items {
		gs.AddItem(id, 1)
	}
	b.rewarded = true
	return true
}
