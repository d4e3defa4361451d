package battle

import (
	"fmt"

	"github.com/jwebster45206/novel-engine/pkg/actor"
)

// DefaultSkillID is the enemy fallback when a listed skill is missing from the catalog.
const DefaultSkillID = "scratch"

// Scale names the attacker stat a skill's power grows with.
type Scale string

const (
	ScaleStr Scale = "str"
	ScaleInt Scale = "int"
	ScaleDex Scale = "dex"
)

// Target is who a skill affects.
type Target string

const (
	TargetEnemy      Target = "enemy"
	TargetSelf       Target = "self"
	TargetAlly       Target = "ally"
	TargetAllEnemies Target = "all_enemies"
	TargetAllAllies  Target = "all_allies"
)

// Skill ids with special self-target behaviour.
const (
	SkillGuard = "guard"
	SkillHeal  = "heal"
)

type Cost struct {
	MP       int `json:"mp" yaml:"mp"`
	Cooldown int `json:"cooldown" yaml:"cooldown"` // turns; informational
}

type Power struct {
	Base  int   `json:"base" yaml:"base"`
	Scale Scale `json:"scale" yaml:"scale"`
}

// Skill is a static skill definition.
type Skill struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	IconTag     string   `json:"iconTag,omitempty" yaml:"iconTag,omitempty"`
	Cost        Cost     `json:"cost" yaml:"cost"`
	Power       Power    `json:"power" yaml:"power"`
	Target      Target   `json:"target" yaml:"target"`
	Effects     []string `json:"effects,omitempty" yaml:"effects,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// basicAttack is used when even the default skill is missing from the catalog.
var basicAttack = Skill{
	ID:     DefaultSkillID,
	Name:   "Scratch",
	Power:  Power{Base: 5, Scale: ScaleStr},
	Target: TargetEnemy,
}

// Catalog is the read-only skill table.
type Catalog struct {
	skills map[string]Skill
	order  []string
}

func NewCatalog(skills []Skill) (*Catalog, error) {
	c := &Catalog{skills: make(map[string]Skill, len(skills))}
	for _, s := range skills {
		if s.ID == "" {
			return nil, fmt.Errorf("skill %q has no id", s.Name)
		}
		if _, dup := c.skills[s.ID]; dup {
			return nil, fmt.Errorf("duplicate skill id %q", s.ID)
		}
		c.skills[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c, nil
}

// LoadCatalog reads a skill list from a .json, .yaml or .yml file.
func LoadCatalog(path string) (*Catalog, error) {
	var list []Skill
	if err := actor.DecodeFile(path, &list); err != nil {
		return nil, err
	}
	return NewCatalog(list)
}

func (c *Catalog) Skill(id string) (Skill, bool) {
	if c == nil {
		return Skill{}, false
	}
	s, ok := c.skills[id]
	return s, ok
}

// SkillOrDefault returns id, else the catalog's scratch, else a built-in basic attack.
func (c *Catalog) SkillOrDefault(id string) Skill {
	if s, ok := c.Skill(id); ok {
		return s
	}
	if s, ok := c.Skill(DefaultSkillID); ok {
		return s
	}
	return basicAttack
}

// Resolve returns the known skills among ids, in order.
func (c *Catalog) Resolve(ids []string) []Skill {
	out := make([]Skill, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.Skill(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// IDs returns skill ids in catalog order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
