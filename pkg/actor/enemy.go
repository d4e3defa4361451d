package actor

import (
	"fmt"
	"time"
)

// DefaultThinkDelay is how long an enemy waits before acting when its AI sets no delay.
const DefaultThinkDelay = 1500 * time.Millisecond

// Drop is the reward granted when an enemy is defeated.
type Drop struct {
	Items []string `json:"items" yaml:"items"`
	Exp   int      `json:"exp" yaml:"exp"`
	Gold  int      `json:"gold" yaml:"gold"`
}

// AI configures enemy behaviour. Pattern is informational; enemies pick
// skills uniformly at random.
type AI struct {
	Pattern    string  `json:"pattern,omitempty" yaml:"pattern,omitempty"` // aggressive, defensive, random
	ThinkDelay float64 `json:"thinkDelay,omitempty" yaml:"thinkDelay,omitempty"`
}

// Enemy is a static enemy definition loaded from the enemy catalog.
type Enemy struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	ImageTag       string   `json:"imageTag,omitempty" yaml:"imageTag,omitempty"`
	PromptTemplate string   `json:"promptTemplate,omitempty" yaml:"promptTemplate,omitempty"`
	Status         Status   `json:"status" yaml:"status"`
	Skills         []string `json:"skills" yaml:"skills"`
	Drop           Drop     `json:"drop" yaml:"drop"`
	AI             AI       `json:"ai" yaml:"ai"`
}

// Delay returns the enemy's think delay, DefaultThinkDelay when unset.
func (e Enemy) Delay() time.Duration {
	if e.AI.ThinkDelay <= 0 {
		return DefaultThinkDelay
	}
	return time.Duration(e.AI.ThinkDelay * float64(time.Second))
}

// EnemyCatalog is the read-only enemy table keyed by id.
type EnemyCatalog struct {
	byID  map[string]Enemy
	order []string
}

// NewEnemyCatalog indexes enemies by id, rejecting duplicates.
func NewEnemyCatalog(enemies []Enemy) (*EnemyCatalog, error) {
	c := &EnemyCatalog{byID: make(map[string]Enemy, len(enemies))}
	for _, e := range enemies {
		if e.ID == "" {
			return nil, fmt.Errorf("enemy %q has no id", e.Name)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate enemy id %q", e.ID)
		}
		c.byID[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// LoadEnemies reads an enemy catalog (.json, .yaml or .yml).
func LoadEnemies(path string) (*EnemyCatalog, error) {
	var list []Enemy
	if err := DecodeFile(path, &list); err != nil {
		return nil, err
	}
	return NewEnemyCatalog(list)
}

func (c *EnemyCatalog) Get(id string) (Enemy, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// IDs returns enemy ids in catalog order.
func (c *EnemyCatalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *EnemyCatalog) Len() int {
	return len(c.order)
}

// Pick returns a random enemy among the ids known to the catalog. When none
// are known it picks from the whole catalog. pick(n) must return a value in
// [0, n).
func (c *EnemyCatalog) Pick(ids []string, pick func(n int) int) (Enemy, bool) {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.byID[id]; ok {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		known = c.order
	}
	if len(known) == 0 {
		return Enemy{}, false
	}
	return c.byID[known[pick(len(known))]], true
}
