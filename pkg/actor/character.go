package actor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/d20"
	"gopkg.in/yaml.v3"
)

// Attribute keys used on d20 stat blocks.
const (
	AttrStr = "str"
	AttrDex = "dex"
	AttrInt = "int"
	AttrMP  = "mp"
)

// defaultAC is the armor class given to stat blocks; battles here do not roll to hit.
const defaultAC = 10

// Status is the base stat line shared by characters and enemies.
type Status struct {
	HP  int `json:"hp" yaml:"hp"`
	MP  int `json:"mp" yaml:"mp"`
	Str int `json:"str" yaml:"str"`
	Dex int `json:"dex" yaml:"dex"`
	Int int `json:"int" yaml:"int"`
}

// ToAttributes converts Status to a map for d20.Actor compatibility
func (s Status) ToAttributes() map[string]int {
	return map[string]int{
		AttrStr: s.Str,
		AttrDex: s.Dex,
		AttrInt: s.Int,
		AttrMP:  s.MP,
	}
}

// Character is a playable character definition.
type Character struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultTags    []string `json:"defaultTags,omitempty" yaml:"defaultTags,omitempty"`
	PortraitTag    string   `json:"portraitTag,omitempty" yaml:"portraitTag,omitempty"`
	PromptTemplate string   `json:"promptTemplate,omitempty" yaml:"promptTemplate,omitempty"`
	Status         Status   `json:"status" yaml:"status"`
	Skills         []string `json:"skills" yaml:"skills"`
}

// DefaultHero is the player used when no character catalog is configured.
func DefaultHero() Character {
	return Character{
		ID:     "hero",
		Name:   "Hero",
		Status: Status{HP: 100, MP: 30, Str: 12, Dex: 10, Int: 8},
		Skills: []string{"slash", "guard", "heal"},
	}
}

// StatBlock builds a d20.Actor from a stat line. The actor holds HP and the
// str/dex/int/mp attributes that battles read from.
func StatBlock(id string, s Status) (*d20.Actor, error) {
	if s.HP <= 0 {
		return nil, fmt.Errorf("actor %q: hp must be positive, got %d", id, s.HP)
	}
	a, err := d20.NewActor(id).
		WithHP(s.HP).
		WithAC(defaultAC).
		WithAttributes(s.ToAttributes()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor %q: %w", id, err)
	}
	return a, nil
}

// LoadCharacters reads a character catalog (.json, .yaml or .yml) keyed by id.
func LoadCharacters(path string) (map[string]Character, error) {
	var list []Character
	if err := DecodeFile(path, &list); err != nil {
		return nil, err
	}
	out := make(map[string]Character, len(list))
	for _, c := range list {
		if c.ID == "" {
			return nil, fmt.Errorf("character %q has no id", c.Name)
		}
		if _, dup := out[c.ID]; dup {
			return nil, fmt.Errorf("duplicate character id %q", c.ID)
		}
		out[c.ID] = c
	}
	return out, nil
}

// DecodeFile decodes a JSON or YAML file into v, chosen by extension.
func DecodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
		}
	default:
		return fmt.Errorf("unsupported file extension: %s", filepath.Base(path))
	}
	return nil
}
