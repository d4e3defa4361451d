package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateID = errors.New("duplicate beat id")
	ErrEmptyID     = errors.New("empty beat id")
)

// Store is the ordered, read-only sequence of beats. Order is array
// position, never the lexical order of ids.
type Store struct {
	beats []Beat
	index map[string]int
}

// NewStore copies beats into a new store and indexes them by id.
func NewStore(beats []Beat) (*Store, error) {
	s := &Store{
		beats: slices.Clone(beats),
		index: make(map[string]int, len(beats)),
	}
	for i, b := range s.beats {
		if b.ID == "" {
			return nil, fmt.Errorf("beat at position %d: %w", i, ErrEmptyID)
		}
		if _, dup := s.index[b.ID]; dup {
			return nil, fmt.Errorf("beat %q: %w", b.ID, ErrDuplicateID)
		}
		if b.Event == nil {
			s.beats[i].Event = NoEvent{}
		}
		s.index[b.ID] = i
	}
	return s, nil
}

func (s *Store) Len() int {
	return len(s.beats)
}

// At returns the beat at position i.
func (s *Store) At(i int) (Beat, bool) {
	if i < 0 || i >= len(s.beats) {
		return Beat{}, false
	}
	return s.beats[i], true
}

// IndexOf returns the position of the beat with the given id.
func (s *Store) IndexOf(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Get returns the beat with the given id.
func (s *Store) Get(id string) (Beat, bool) {
	i, ok := s.index[id]
	if !ok {
		return Beat{}, false
	}
	return s.beats[i], true
}

// Beats returns a copy of all beats in order.
func (s *Store) Beats() []Beat {
	return slices.Clone(s.beats)
}

// Format is a supported script file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported file extension: %s", filepath.Base(path))
	}
}

// Parse decodes a list of beats and builds a store.
func Parse(data []byte, format Format) (*Store, error) {
	var beats []Beat
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &beats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal script: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &beats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal script: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported script format %q", format)
	}
	return NewStore(beats)
}

// Load reads a script file (.json, .yaml or .yml).
func Load(path string) (*Store, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return Parse(data, format)
}

// Validate reports structural problems that would strand the player:
// dangling jump or choice targets, empty choice lists and enemy-less battles.
func Validate(s *Store) []error {
	var errs []error
	for _, b := range s.beats {
		switch ev := b.Event.(type) {
		case ChoiceEvent:
			if len(ev.Choices) == 0 {
				errs = append(errs, fmt.Errorf("beat %q: choice event has no choices", b.ID))
			}
			for _, c := range ev.Choices {
				if _, ok := s.index[c.Target]; !ok {
					errs = append(errs, fmt.Errorf("beat %q: choice %q targets unknown beat %q", b.ID, c.Label, c.Target))
				}
				if c.Condition != nil && !c.Condition.Op.Valid() {
					errs = append(errs, fmt.Errorf("beat %q: choice %q has unsupported operator %q", b.ID, c.Label, c.Condition.Op))
				}
			}
		case JumpEvent:
			if _, ok := s.index[ev.Target]; !ok {
				errs = append(errs, fmt.Errorf("beat %q: jump targets unknown beat %q", b.ID, ev.Target))
			}
		case BattleEvent:
			if len(ev.EnemyIDs) == 0 {
				errs = append(errs, fmt.Errorf("beat %q: battle event lists no enemies", b.ID))
			}
		case ItemEvent:
			if ev.ItemID == "" {
				errs = append(errs, fmt.Errorf("beat %q: item event has no item id", b.ID))
			}
		case FlagEvent:
			if ev.Key == "" {
				errs = append(errs, fmt.Errorf("beat %q: flag event has no key", b.ID))
			}
		}
	}
	return errs
}
