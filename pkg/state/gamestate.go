package state

import (
	"maps"
	"slices"
)

// Screen identifies the UI screen the presentation layer should show.
// The core only requests screens; it never renders them.
type Screen string

const (
	ScreenTitle      Screen = "TITLE"
	ScreenChapter    Screen = "CHAPTER"
	ScreenNovel      Screen = "NOVEL"
	ScreenBattle     Screen = "BATTLE"
	ScreenResult     Screen = "RESULT"
	ScreenGallery    Screen = "GALLERY"
	ScreenCollection Screen = "COLLECTION"
)

// Item is one inventory entry. ItemID is unique within an inventory.
type Item struct {
	ItemID string `json:"itemID"`
	Count  int    `json:"count"`
}

// GameState is the shared flag and inventory state of a single play session.
// It is owned by the session and mutated only by the scenario and battle engines.
type GameState struct {
	Flags     map[string]any `json:"flags"`
	Inventory []Item         `json:"inventory"`
	Screen    Screen         `json:"currentScreen"`
}

// NewGameState returns an empty game state on the title screen.
func NewGameState() *GameState {
	return &GameState{
		Flags:     make(map[string]any),
		Inventory: make([]Item, 0),
		Screen:    ScreenTitle,
	}
}

// SetFlag stores a flag value. Numbers are normalized to float64 so that
// values compare equal before and after a JSON round trip.
func (gs *GameState) SetFlag(key string, value any) {
	if gs.Flags == nil {
		gs.Flags = make(map[string]any)
	}
	gs.Flags[key] = NormalizeValue(value)
}

// Flag returns the value of a flag and whether it is set.
func (gs *GameState) Flag(key string) (any, bool) {
	v, ok := gs.Flags[key]
	return v, ok
}

// AddItem adds count units of an item. Counts accumulate on an existing entry.
func (gs *GameState) AddItem(itemID string, count int) {
	if itemID == "" || count <= 0 {
		return
	}
	for i := range gs.Inventory {
		if gs.Inventory[i].ItemID == itemID {
			gs.Inventory[i].Count += count
			return
		}
	}
	gs.Inventory = append(gs.Inventory, Item{ItemID: itemID, Count: count})
}

// ItemCount returns how many units of an item are held.
func (gs *GameState) ItemCount(itemID string) int {
	for _, it := range gs.Inventory {
		if it.ItemID == itemID {
			return it.Count
		}
	}
	return 0
}

func (gs *GameState) SetScreen(s Screen) {
	gs.Screen = s
}

// Reset returns the state to a fresh game on the title screen.
func (gs *GameState) Reset() {
	gs.Flags = make(map[string]any)
	gs.Inventory = make([]Item, 0)
	gs.Screen = ScreenTitle
}

// Snapshot returns a deep copy of the flags and inventory.
func (gs *GameState) Snapshot() (map[string]any, []Item) {
	flags := make(map[string]any, len(gs.Flags))
	maps.Copy(flags, gs.Flags)
	inv := slices.Clone(gs.Inventory)
	if inv == nil {
		inv = make([]Item, 0)
	}
	return flags, inv
}

// Restore replaces flags and inventory with copies of the given values.
// Duplicate inventory ids are merged.
func (gs *GameState) Restore(flags map[string]any, inventory []Item) {
	gs.Flags = make(map[string]any, len(flags))
	for k, v := range flags {
		gs.Flags[k] = NormalizeValue(v)
	}
	gs.Inventory = make([]Item, 0, len(inventory))
	for _, it := range inventory {
		gs.AddItem(it.ItemID, it.Count)
	}
}

// NormalizeValue converts every numeric kind to float64 and leaves other values untouched.
func NormalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
