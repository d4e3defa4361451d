package script

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/novel-engine/pkg/conditionals"
)

const sampleJSON = `[
  {
    "storyID": "01_01_01",
    "speaker": "Narrator",
    "text": "The gate creaks open.",
    "tags": ["bg_gate"],
    "event": {"type": "NONE", "payload": {}},
    "flags": {"arrived": true, "visits": 1, "arrived": false}
  },
  {
    "storyID": "01_01_02",
    "speaker": "Guide",
    "text": "Which way?",
    "event": {
      "type": "CHOICE",
      "payload": {
        "choices": [
          {"label": "Forest", "nextStoryID": "01_01_03"},
          {"label": "Cave", "nextStoryID": "01_01_04", "conditions": {"flag": "visits", "operator": ">", "value": 0}}
        ]
      }
    },
    "flags": {}
  },
  {
    "storyID": "01_01_03",
    "speaker": "Narrator",
    "text": "You find a potion.",
    "event": {"type": "ITEM", "payload": {"itemID": "potion"}},
    "flags": {}
  },
  {
    "storyID": "01_01_04",
    "speaker": "Narrator",
    "text": "A slime appears!",
    "event": {"type": "BATTLE", "payload": {"enemyIDs": ["slime"], "reward": {"items": ["gel"], "exp": 5}}},
    "flags": {}
  },
  {
    "storyID": "01_01_05",
    "speaker": "Narrator",
    "text": "Back to the gate.",
    "event": {"type": "JUMP", "payload": {"nextStoryID": "01_01_01"}}
  }
]`

func TestParseJSON(t *testing.T) {
	s, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	require.Equal(t, 5, s.Len())

	first, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, EventNone, first.EventType())
	assert.Equal(t, FlagSet{
		{Key: "arrived", Value: true},
		{Key: "visits", Value: float64(1)},
		{Key: "arrived", Value: false},
	}, first.Flags, "flag order and duplicates must survive decoding")

	choice, _ := s.Get("01_01_02")
	require.Len(t, choice.Choices(), 2)
	assert.Nil(t, choice.Choices()[0].Condition)
	require.NotNil(t, choice.Choices()[1].Condition)
	assert.Equal(t, conditionals.OpGreater, choice.Choices()[1].Condition.Op)

	item, _ := s.Get("01_01_03")
	assert.Equal(t, ItemEvent{ItemID: "potion", Count: 1}, item.Event, "missing count defaults to 1")

	battle, _ := s.Get("01_01_04")
	assert.Equal(t, BattleEvent{EnemyIDs: []string{"slime"}, Reward: Reward{Items: []string{"gel"}, Exp: 5}}, battle.Event)

	jump, _ := s.Get("01_01_05")
	assert.Equal(t, JumpEvent{Target: "01_01_01"}, jump.Event)

	idx, ok := s.IndexOf("01_01_04")
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	assert.Empty(t, Validate(s))
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
- storyID: a
  speaker: Narrator
  text: Hello
  event:
    type: FLAG
    payload:
      key: foo
      value: 1
  flags:
    zeta: 1
    alpha: two
- storyID: b
  speaker: Guide
  text: Pick
  event:
    type: CHOICE
    payload:
      choices:
        - label: Again
          nextStoryID: a
        - label: Rich only
          nextStoryID: a
          conditions:
            flag: gold
            operator: ">"
            value: 100
`)
	s, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	a, _ := s.Get("a")
	assert.Equal(t, FlagEvent{Key: "foo", Value: 1}, a.Event)
	assert.Equal(t, FlagSet{{Key: "zeta", Value: 1}, {Key: "alpha", Value: "two"}}, a.Flags)

	b, _ := s.Get("b")
	require.Len(t, b.Choices(), 2)
	assert.Equal(t, "gold", b.Choices()[1].Condition.Flag)
	assert.Empty(t, Validate(s))
}

func TestParseRejectsUnknownEventType(t *testing.T) {
	_, err := Parse([]byte(`[{"storyID":"x","event":{"type":"DANCE","payload":{}}}]`), FormatJSON)
	assert.Error(t, err)
}

func TestNewStoreRejectsDuplicateIDs(t *testing.T) {
	_, err := NewStore([]Beat{{ID: "a"}, {ID: "a"}})
	assert.True(t, errors.Is(err, ErrDuplicateID))

	_, err = NewStore([]Beat{{ID: ""}})
	assert.True(t, errors.Is(err, ErrEmptyID))
}

func TestNewStoreDefaultsMissingEvent(t *testing.T) {
	s, err := NewStore([]Beat{{ID: "a"}})
	require.NoError(t, err)
	b, _ := s.At(0)
	assert.Equal(t, NoEvent{}, b.Event)
}

func TestStoreAtOutOfRange(t *testing.T) {
	s, err := NewStore(nil)
	require.NoError(t, err)
	_, ok := s.At(0)
	assert.False(t, ok)
	_, ok = s.At(-1)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	s, err := NewStore([]Beat{
		{ID: "a", Event: JumpEvent{Target: "missing"}},
		{ID: "b", Event: ChoiceEvent{}},
		{ID: "c", Event: BattleEvent{}},
		{ID: "d", Event: ChoiceEvent{Choices: []Choice{{Label: "x", Target: "nowhere"}}}},
		{ID: "e", Event: ItemEvent{Count: 1}},
	})
	require.NoError(t, err)
	assert.Len(t, Validate(s), 5)
}

func TestBeatMarshalRoundTrip(t *testing.T) {
	s, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	data, err := json.Marshal(s.Beats())
	require.NoError(t, err)

	again, err := Parse(data, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, s.Beats(), again.Beats())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "script not found")

	_, err = Load(filepath.Join(dir, "scenario.txt"))
	assert.ErrorContains(t, err, "unsupported file extension")
}
