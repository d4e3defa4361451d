package main

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/schedule"
	"github.com/jwebster45206/novel-engine/pkg/script"
	"github.com/jwebster45206/novel-engine/pkg/storage"
)

func TestFormatSpeaker(t *testing.T) {
	assert.Equal(t, "Old Man", formatSpeaker("old_man"))
	assert.Equal(t, "Hero", formatSpeaker("hero"))
	assert.Equal(t, "", formatSpeaker(""))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.5, ratio(5, 10))
	assert.Equal(t, 0.0, ratio(5, 0))
	assert.Equal(t, 0.0, ratio(-3, 10))
	assert.Equal(t, 1.0, ratio(12, 10))
}

func TestIndexFromKey(t *testing.T) {
	i, ok := indexFromKey("1")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = indexFromKey("9")
	assert.True(t, ok)
	assert.Equal(t, 8, i)

	for _, key := range []string{"0", "a", "enter", ""} {
		_, ok := indexFromKey(key)
		assert.False(t, ok, key)
	}
}

func newTestUI(t *testing.T) ConsoleUI {
	t.Helper()
	store, err := script.NewStore([]script.Beat{
		{ID: "a", Speaker: "old_man", Text: "Which way?"},
		{ID: "b", Text: "A fork in the road.", Event: script.ChoiceEvent{Choices: []script.Choice{
			{Label: "Left", Target: "c"},
			{Label: "Right", Target: "d"},
		}}},
		{ID: "c", Text: "Left it is."},
		{ID: "d", Text: "Right it is."},
	})
	require.NoError(t, err)

	s, err := session.New(session.Deps{
		Script:    store,
		Scheduler: schedule.NewFake(),
		Saves:     save.NewManager(storage.NewMemoryStore()),
	}, uuid.New())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	m := NewConsoleUI(nil, nil)
	m.session = s
	m.view = s.View()
	m.slots = s.ListSaves(context.Background())
	return m
}

func (m *ConsoleUI) press(keys ...string) {
	for _, k := range keys {
		m.handleKey(k)
		m.view = m.session.View()
	}
}

func TestRenderStory(t *testing.T) {
	m := newTestUI(t)

	out := renderStory(m.view, m.bar, 60)
	assert.Contains(t, out, "Old Man")
	assert.Contains(t, out, "Which way?")
	assert.Contains(t, out, "Enter: continue")

	m.press("enter")
	out = renderStory(m.view, m.bar, 60)
	assert.Contains(t, out, "1) Left")
	assert.Contains(t, out, "2) Right")
}

func TestHandleKeyPlaysAndSaves(t *testing.T) {
	m := newTestUI(t)

	m.press("enter")
	require.Equal(t, "b", m.view.Beat.ID)

	m.press("enter")
	assert.Equal(t, "b", m.view.Beat.ID)
	assert.Equal(t, "Choose an option to continue", m.status)

	m.press("2")
	assert.Equal(t, "d", m.view.Beat.ID)

	m.press("s", "2")
	assert.Equal(t, "Saved to slot 2", m.status)
	require.Len(t, m.slots, save.DefaultSlotCount)
	assert.False(t, m.slots[1].IsEmpty)

	m.press("n")
	assert.Equal(t, "a", m.view.Beat.ID)

	m.press("l", "2")
	assert.Equal(t, "Loaded slot 2", m.status)
	assert.Equal(t, "d", m.view.Beat.ID)

	m.press("l", "x")
	assert.Equal(t, "Cancelled", m.status)

	m.press("enter")
	assert.Equal(t, "The End", m.status)
}

func TestHandleKeyEmptySlot(t *testing.T) {
	m := newTestUI(t)

	m.press("l", "3")
	assert.Equal(t, "That slot is empty", m.status)
	assert.Equal(t, "a", m.view.Beat.ID)
}

func TestWriteMetadata(t *testing.T) {
	m := newTestUI(t)
	out := writeMetadata(m.view, m.slots)
	assert.Contains(t, out, "GAME STATE")
	assert.Contains(t, out, "1: empty")
	assert.Contains(t, out, "0m")
}
