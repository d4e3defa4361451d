package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/battle"
)

func testCatalogs(t *testing.T) *storage.Catalogs {
	t.Helper()
	enemies, err := actor.NewEnemyCatalog([]actor.Enemy{
		{ID: "slime", Name: "Slime", Status: actor.Status{HP: 10}, Skills: []string{"tackle"}},
	})
	require.NoError(t, err)
	skills, err := battle.NewCatalog([]battle.Skill{{ID: "tackle", Name: "Tackle"}})
	require.NoError(t, err)
	return &storage.Catalogs{
		Enemies:    enemies,
		Skills:     skills,
		Characters: map[string]actor.Character{"hero": {ID: "hero", Status: actor.Status{HP: 20}, Skills: []string{"slash"}}},
	}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateFile(t *testing.T) {
	v := &ScriptValidator{catalogs: testCatalogs(t)}

	valid := writeScript(t, "forest_path.yaml", `
- storyID: start
  speaker: guide
  text: The forest is quiet.
  flags:
    entered_forest: true
- storyID: ambush
  text: Something leaps out!
  event:
    type: BATTLE
    payload:
      enemyIDs: [slime]
- storyID: done
  text: The path is clear.
`)
	assert.NoError(t, v.validateFile(valid))

	tests := []struct {
		name     string
		filename string
		body     string
		contains string
	}{
		{"bad extension", "story.txt", "[]", "extension"},
		{"bad filename", "ForestPath.yaml", "[]", "snake_case"},
		{"unknown enemy", "story.yaml", `
- storyID: start
  text: Fight!
  event:
    type: BATTLE
    payload:
      enemyIDs: [dragon]
`, "unknown enemy 'dragon'"},
		{"bad beat id", "story.yaml", `
- storyID: Start
  text: Hello.
`, "beat ID 'Start'"},
		{"bad flag name", "story.yaml", `
- storyID: start
  text: Hello.
  event:
    type: FLAG
    payload:
      key: Met-Guide
      value: true
- storyID: next
  text: Bye.
`, "invalid flag name 'Met-Guide'"},
		{"empty text", "story.yaml", `
- storyID: start
  text: "  "
`, "has no text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.validateFile(writeScript(t, tt.filename, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateCatalogs(t *testing.T) {
	v := &ScriptValidator{catalogs: testCatalogs(t)}
	errs := v.validateCatalogs()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown skill 'slash'")
}

func TestIsValidScriptFilename(t *testing.T) {
	assert.True(t, isValidScriptFilename("intro"))
	assert.True(t, isValidScriptFilename("x.draft_story"))
	assert.False(t, isValidScriptFilename("Intro"))
	assert.False(t, isValidScriptFilename("my-story"))
	assert.False(t, isValidScriptFilename("story_"))
}
