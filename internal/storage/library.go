package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jwebster45206/novel-engine/pkg/actor"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/script"
)

// ErrInvalidScriptName is returned for names that are not plain file names.
var ErrInvalidScriptName = errors.New("invalid script name")

// Library loads static game data from a data directory:
//
//	<dataDir>/scenarios/*.{json,yaml,yml}
//	<dataDir>/enemies.{json,yaml}
//	<dataDir>/skills.{json,yaml}
//	<dataDir>/characters.{json,yaml}
//
// Loaded scripts are cached; the data is read-only once loaded.
type Library struct {
	dataDir string
	logger  *slog.Logger

	mu      sync.Mutex
	scripts map[string]*script.Store
}

// Catalogs holds the static definition tables used by battles.
type Catalogs struct {
	Enemies    *actor.EnemyCatalog
	Skills     *battle.Catalog
	Characters map[string]actor.Character
}

func NewLibrary(dataDir string, logger *slog.Logger) *Library {
	if dataDir == "" {
		dataDir = "./data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		dataDir: dataDir,
		logger:  logger,
		scripts: make(map[string]*script.Store),
	}
}

// Scenario operations (filesystem-backed)

// ListScripts returns the script file names in the scenarios directory.
func (l *Library) ListScripts(ctx context.Context) ([]string, error) {
	scenariosDir := filepath.Join(l.dataDir, "scenarios")
	var names []string

	err := filepath.WalkDir(scenariosDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := script.FormatFromPath(path); ferr != nil {
			return nil
		}
		names = append(names, filepath.Base(path))
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to walk scenarios directory", "error", err)
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Script loads a script by file name from the scenarios directory.
func (l *Library) Script(ctx context.Context, filename string) (*script.Store, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScriptName, filename)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.scripts[filename]; ok {
		return s, nil
	}

	path := filepath.Join(l.dataDir, "scenarios", filename)
	l.logger.Debug("Loading script", "filename", filename, "full_path", path)
	s, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	for _, verr := range script.Validate(s) {
		l.logger.Warn("Script validation", "filename", filename, "error", verr)
	}
	l.scripts[filename] = s
	return s, nil
}

// Catalogs loads the enemy, skill and character tables. Missing files yield
// empty tables; characters fall back to the default hero.
func (l *Library) Catalogs(ctx context.Context) (*Catalogs, error) {
	out := &Catalogs{}

	if path, ok := l.find("enemies"); ok {
		enemies, err := actor.LoadEnemies(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load enemies: %w", err)
		}
		out.Enemies = enemies
	} else {
		out.Enemies, _ = actor.NewEnemyCatalog(nil)
	}

	if path, ok := l.find("skills"); ok {
		skills, err := battle.LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load skills: %w", err)
		}
		out.Skills = skills
	} else {
		out.Skills, _ = battle.NewCatalog(nil)
	}

	if path, ok := l.find("characters"); ok {
		chars, err := actor.LoadCharacters(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load characters: %w", err)
		}
		out.Characters = chars
	}
	if len(out.Characters) == 0 {
		hero := actor.DefaultHero()
		out.Characters = map[string]actor.Character{hero.ID: hero}
	}

	l.logger.Info("Catalogs loaded",
		"enemies", out.Enemies.Len(),
		"skills", len(out.Skills.IDs()),
		"characters", len(out.Characters))
	return out, nil
}

// find returns the first existing <name>.json, .yaml or .yml in the data directory.
func (l *Library) find(name string) (string, bool) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.dataDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
