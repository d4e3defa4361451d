package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/script"
)

func main() {
	dataDir := flag.String("data", "data", "data directory holding the enemy, skill and character catalogs")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-data dir] <script.yaml|script.json>...\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalogs, err := storage.NewLibrary(*dataDir, quiet).Catalogs(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalogs: %v\n", err)
		os.Exit(1)
	}

	validator := &ScriptValidator{catalogs: catalogs}

	failed := false
	if errs := validator.validateCatalogs(); len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "Catalog errors in %s:\n%s\n", *dataDir, strings.Join(errs, "\n"))
		failed = true
	}

	for _, filename := range flag.Args() {
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}

	if failed {
		os.Exit(1)
	}
}

type ScriptValidator struct {
	catalogs *storage.Catalogs
	errors   []string
}

func (v *ScriptValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if _, err := script.FormatFromPath(baseName); err != nil {
		return fmt.Errorf("script file must have a .json, .yaml or .yml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidScriptFilename(nameWithoutExt) {
		return fmt.Errorf("script filename '%s' must be lowercase snake_case (e.g., my_story.yaml, not my-story.yaml or MyStory.yaml)", baseName)
	}

	s, err := script.Load(filename)
	if err != nil {
		return fmt.Errorf("file %s failed to load: %w", filename, err)
	}

	v.errors = nil
	v.validateScript(s)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *ScriptValidator) validateScript(s *script.Store) {
	for _, err := range script.Validate(s) {
		v.addError(err.Error())
	}

	for _, b := range s.Beats() {
		v.validateIDFormat("beat ID", b.ID)
		if strings.TrimSpace(b.Text) == "" {
			v.addError(fmt.Sprintf("beat '%s' has no text", b.ID))
		}
		for _, f := range b.Flags {
			v.validateFlagName(b.ID, f.Key)
		}

		switch ev := b.Event.(type) {
		case script.FlagEvent:
			v.validateFlagName(b.ID, ev.Key)
		case script.ItemEvent:
			v.validateIDFormat("item ID", ev.ItemID)
		case script.ChoiceEvent:
			for _, c := range ev.Choices {
				if c.Condition != nil {
					v.validateFlagName(b.ID, c.Condition.Flag)
				}
			}
		case script.BattleEvent:
			v.validateBattle(b.ID, ev)
		}
	}
}

func (v *ScriptValidator) validateBattle(beatID string, ev script.BattleEvent) {
	if v.catalogs == nil || v.catalogs.Enemies.Len() == 0 {
		v.addError(fmt.Sprintf("beat '%s' starts a battle but the enemy catalog is empty", beatID))
		return
	}
	for _, id := range ev.EnemyIDs {
		if _, ok := v.catalogs.Enemies.Get(id); !ok {
			v.addError(fmt.Sprintf("beat '%s' references unknown enemy '%s'", beatID, id))
		}
	}
}

// validateCatalogs checks that every skill named by an enemy or character exists.
func (v *ScriptValidator) validateCatalogs() []string {
	var errs []string
	check := func(owner string, skills []string) {
		for _, id := range skills {
			if _, ok := v.catalogs.Skills.Skill(id); !ok {
				errs = append(errs, fmt.Sprintf("  - %s references unknown skill '%s'", owner, id))
			}
		}
	}
	for _, id := range v.catalogs.Enemies.IDs() {
		e, _ := v.catalogs.Enemies.Get(id)
		check("enemy '"+id+"'", e.Skills)
		if e.Status.HP <= 0 {
			errs = append(errs, fmt.Sprintf("  - enemy '%s' has no hp", id))
		}
	}
	for id, c := range v.catalogs.Characters {
		check("character '"+id+"'", c.Skills)
		if c.Status.HP <= 0 {
			errs = append(errs, fmt.Sprintf("  - character '%s' has no hp", id))
		}
	}
	return errs
}

func (v *ScriptValidator) validateFlagName(beatID, name string) {
	if !isValidVariableName(name) {
		v.addError(fmt.Sprintf("beat '%s' has invalid flag name '%s' - should be lowercase snake_case", beatID, name))
	}
}

func (v *ScriptValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *ScriptValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validVarRegex      = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidVariableName(name string) bool {
	return validVarRegex.MatchString(name)
}

func isValidScriptFilename(name string) bool {
	// Allow 'x.' prefix for experimental scripts
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
