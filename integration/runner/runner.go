package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/pkg/battle"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running novel-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
	ScriptOverride    string // If set, overrides the script for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite against a fresh session
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	// A fresh profile keeps each run's save slots apart.
	opts := session.CreateOptions{Script: suite.Script, Character: suite.Character, Profile: uuid.NewString()}
	if r.ScriptOverride != "" {
		opts.Script = r.ScriptOverride
	}
	view, err := CreateSession(ctx, r.Client, r.BaseURL, opts)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	id, err := uuid.Parse(view.SessionID)
	if err != nil {
		result.Error = fmt.Errorf("server returned invalid session id %q: %w", view.SessionID, err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = id

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, id, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep performs the step's action and checks its expectations.
func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	repeat := max(step.Repeat, 1)
	var (
		reply Reply
		err   error
	)
	for range repeat {
		reply, err = r.perform(ctx, id, step)
		if err != nil || reply.Status != http.StatusOK {
			break
		}
	}
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if err := checkExpectations(step.Expectations, reply); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) perform(ctx context.Context, id uuid.UUID, step TestStep) (Reply, error) {
	slot := strconv.Itoa(step.Slot)

	switch step.Action {
	case ActionAdvance:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "advance", nil)
	case ActionChoice:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "choice", handlers.ChoiceRequest{Target: step.Target})
	case ActionSkill:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "skill", handlers.SkillRequest{SkillID: step.SkillID})
	case ActionFight:
		return r.fight(ctx, id, step.SkillID)
	case ActionLeaveBattle:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "leave-battle", nil)
	case ActionNewGame:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "new-game", nil)
	case ActionAuto:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "auto", nil)
	case ActionSave:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPut, "saves/"+slot, nil)
	case ActionLoad:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "saves/"+slot, nil)
	case ActionDeleteSave:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodDelete, "saves/"+slot, nil)
	case ActionAutoSave:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPut, "saves/auto", nil)
	case ActionLoadAuto:
		return Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "saves/auto", nil)
	case ActionView:
		view, err := GetView(ctx, r.Client, r.BaseURL, id)
		return Reply{Status: http.StatusOK, OK: true, View: view}, err
	default:
		return Reply{}, fmt.Errorf("unknown action %q", step.Action)
	}
}

// fight uses skillID, or the first usable skill, on every player turn until
// the battle ends. The final reply carries the finished battle.
func (r *Runner) fight(ctx context.Context, id uuid.UUID, skillID string) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, BattleTimeout)
	defer cancel()

	for {
		view, err := PollForPlayerTurn(ctx, r.Client, r.BaseURL, id)
		if err != nil {
			return Reply{}, err
		}
		if view.Battle == nil {
			return Reply{}, fmt.Errorf("no battle in progress (screen %s)", view.Screen)
		}
		if view.Battle.Phase.Terminal() {
			return Reply{Status: http.StatusOK, OK: true, View: view}, nil
		}

		pick := skillID
		if pick == "" {
			pick = firstUsable(view.Battle.Skills)
		}
		reply, err := Do(ctx, r.Client, r.BaseURL, id, http.MethodPost, "skill", handlers.SkillRequest{SkillID: pick})
		if err != nil {
			return reply, err
		}
		if reply.Status != http.StatusOK {
			return reply, nil
		}
	}
}

func firstUsable(skills []session.SkillView) string {
	for _, sk := range skills {
		if sk.Usable {
			return sk.ID
		}
	}
	return battle.DefaultSkillID
}

// checkExpectations validates the step's expectations against the last reply
func checkExpectations(exp Expectations, reply Reply) error {
	wantStatus := http.StatusOK
	if exp.Status != nil {
		wantStatus = *exp.Status
	}
	if reply.Status != wantStatus {
		return fmt.Errorf("expected status %d, got %d (%s)", wantStatus, reply.Status, reply.Error)
	}
	if exp.ErrorText != "" && !strings.Contains(strings.ToLower(reply.Error), strings.ToLower(exp.ErrorText)) {
		return fmt.Errorf("expected error to contain '%s', got '%s'", exp.ErrorText, reply.Error)
	}
	if reply.Status != http.StatusOK {
		return nil
	}

	v := reply.View

	if exp.OK != nil && reply.OK != *exp.OK {
		return fmt.Errorf("expected ok to be %t, got %t", *exp.OK, reply.OK)
	}

	if exp.Screen != nil && string(v.Screen) != *exp.Screen {
		return fmt.Errorf("expected screen %s, got %s", *exp.Screen, v.Screen)
	}

	if exp.Beat != nil {
		got := ""
		if v.Beat != nil {
			got = v.Beat.ID
		}
		if got != *exp.Beat {
			return fmt.Errorf("expected beat %s, got %s", *exp.Beat, got)
		}
	}

	for key, want := range exp.Flags {
		got, ok := v.Flags[key]
		if !ok {
			return fmt.Errorf("expected flag %s to be set, but it doesn't exist", key)
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return fmt.Errorf("expected flag %s to be %v, got %v", key, want, got)
		}
	}

	if len(exp.Inventory) > 0 {
		counts := make(map[string]int, len(v.Inventory))
		for _, item := range v.Inventory {
			counts[item.ItemID] = item.Count
		}
		for itemID, want := range exp.Inventory {
			if counts[itemID] != want {
				return fmt.Errorf("expected %d x %s in inventory, got %d. Actual inventory: %v", want, itemID, counts[itemID], v.Inventory)
			}
		}
	}

	if exp.BattlePhase != nil {
		if v.Battle == nil {
			return fmt.Errorf("expected battle phase %s, but no battle is active", *exp.BattlePhase)
		}
		if string(v.Battle.Phase) != *exp.BattlePhase {
			return fmt.Errorf("expected battle phase %s, got %s", *exp.BattlePhase, v.Battle.Phase)
		}
	}

	if exp.Auto != nil && v.Auto != *exp.Auto {
		return fmt.Errorf("expected auto to be %t, got %t", *exp.Auto, v.Auto)
	}

	if exp.Choices != nil {
		var got []string
		for _, c := range v.Choices {
			if c.Available {
				got = append(got, c.Label)
			}
		}
		if strings.Join(got, "|") != strings.Join(exp.Choices, "|") {
			return fmt.Errorf("expected choices %v, got %v", exp.Choices, got)
		}
	}

	return nil
}
