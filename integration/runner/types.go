package runner

import (
	"time"

	"github.com/google/uuid"
)

// Step actions map one-to-one onto session endpoints, except Fight, which
// plays a whole battle by repeating a skill until the battle ends.
const (
	ActionAdvance     = "advance"
	ActionChoice      = "choice"
	ActionSkill       = "skill"
	ActionFight       = "fight"
	ActionLeaveBattle = "leave_battle"
	ActionNewGame     = "new_game"
	ActionAuto        = "auto"
	ActionSave        = "save"
	ActionLoad        = "load"
	ActionAutoSave    = "auto_save"
	ActionLoadAuto    = "load_auto"
	ActionDeleteSave  = "delete_save"
	ActionView        = "view"
)

// TestSuite defines a complete integration test play-through.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name      string     `json:"name"`
	Script    string     `json:"script,omitempty"`    // Used for regular tests
	Character string     `json:"character,omitempty"` // Used for regular tests
	Steps     []TestStep `json:"steps,omitempty"`     // Used for regular tests
	Cases     []string   `json:"cases,omitempty"`     // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one action against the session and its expected outcome.
// Repeat runs the action that many times before checking expectations.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action"`
	Target       string       `json:"target,omitempty"`   // choice target
	SkillID      string       `json:"skill_id,omitempty"` // skill and fight
	Slot         int          `json:"slot,omitempty"`     // save, load, delete_save
	Repeat       int          `json:"repeat,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Status      *int           `json:"status,omitempty"`         // HTTP status of the last request, 200 by default
	OK          *bool          `json:"ok,omitempty"`
	Screen      *string        `json:"screen,omitempty"`
	Beat        *string        `json:"beat,omitempty"`
	Flags       map[string]any `json:"flags,omitempty"`
	Inventory   map[string]int `json:"inventory,omitempty"`      // item id to count
	BattlePhase *string        `json:"battle_phase,omitempty"`
	Auto        *bool          `json:"auto,omitempty"`
	Choices     []string       `json:"choices,omitempty"`        // labels of available choices, in order
	ErrorText   string         `json:"error_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID // ID of the session used for this test
}
