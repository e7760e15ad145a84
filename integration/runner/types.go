package runner

import (
	"encoding/json"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

// Step actions, one per NPC endpoint.
const (
	ActionList           = "list"
	ActionListByLocation = "list_by_location"
	ActionGet            = "get"
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionDelete         = "delete"
	ActionMove           = "move"
	ActionDamage         = "damage"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string            `json:"name"`
	Seed  []actor.NPCCreate `json:"seed,omitempty"`  // Created before the first step, addressed by name
	Steps []TestStep        `json:"steps,omitempty"` // Used for regular tests
	Cases []string          `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single API call and its expected outcome.
// The target NPC is either a seeded NPC by name or a literal id.
type TestStep struct {
	Name     string          `json:"name,omitempty"`
	Action   string          `json:"action"`
	NPC      string          `json:"npc,omitempty"`
	ID       *int64          `json:"id,omitempty"`
	Location string          `json:"location,omitempty"`
	Damage   string          `json:"damage,omitempty"` // sent verbatim so malformed values can be tested
	Body     json.RawMessage `json:"body,omitempty"`
	Expect   Expectations    `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Status        *int   `json:"status,omitempty"`
	ErrorContains string `json:"error_contains,omitempty"`
	Message       string `json:"message,omitempty"`

	// Single-record checks
	Name       *string  `json:"name,omitempty"`
	Health     *int     `json:"health,omitempty"`
	Location   *string  `json:"location,omitempty"`
	NoLocation bool     `json:"no_location,omitempty"`
	IsHostile  *bool    `json:"is_hostile,omitempty"`
	Dialogue   []string `json:"dialogue,omitempty"`

	// List checks
	Count *int     `json:"count,omitempty"`
	Names []string `json:"names,omitempty"` // order independent
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	Status   int
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
	Seeded   map[string]int64 // seeded NPC name to assigned id
}
