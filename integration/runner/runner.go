package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running npc-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           10 * time.Second,
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

// RunSuite seeds the suite's NPCs, runs every step, then deletes whatever
// seeded NPCs are left.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
		Seeded:  make(map[string]int64, len(suite.Seed)),
	}
	defer r.cleanup(result.Seeded)

	for _, seed := range suite.Seed {
		npc, err := r.seedNPC(ctx, seed)
		if err != nil {
			result.Error = fmt.Errorf("failed to seed NPC %s: %w", seed.Name, err)
			result.Duration = time.Since(start)
			return result, result.Error
		}
		result.Seeded[seed.Name] = npc.ID
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.executeStep(ctx, step, result.Seeded)
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

func (r *Runner) seedNPC(ctx context.Context, seed actor.NPCCreate) (*actor.NPC, error) {
	// the API refuses a null dialogue
	if seed.Dialogue == nil {
		seed.Dialogue = []string{}
	}
	body, err := json.Marshal(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seed: %w", err)
	}

	status, respBody, err := r.do(ctx, http.MethodPost, "/v1/npcs", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("create NPC returned %d: %s", status, string(respBody))
	}

	var npc actor.NPC
	if err := json.Unmarshal(respBody, &npc); err != nil {
		return nil, fmt.Errorf("failed to decode created NPC: %w", err)
	}
	return &npc, nil
}

// cleanup removes seeded NPCs so suites can run against a shared server.
// Already-deleted ids answer 404, which is fine.
func (r *Runner) cleanup(seeded map[string]int64) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	for name, id := range seeded {
		if _, _, err := r.do(ctx, http.MethodDelete, npcPath(id), nil); err != nil {
			r.Logger("    cleanup of %s (%d) failed: %v", name, id, err)
		}
	}
}

// executeStep performs one API call and checks its expectations
func (r *Runner) executeStep(ctx context.Context, step TestStep, seeded map[string]int64) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	method, path, body, err := buildRequest(step, seeded)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	status, respBody, err := r.do(ctx, method, path, body)
	result.Status = status
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if err := checkExpectations(step, status, respBody); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// buildRequest maps a step to its HTTP method, path and body.
func buildRequest(step TestStep, seeded map[string]int64) (string, string, []byte, error) {
	needsID := step.Action != ActionList && step.Action != ActionListByLocation && step.Action != ActionCreate
	var id int64
	if needsID {
		switch {
		case step.ID != nil:
			id = *step.ID
		case step.NPC != "":
			seededID, ok := seeded[step.NPC]
			if !ok {
				return "", "", nil, fmt.Errorf("step references unknown seeded NPC %q", step.NPC)
			}
			id = seededID
		default:
			return "", "", nil, fmt.Errorf("action %s needs npc or id", step.Action)
		}
	}

	switch step.Action {
	case ActionList:
		return http.MethodGet, "/v1/npcs", nil, nil
	case ActionListByLocation:
		return http.MethodGet, "/v1/npcs/location/" + url.PathEscape(step.Location), nil, nil
	case ActionGet:
		return http.MethodGet, npcPath(id), nil, nil
	case ActionCreate:
		return http.MethodPost, "/v1/npcs", step.Body, nil
	case ActionUpdate:
		body, err := withID(step.Body, id)
		if err != nil {
			return "", "", nil, err
		}
		return http.MethodPut, "/v1/npcs", body, nil
	case ActionDelete:
		return http.MethodDelete, npcPath(id), nil, nil
	case ActionMove:
		return http.MethodPatch, npcPath(id) + "/move?new_location=" + url.QueryEscape(step.Location), nil, nil
	case ActionDamage:
		return http.MethodPatch, npcPath(id) + "/damage?damage=" + url.QueryEscape(step.Damage), nil, nil
	default:
		return "", "", nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

// withID sets "id" in an update body so cases can address seeded NPCs by name.
func withID(body json.RawMessage, id int64) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("update body must be a JSON object: %w", err)
		}
	}
	fields["id"] = json.RawMessage(strconv.FormatInt(id, 10))
	return json.Marshal(fields)
}

func npcPath(id int64) string {
	return "/v1/npcs/" + strconv.FormatInt(id, 10)
}

func (r *Runner) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// checkExpectations validates a step's response
func checkExpectations(step TestStep, status int, body []byte) error {
	exp := step.Expect

	if exp.Status != nil && status != *exp.Status {
		return fmt.Errorf("expected status %d, got %d: %s", *exp.Status, status, string(body))
	}

	if exp.ErrorContains != "" {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil {
			return fmt.Errorf("expected error body, got %s", string(body))
		}
		if !strings.Contains(strings.ToLower(errResp.Error), strings.ToLower(exp.ErrorContains)) {
			return fmt.Errorf("expected error to contain '%s', got '%s'", exp.ErrorContains, errResp.Error)
		}
	}

	if exp.Message != "" {
		var msgResp struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &msgResp); err != nil || msgResp.Message != exp.Message {
			return fmt.Errorf("expected message '%s', got %s", exp.Message, string(body))
		}
	}

	if exp.Count != nil || len(exp.Names) > 0 {
		var npcs []actor.NPC
		if err := json.Unmarshal(body, &npcs); err != nil {
			return fmt.Errorf("expected NPC list, got %s", string(body))
		}
		return checkList(exp, npcs)
	}

	if exp.Name != nil || exp.Health != nil || exp.Location != nil || exp.NoLocation ||
		exp.IsHostile != nil || exp.Dialogue != nil {
		var npc actor.NPC
		if err := json.Unmarshal(body, &npc); err != nil {
			return fmt.Errorf("expected NPC record, got %s", string(body))
		}
		return checkRecord(exp, &npc)
	}

	return nil
}

func checkRecord(exp Expectations, npc *actor.NPC) error {
	if exp.Name != nil && npc.Name != *exp.Name {
		return fmt.Errorf("expected name %s, got %s", *exp.Name, npc.Name)
	}
	if exp.Health != nil && npc.Health != *exp.Health {
		return fmt.Errorf("expected health %d, got %d", *exp.Health, npc.Health)
	}
	if exp.Location != nil && npc.LocationName() != *exp.Location {
		return fmt.Errorf("expected location %s, got %s", *exp.Location, npc.LocationName())
	}
	if exp.NoLocation && npc.Location != nil {
		return fmt.Errorf("expected no location, got %s", *npc.Location)
	}
	if exp.IsHostile != nil && npc.IsHostile != *exp.IsHostile {
		return fmt.Errorf("expected is_hostile %t, got %t", *exp.IsHostile, npc.IsHostile)
	}
	if exp.Dialogue != nil && !slices.Equal(npc.Dialogue, exp.Dialogue) {
		return fmt.Errorf("expected dialogue %v, got %v", exp.Dialogue, npc.Dialogue)
	}
	return nil
}

func checkList(exp Expectations, npcs []actor.NPC) error {
	if exp.Count != nil && len(npcs) != *exp.Count {
		return fmt.Errorf("expected %d NPCs, got %d", *exp.Count, len(npcs))
	}

	if len(exp.Names) > 0 {
		actual := make(map[string]bool, len(npcs))
		for _, npc := range npcs {
			actual[npc.Name] = true
		}
		for _, name := range exp.Names {
			if !actual[name] {
				return fmt.Errorf("expected list to contain '%s', but it's missing", name)
			}
		}
	}
	return nil
}
