package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Problem is the path to a problem file, relative to the scenario file.
	Problem string `yaml:"problem"`

	// Runs are executed in order, each with a fresh rootfinder.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the runs as a whole.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RunStep is one solve of the scenario's problem.
type RunStep struct {
	// Name identifies the run in assertions and traces.
	Name string `yaml:"name"`

	// Solver overrides the problem's rootfinder plugin.
	Solver string `yaml:"solver,omitempty"`

	// Options are merged over the problem's options.
	Options map[string]any `yaml:"options,omitempty"`

	// Inputs replace input values by name.
	Inputs map[string][]float64 `yaml:"inputs,omitempty"`

	// Expect specifies the expected outcome. If nil, nothing is checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a run.
type ExpectClause struct {
	// Outcome is "converged" or a NumericError code such as "SINGULAR".
	Outcome string `yaml:"outcome"`

	// Root is compared entrywise within Tol (default 1e-8).
	Root []float64 `yaml:"root,omitempty"`
	Tol  float64   `yaml:"tol,omitempty"`

	// MaxIterations bounds the iteration count when positive.
	MaxIterations int `yaml:"max_iterations,omitempty"`
}

// Assertion type constants.
const (
	AssertRootsAgree        = "roots_agree"
	AssertNormDecreasing    = "norm_decreasing"
	AssertIterationsAtMost  = "iterations_at_most"
	AssertSensitivities     = "sensitivities"
	AssertStoredRuns        = "stored_runs"
	defaultTolerance        = 1e-8
)

// Assertion validates the runs of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Run names the run (norm_decreasing, iterations_at_most, sensitivities).
	Run string `yaml:"run,omitempty"`

	// Runs lists the runs to compare (roots_agree).
	Runs []string `yaml:"runs,omitempty"`

	// Tol is the comparison tolerance (roots_agree, sensitivities).
	Tol float64 `yaml:"tol,omitempty"`

	// Count is the expected bound or total (iterations_at_most, stored_runs).
	Count int `yaml:"count,omitempty"`

	// Status filters stored runs (stored_runs).
	Status string `yaml:"status,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The problem path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Problem != "" && !filepath.IsAbs(scenario.Problem) {
		scenario.Problem = filepath.Join(filepath.Dir(path), scenario.Problem)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Problem == "" {
		return fmt.Errorf("problem is required")
	}
	if _, err := os.Stat(s.Problem); os.IsNotExist(err) {
		return fmt.Errorf("problem file not found: %s", s.Problem)
	}

	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Runs))
	for i, step := range s.Runs {
		if step.Name == "" {
			return fmt.Errorf("runs[%d]: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("runs[%d]: duplicate name %q", i, step.Name)
		}
		names[step.Name] = true
		if step.Expect != nil && step.Expect.Outcome == "" {
			return fmt.Errorf("runs[%d].expect: outcome is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, runs map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needRun := func() error {
		if a.Run == "" {
			return fmt.Errorf("assertions[%d]: run is required for %s", index, a.Type)
		}
		if !runs[a.Run] {
			return fmt.Errorf("assertions[%d]: unknown run %q", index, a.Run)
		}
		return nil
	}

	switch a.Type {
	case AssertRootsAgree:
		if len(a.Runs) < 2 {
			return fmt.Errorf("assertions[%d]: at least two runs are required for roots_agree", index)
		}
		for _, name := range a.Runs {
			if !runs[name] {
				return fmt.Errorf("assertions[%d]: unknown run %q", index, name)
			}
		}
	case AssertNormDecreasing, AssertSensitivities:
		return needRun()
	case AssertIterationsAtMost:
		if err := needRun(); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for iterations_at_most", index)
		}
	case AssertStoredRuns:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stored_runs", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
