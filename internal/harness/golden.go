package harness

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// goldenZero is the magnitude below which golden numbers print as 0.
const goldenZero = 1e-9

// RenderTrace renders the runs of a result as plain text for golden file
// comparison. Numbers are rounded by approx.
func RenderTrace(scenarioName string, result *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	for _, run := range result.Runs {
		fmt.Fprintf(&b, "\nrun %s\n", run.Name)
		fmt.Fprintf(&b, "  id: %s\n", run.ID)
		fmt.Fprintf(&b, "  solver: %s\n", run.Solver)
		fmt.Fprintf(&b, "  outcome: %s\n", run.Outcome)
		if run.Root != nil {
			fmt.Fprintf(&b, "  root: %s\n", approxVector(run.Root))
		}
		fmt.Fprintf(&b, "  iterations: %d\n", run.Iterations)
		fmt.Fprintf(&b, "  factorizations: %d\n", run.Factorizations)
		fmt.Fprintf(&b, "  %4s  %-12s %-12s %-12s %-6s %s\n", "iter", "z", "norm", "step", "alpha", "fact")
		for _, it := range run.Trace {
			fmt.Fprintf(&b, "  %4d  %-12s %-12s %-12s %-6s %d\n",
				it.Iter, approxVector(it.Z), approx(it.Norm), approx(it.StepNorm), approx(it.Alpha), it.Factorizations)
		}
	}
	return b.String()
}

// approx formats x to four significant digits, printing magnitudes below
// goldenZero as 0.
func approx(x float64) string {
	if math.Abs(x) < goldenZero {
		return "0"
	}
	return strconv.FormatFloat(x, 'g', 4, 64)
}

func approxVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = approx(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RunWithGolden executes a scenario and compares the rendered trace against
// a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, []byte(RenderTrace(scenarioName, result)))
}
