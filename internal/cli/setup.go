package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rootsolve/internal/problem"
	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/variant"
)

// ProblemFlags are the flags shared by commands that solve a problem file.
type ProblemFlags struct {
	Solver string   // overrides the problem's solver
	Set    []string // key=value option overrides, values in YAML syntax
	Inputs []string // name=v1,v2,... input overrides
}

// solveSetup is a loaded problem with its overrides applied.
type solveSetup struct {
	problem *problem.Problem
	solver  string
	opts    variant.Dict
	args    [][]float64
	names   []string
}

// loadProblem reads path and applies the flag overrides.
func loadProblem(path string, flags ProblemFlags) (*solveSetup, error) {
	p, err := problem.Load(path)
	if err != nil {
		return nil, err
	}

	opts, err := p.OptionDict()
	if err != nil {
		return nil, &problem.LoadError{Code: problem.ErrCodeInvalid, Path: path, Message: "invalid options", Err: err}
	}
	for _, kv := range flags.Set {
		key, v, err := parseSet(kv)
		if err != nil {
			return nil, err
		}
		opts[key] = v
	}

	s := &solveSetup{problem: p, solver: p.Solver, opts: opts, args: p.Args()}
	if flags.Solver != "" {
		s.solver = flags.Solver
	}
	for _, in := range p.Inputs {
		s.names = append(s.names, in.Name)
	}
	for _, kv := range flags.Inputs {
		if err := s.overrideInput(kv); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// parseSet parses key=value, reading value as YAML so that 1e-8 is a
// double, 50 an int and [0, 1] a list.
func parseSet(kv string) (string, variant.Value, error) {
	key, raw, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return "", variant.Value{}, fmt.Errorf("--set %q: expected key=value", kv)
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", variant.Value{}, fmt.Errorf("--set %s: %w", key, err)
	}
	v, err := variant.Of(decoded)
	if err != nil {
		return "", variant.Value{}, fmt.Errorf("--set %s: %w", key, err)
	}
	return key, v, nil
}

// overrideInput parses name=v1,v2,... and replaces that input's value.
func (s *solveSetup) overrideInput(kv string) error {
	name, raw, ok := strings.Cut(kv, "=")
	if !ok {
		return fmt.Errorf("--input %q: expected name=v1,v2,...", kv)
	}
	i := -1
	for j, n := range s.names {
		if n == name {
			i = j
		}
	}
	if i < 0 {
		return fmt.Errorf("--input %s: unknown input (have %s)", name, strings.Join(s.names, ", "))
	}
	fields := strings.Split(raw, ",")
	if len(fields) != len(s.args[i]) {
		return fmt.Errorf("--input %s: expected %d values, got %d", name, len(s.args[i]), len(fields))
	}
	value := make([]float64, len(fields))
	for k, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return fmt.Errorf("--input %s: %w", name, err)
		}
		value[k] = x
	}
	s.args[i] = value
	return nil
}

// rootfinder builds and initializes the rootfinder of the setup.
func (s *solveSetup) rootfinder(options ...rootfinder.Option) (*rootfinder.Rootfinder, error) {
	f, err := s.problem.Function()
	if err != nil {
		return nil, err
	}
	options = append([]rootfinder.Option{rootfinder.WithLogger(slog.Default())}, options...)
	rf, err := rootfinder.New(s.problem.Name, s.solver, f, s.opts, options...)
	if err != nil {
		return nil, err
	}
	if err := rf.Init(); err != nil {
		_ = rf.Close()
		return nil, err
	}
	return rf, nil
}

// solve evaluates rf at the setup's inputs.
func (s *solveSetup) solve(ctx context.Context, rf *rootfinder.Rootfinder) ([]float64, error) {
	out, err := rf.Eval(ctx, s.args)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
