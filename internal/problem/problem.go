package problem

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/variant"
)

// Problem is a root-finding problem as read from a YAML file.
type Problem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Solver is the rootfinder plugin name. Empty selects the default.
	Solver string `yaml:"solver,omitempty"`

	// Options are passed to the rootfinder after conversion to a
	// variant.Dict.
	Options map[string]any `yaml:"options,omitempty"`

	// Inputs are the residual inputs in order, each with its value.
	Inputs []Input `yaml:"inputs"`

	// Residual is inline CUE source; ResidualFile names a .cue file
	// relative to the problem file. Exactly one must be set.
	Residual     string `yaml:"residual,omitempty"`
	ResidualFile string `yaml:"residual_file,omitempty"`

	// Expect is used by the conformance harness and ignored elsewhere.
	Expect *Expect `yaml:"expect,omitempty"`

	dir string
}

// Input is one residual input.
type Input struct {
	Name  string    `yaml:"name"`
	Value []float64 `yaml:"value"`
}

// Expect is the outcome a problem is known to have.
type Expect struct {
	Root []float64 `yaml:"root,omitempty"`
	Tol  float64   `yaml:"tol,omitempty"`
	// Error is the NumericError code the solve must fail with.
	Error string `yaml:"error,omitempty"`
}

// Load reads and validates a problem file.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "problem file not found"}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "failed to read problem file", Err: err}
	}
	p, err := Parse(data, filepath.Dir(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Path == "" {
			le.Path = path
		}
		return nil, err
	}
	return p, nil
}

// Parse decodes a problem. dir resolves residual_file.
func Parse(data []byte, dir string) (*Problem, error) {
	var p Problem
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "failed to parse YAML", Err: err}
	}
	p.dir = dir
	if err := p.validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: "invalid problem", Err: err}
	}
	return &p, nil
}

func (p *Problem) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Inputs) == 0 {
		return fmt.Errorf("inputs list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(p.Inputs))
	for i, in := range p.Inputs {
		if err := checkName(in.Name); err != nil {
			return fmt.Errorf("inputs[%d]: %w", i, err)
		}
		if seen[in.Name] {
			return fmt.Errorf("inputs[%d]: duplicate name %q", i, in.Name)
		}
		seen[in.Name] = true
		if len(in.Value) == 0 {
			return fmt.Errorf("inputs[%d] (%s): value must be non-empty", i, in.Name)
		}
	}
	if (p.Residual == "") == (p.ResidualFile == "") {
		return fmt.Errorf("exactly one of residual and residual_file is required")
	}
	if _, err := p.OptionDict(); err != nil {
		return err
	}
	iin, err := p.ImplicitInput()
	if err != nil {
		return err
	}
	if iin < 0 || iin >= len(p.Inputs) {
		return fmt.Errorf("implicit_input %d out of range [0, %d)", iin, len(p.Inputs))
	}
	return nil
}

// checkName accepts names usable as a CUE identifier.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if name == ResidualField {
		return fmt.Errorf("name %q is reserved for the residual", name)
	}
	sel := cue.ParsePath(name).Selectors()
	if len(sel) != 1 || sel[0].Type() != cue.StringLabel || sel[0].String() != name {
		return fmt.Errorf("name %q is not a CUE identifier", name)
	}
	return nil
}

// OptionDict converts the YAML options to a variant.Dict.
func (p *Problem) OptionDict() (variant.Dict, error) {
	d := make(variant.Dict, len(p.Options))
	for k, raw := range p.Options {
		v, err := variant.Of(raw)
		if err != nil {
			return nil, fmt.Errorf("options[%q]: %w", k, err)
		}
		d[k] = v
	}
	return d, nil
}

// ImplicitInput returns the index of the unknown, the implicit_input
// option or 0.
func (p *Problem) ImplicitInput() (int, error) {
	raw, ok := p.Options["implicit_input"]
	if !ok {
		return 0, nil
	}
	v, err := variant.Of(raw)
	if err != nil {
		return 0, fmt.Errorf("options[\"implicit_input\"]: %w", err)
	}
	iin, err := v.ToInt()
	if err != nil {
		return 0, fmt.Errorf("options[\"implicit_input\"]: %w", err)
	}
	return iin, nil
}

// Args returns copies of the input values in order.
func (p *Problem) Args() [][]float64 {
	args := make([][]float64, len(p.Inputs))
	for i, in := range p.Inputs {
		args[i] = append([]float64(nil), in.Value...)
	}
	return args
}

// Source returns the CUE residual source.
func (p *Problem) Source() (string, error) {
	if p.Residual != "" {
		return p.Residual, nil
	}
	path := p.ResidualFile
	if !filepath.IsAbs(path) && p.dir != "" {
		path = filepath.Join(p.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &LoadError{Code: ErrCodeNotFound, Path: path, Message: "failed to read residual file", Err: err}
	}
	return string(data), nil
}

// Function builds the residual function of the problem.
func (p *Problem) Function() (*function.Callback, error) {
	src, err := p.Source()
	if err != nil {
		return nil, err
	}
	iin, err := p.ImplicitInput()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: "invalid problem", Err: err}
	}
	names := make([]string, len(p.Inputs))
	sizes := make([]int, len(p.Inputs))
	for i, in := range p.Inputs {
		names[i], sizes[i] = in.Name, len(in.Value)
	}
	return NewResidual(p.Name, src, names, sizes, sizes[iin])
}
