package rootfinder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/linsol"
	"github.com/roach88/rootsolve/internal/sparsity"
	"github.com/roach88/rootsolve/internal/variant"
)

// Iteration is one entry of a solve trace.
type Iteration struct {
	Iter int `json:"iter"`
	// Z is the iterate after the step.
	Z []float64 `json:"z"`
	// Norm is max(|F|) after the step.
	Norm float64 `json:"norm"`
	// StepNorm is max(|dz|) of the step actually taken.
	StepNorm float64 `json:"step_norm"`
	// Alpha is the step length along the direction.
	Alpha float64 `json:"alpha"`
	// Factorizations is the running count of Jacobian factorizations.
	Factorizations int `json:"factorizations"`
}

// MarshalJSON writes non-finite numbers, which JSON cannot carry, as null.
func (it Iteration) MarshalJSON() ([]byte, error) {
	z := make([]*float64, len(it.Z))
	for i := range it.Z {
		z[i] = finite(it.Z[i])
	}
	return json.Marshal(struct {
		Iter           int        `json:"iter"`
		Z              []*float64 `json:"z"`
		Norm           *float64   `json:"norm"`
		StepNorm       *float64   `json:"step_norm"`
		Alpha          *float64   `json:"alpha"`
		Factorizations int        `json:"factorizations"`
	}{it.Iter, z, finite(it.Norm), finite(it.StepNorm), finite(it.Alpha), it.Factorizations})
}

func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// Stats summarizes the last call to Eval.
type Stats struct {
	Iterations     int
	Factorizations int
	Norm           float64
	Converged      bool
}

// Rootfinder solves F(z, p) = 0 for the unknown input of a residual
// function. See the package documentation for the overall contract.
type Rootfinder struct {
	name   string
	solver string
	f      function.Function
	n      int
	iin    int

	opts        variant.Dict
	alg         Algorithm
	constraints []Constraint
	abstol      float64
	abstolStep  float64
	maxIter     int
	verbose     bool

	jac    function.Function
	linsol linsol.Solver
	state  State
	// factors is set while the linear solver holds a factorization, even
	// one taken at an earlier iterate.
	factors      bool
	factorizedAt [][]float64

	jacP map[int]function.Function
	fwd  map[int]*derivative
	rev  map[int]*derivative

	logger *slog.Logger
	trace  func(Iteration)
	stats  Stats
	closed bool
}

// New creates a rootfinder called name for the residual f using the
// algorithm plugin solver. An empty solver selects Algorithms.ShortName().
// opts is validated against the plugin's option table and never modified.
func New(name, solver string, f function.Function, opts variant.Dict, options ...Option) (*Rootfinder, error) {
	if f == nil {
		return nil, errors.New("rootfinder: nil residual")
	}
	p, err := Algorithms.Load(solver)
	if err != nil {
		return nil, err
	}
	resolved, err := p.Options.Resolve(opts)
	if err != nil {
		return nil, fmt.Errorf("rootfinder %s: %w", name, err)
	}

	r := &Rootfinder{
		name:   name,
		solver: p.Name,
		f:      f,
		opts:   resolved,
		logger: slog.Default(),
		fwd:    make(map[int]*derivative),
		rev:    make(map[int]*derivative),
		jacP:   make(map[int]function.Function),
	}
	for _, opt := range options {
		opt(r)
	}
	if err := r.readOptions(); err != nil {
		return nil, fmt.Errorf("rootfinder %s: %w", name, err)
	}
	if err := r.checkShape(); err != nil {
		return nil, err
	}
	if r.constraints, err = parseConstraints(resolved, r.n); err != nil {
		return nil, fmt.Errorf("rootfinder %s: %w", name, err)
	}

	r.alg, err = Algorithms.Instantiate(p.Name, Args{N: r.n, Options: resolved})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rootfinder) readOptions() error {
	var err error
	if r.abstol, err = r.opts["abstol"].ToDouble(); err != nil {
		return err
	}
	if r.abstolStep, err = r.opts["abstolStep"].ToDouble(); err != nil {
		return err
	}
	if r.maxIter, err = r.opts["max_iter"].ToInt(); err != nil {
		return err
	}
	if r.iin, err = r.opts["implicit_input"].ToInt(); err != nil {
		return err
	}
	if r.verbose, err = r.opts["verbose"].ToBool(); err != nil {
		return err
	}
	if r.maxIter < 0 {
		return fmt.Errorf("max_iter must be non-negative, got %d", r.maxIter)
	}
	return nil
}

func (r *Rootfinder) checkShape() error {
	f := r.f
	fail := func(format string, args ...any) error {
		return &ShapeError{Func: f.Name(), Message: fmt.Sprintf(format, args...)}
	}
	if f.NIn() < 2 {
		return fail("need the unknown plus at least one parameter, got %d inputs", f.NIn())
	}
	if f.NOut() != 1 {
		return fail("need exactly one output, got %d", f.NOut())
	}
	if r.iin < 0 || r.iin >= f.NIn() {
		return fail("implicit_input %d out of range [0, %d)", r.iin, f.NIn())
	}
	zin, rout := f.SparsityIn(r.iin), f.SparsityOut(0)
	if !zin.IsDenseColumn() {
		return fail("unknown (input %d) must be a dense column, got %s", r.iin, zin)
	}
	if !rout.IsDenseColumn() {
		return fail("residual must be a dense column, got %s", rout)
	}
	if zin.Rows() != rout.Rows() {
		return fail("unknown has %d entries but residual has %d", zin.Rows(), rout.Rows())
	}
	if zin.Rows() == 0 {
		return fail("empty unknown")
	}
	r.n = zin.Rows()
	return nil
}

// Init derives the Jacobian dF/dz and binds the linear solver. It must be
// called exactly once before Eval.
func (r *Rootfinder) Init() error {
	if r.closed {
		return ErrClosed
	}
	if r.state != Uninitialized {
		return ErrAlreadyInitialized
	}

	jac, err := function.Jacobian(r.f, r.iin, 0)
	if err != nil {
		return fmt.Errorf("rootfinder %s: jacobian: %w", r.name, err)
	}
	sp := jac.SparsityOut(0)
	if sp.Rows() != r.n || sp.Cols() != r.n {
		return &ShapeError{Func: r.f.Name(), Message: fmt.Sprintf("jacobian is %s, want %dx%d", sp.Shape(), r.n, r.n)}
	}

	solverName, _ := r.opts["linear_solver"].ToString()
	var solverOpts variant.Dict
	if v, ok := r.opts["linear_solver_options"]; ok {
		if solverOpts, err = v.ToDict(); err != nil {
			return err
		}
	}
	ls, err := linsol.New(solverName, sp, solverOpts)
	if err != nil {
		return fmt.Errorf("rootfinder %s: %w", r.name, err)
	}

	r.jac, r.linsol = jac, ls
	r.fire(EventInit)
	r.logger.Debug("rootfinder initialized",
		"solver", r.name,
		"algorithm", r.solver,
		"linear_solver", ls.Name(),
		"n", r.n,
		"jacobian", sp.String())
	return nil
}

func (r *Rootfinder) fire(e Event) {
	next, err := r.state.Next(e)
	if err != nil {
		// every caller guards its event; reaching this is a bug
		panic(err)
	}
	if next != r.state {
		r.logger.Debug("factorization state", "solver", r.name, "from", r.state, "to", next, "event", e)
	}
	r.state = next
}

// State returns the factorization state.
func (r *Rootfinder) State() State { return r.state }

// Stats returns statistics of the last Eval.
func (r *Rootfinder) Stats() Stats { return r.stats }

// Algorithm returns the name of the algorithm plugin.
func (r *Rootfinder) Algorithm() string { return r.solver }

// Options returns a copy of the resolved options.
func (r *Rootfinder) Options() variant.Dict { return r.opts.Clone() }

// Constraints returns the per-unknown constraints.
func (r *Rootfinder) Constraints() []Constraint { return slices.Clone(r.constraints) }

// Residual returns the residual function.
func (r *Rootfinder) Residual() function.Function { return r.f }

// ImplicitInput returns the index of the unknown's input.
func (r *Rootfinder) ImplicitInput() int { return r.iin }

func (r *Rootfinder) Name() string { return r.name }
func (r *Rootfinder) NIn() int     { return r.f.NIn() }
func (r *Rootfinder) NOut() int    { return 1 }

// SparsityIn returns the pattern of input i, equal to the residual's.
func (r *Rootfinder) SparsityIn(i int) sparsity.Pattern { return r.f.SparsityIn(i) }

// SparsityOut returns the pattern of the root.
func (r *Rootfinder) SparsityOut(int) sparsity.Pattern { return sparsity.DenseColumn(r.n) }

// Eval solves for the root. args are the residual's inputs with the
// unknown's entry used as the initial guess.
func (r *Rootfinder) Eval(ctx context.Context, args [][]float64) ([][]float64, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.state == Uninitialized {
		return nil, ErrNotInitialized
	}
	if err := function.CheckArgs(r, args); err != nil {
		return nil, err
	}

	r.fire(EventNewInputs)
	r.stats = Stats{}
	s := newSession(ctx, r, args)
	z, err := r.solve(s)
	r.stats.Iterations = s.iter
	r.stats.Norm = s.norm
	if err != nil {
		var ne *NumericError
		if errors.As(err, &ne) {
			ne.annotate(s)
		}
		// the factorization belongs to an iterate that is not a root
		if r.state == Factorized {
			r.fire(EventInvalidate)
		}
		r.logger.Warn("rootfinder failed", "solver", r.name, "iter", s.iter, "norm", s.norm, "error", err)
		return nil, err
	}
	r.stats.Converged = true
	r.logger.Debug("rootfinder converged", "solver", r.name, "iter", s.iter, "norm", s.norm)
	return [][]float64{z}, nil
}

func (r *Rootfinder) solve(s *Session) ([]float64, error) {
	if err := s.start(); err != nil {
		return nil, err
	}
	if r.state != Factorized {
		if err := s.Factorize(); err != nil {
			return nil, err
		}
	}
	if !s.Done() {
		if err := r.alg.SolveNonlinear(s.ctx, s); err != nil {
			return nil, err
		}
		if !s.Done() {
			return nil, &NumericError{Code: ErrCodeNotConverged, Message: "algorithm returned before convergence"}
		}
	}
	// Derivative functions reuse the factorization, so it must belong to
	// the root itself.
	if r.state != Factorized {
		if err := s.Factorize(); err != nil {
			r.logger.Warn("jacobian singular at root; derivatives unavailable", "solver", r.name, "error", err)
		}
	}
	return slices.Clone(s.z), nil
}

// SpCanEvaluate reports whether sparsity propagation is supported in the
// given direction. It always is.
func (r *Rootfinder) SpCanEvaluate(bool) bool { return true }

// SpForward implements function.Function. The guess never influences the
// root; parameter seeds reach it through the residual and the linear
// solver's structural solve.
func (r *Rootfinder) SpForward(arg, res [][]sparsity.Word) error {
	if err := function.CheckSeeds(r, arg, res); err != nil {
		return err
	}
	if res[0] == nil {
		return nil
	}
	if r.linsol == nil {
		return ErrNotInitialized
	}
	fArg := slices.Clone(arg)
	fArg[r.iin] = nil
	tmp := make([]sparsity.Word, r.n)
	if err := r.f.SpForward(fArg, [][]sparsity.Word{tmp}); err != nil {
		return err
	}
	sparsity.Clear(res[0])
	r.linsol.SpSolve(res[0], tmp, false)
	return nil
}

// SpAdjoint implements function.Function. Seeds on the root are pulled back
// through the transposed structural solve and then through the residual;
// the guess receives nothing.
func (r *Rootfinder) SpAdjoint(arg, res [][]sparsity.Word) error {
	if err := function.CheckSeeds(r, arg, res); err != nil {
		return err
	}
	if res[0] == nil {
		return nil
	}
	if r.linsol == nil {
		return ErrNotInitialized
	}
	tmp := make([]sparsity.Word, r.n)
	r.linsol.SpSolve(tmp, res[0], true)
	fArg := slices.Clone(arg)
	fArg[r.iin] = nil
	return r.f.SpAdjoint(fArg, [][]sparsity.Word{tmp})
}

// Close releases the Jacobian functions, derivative functions and linear
// solver. The rootfinder is unusable afterwards.
func (r *Rootfinder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for _, d := range r.fwd {
		errs = append(errs, d.Close())
	}
	for _, d := range r.rev {
		errs = append(errs, d.Close())
	}
	for _, j := range r.jacP {
		errs = append(errs, function.Release(j))
	}
	if r.jac != nil {
		errs = append(errs, function.Release(r.jac))
	}
	if c, ok := r.linsol.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	r.jac, r.linsol, r.jacP, r.fwd, r.rev = nil, nil, nil, nil, nil
	r.factors = false
	return errors.Join(errs...)
}
