package rootfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/rootsolve/internal/function"
	"github.com/roach88/rootsolve/internal/linsol"
)

// Session is an algorithm's view of one solve. It holds the iterate and
// its residual and is the only way for an algorithm to move the iterate,
// so every step is projected onto the constraints, counted against
// max_iter, and invalidates the factorization.
type Session struct {
	ctx    context.Context
	rf     *Rootfinder
	budget *budget

	// args are the residual inputs; args[iin] is z.
	args [][]float64
	z    []float64
	r    []float64
	norm float64

	iter     int
	lastStep float64

	trial *trialPoint
}

type trialPoint struct {
	dz    []float64
	alpha float64
	z     []float64
	r     []float64
	norm  float64
}

func newSession(ctx context.Context, rf *Rootfinder, args [][]float64) *Session {
	s := &Session{
		ctx:      ctx,
		rf:       rf,
		budget:   newBudget(rf.maxIter),
		args:     slices.Clone(args),
		z:        slices.Clone(args[rf.iin]),
		lastStep: math.Inf(1),
	}
	s.args[rf.iin] = s.z
	return s
}

// start projects the guess onto the constraints and evaluates the residual
// there.
func (s *Session) start() error {
	for i, c := range s.rf.constraints {
		if p := c.Project(s.z[i]); p != s.z[i] {
			s.rf.logger.Debug("guess projected onto constraints", "solver", s.rf.name, "index", i, "from", s.z[i], "to", p)
			s.z[i] = p
		}
	}
	r, err := s.residual(s.args)
	if err != nil {
		return err
	}
	s.r, s.norm = r, maxAbs(r)
	if !isFinite(s.norm) {
		return &NumericError{Code: ErrCodeNonFinite, Message: "residual at initial guess is not finite"}
	}
	s.emit(Iteration{})
	return nil
}

func (s *Session) residual(args [][]float64) ([]float64, error) {
	res, err := function.Call(s.ctx, s.rf.f, args)
	if err != nil {
		return nil, s.evalError("residual", err)
	}
	return res[0], nil
}

// evalError reports a failed evaluation, as a cancellation if the context
// is done.
func (s *Session) evalError(what string, err error) error {
	if s.ctx.Err() != nil {
		return &NumericError{Code: ErrCodeCancelled, Message: "solve cancelled", Err: err}
	}
	return fmt.Errorf("rootfinder %s: %s: %w", s.rf.name, what, err)
}

// N returns the number of unknowns.
func (s *Session) N() int { return len(s.z) }

// Z returns a copy of the current iterate.
func (s *Session) Z() []float64 { return slices.Clone(s.z) }

// Residual returns a copy of F at the current iterate.
func (s *Session) Residual() []float64 { return slices.Clone(s.r) }

// Norm returns max(|F|) at the current iterate.
func (s *Session) Norm() float64 { return s.norm }

// Iteration returns the number of steps taken so far.
func (s *Session) Iteration() int { return s.iter }

// Remaining returns the number of steps left in the budget.
func (s *Session) Remaining() int { return s.budget.remaining() }

// State returns the factorization state.
func (s *Session) State() State { return s.rf.state }

// Done reports convergence: the residual is within abstol, or the last
// undamped direction dz was within abstolStep. Line search damping does
// not count, so a stalled search is not mistaken for convergence.
func (s *Session) Done() bool {
	return s.norm <= s.rf.abstol || s.lastStep <= s.rf.abstolStep
}

// Factorize evaluates the Jacobian at the current iterate and factorizes
// it. On failure no factorization remains.
func (s *Session) Factorize() error {
	rf := s.rf
	res, err := function.Call(s.ctx, rf.jac, s.args)
	if err != nil {
		rf.factors = false
		rf.fire(EventFactorizeFailed)
		return s.evalError("jacobian", err)
	}
	if err := rf.linsol.Factorize(res[0]); err != nil {
		rf.factors = false
		rf.fire(EventFactorizeFailed)
		code := ErrCodeSingular
		if errors.Is(err, linsol.ErrNonFinite) {
			code = ErrCodeNonFinite
		}
		return &NumericError{Code: code, Message: "jacobian factorization failed", Err: err}
	}
	rf.factors = true
	rf.factorizedAt = cloneArgs(s.args)
	rf.stats.Factorizations++
	rf.fire(EventFactorized)
	return nil
}

// Direction returns the Newton direction -J^-1 F at the current iterate.
// With fresh set, the Jacobian is refactorized unless the factorization
// already belongs to the current iterate; otherwise any retained
// factorization is reused, as chord methods do.
func (s *Session) Direction(fresh bool) ([]float64, error) {
	if !s.rf.factors || (fresh && s.rf.state != Factorized) {
		if err := s.Factorize(); err != nil {
			return nil, err
		}
	}
	dz := make([]float64, len(s.r))
	for i, v := range s.r {
		dz[i] = -v
	}
	if err := s.rf.linsol.Solve(dz, 1, false); err != nil {
		return nil, &NumericError{Code: ErrCodeSingular, Message: "linear solve failed", Err: err}
	}
	if !isFinite(maxAbs(dz)) {
		return nil, &NumericError{Code: ErrCodeNonFinite, Message: "step is not finite"}
	}
	return dz, nil
}

// TryStep evaluates the residual norm at the projected point z + alpha*dz
// without moving the iterate. A non-finite residual yields +Inf.
func (s *Session) TryStep(dz []float64, alpha float64) (float64, error) {
	t, err := s.evalTrial(dz, alpha)
	if err != nil {
		return 0, err
	}
	return t.norm, nil
}

func (s *Session) evalTrial(dz []float64, alpha float64) (*trialPoint, error) {
	if len(dz) != len(s.z) {
		return nil, fmt.Errorf("rootfinder %s: step has %d entries, want %d", s.rf.name, len(dz), len(s.z))
	}
	if t := s.trial; t != nil && t.alpha == alpha && slices.Equal(t.dz, dz) {
		return t, nil
	}
	z := make([]float64, len(s.z))
	for i := range z {
		z[i] = s.rf.constraints[i].Project(s.z[i] + alpha*dz[i])
	}
	args := slices.Clone(s.args)
	args[s.rf.iin] = z
	r, err := s.residual(args)
	if err != nil {
		return nil, err
	}
	norm := maxAbs(r)
	if !isFinite(norm) {
		norm = math.Inf(1)
	}
	s.trial = &trialPoint{dz: slices.Clone(dz), alpha: alpha, z: z, r: r, norm: norm}
	return s.trial, nil
}

// Step moves the iterate to the projected point z + alpha*dz and returns
// max(|dz|) of the step actually taken. Each step counts against max_iter
// and, if the iterate moved, invalidates the factorization.
func (s *Session) Step(dz []float64, alpha float64) (float64, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, &NumericError{Code: ErrCodeCancelled, Message: "solve cancelled", Err: err}
	}
	if err := s.budget.check(); err != nil {
		return 0, err
	}
	t, err := s.evalTrial(dz, alpha)
	if err != nil {
		return 0, err
	}
	s.trial = nil

	// abstolStep tests the full direction, so neither damping nor a step
	// swallowed by the constraints passes for convergence.
	step := 0.0
	for i := range s.z {
		step = math.Max(step, math.Abs(t.z[i]-s.z[i]))
	}
	intended := maxAbs(dz)
	copy(s.z, t.z)
	s.r, s.norm = t.r, t.norm
	s.iter++
	s.lastStep = intended
	if step > 0 {
		s.rf.fire(EventInvalidate)
	}

	s.emit(Iteration{Iter: s.iter, Norm: s.norm, StepNorm: step, Alpha: alpha})
	if math.IsInf(s.norm, 1) {
		return step, &NumericError{Code: ErrCodeNonFinite, Message: "residual is not finite"}
	}
	return step, nil
}

func (s *Session) emit(it Iteration) {
	rf := s.rf
	it.Factorizations = rf.stats.Factorizations
	it.Z = slices.Clone(s.z)
	if it.Iter == 0 {
		it.Norm = s.norm
	}
	level := slog.LevelDebug
	if rf.verbose {
		level = slog.LevelInfo
	}
	rf.logger.Log(s.ctx, level, "rootfinder iteration",
		"solver", rf.name,
		"iter", it.Iter,
		"norm", it.Norm,
		"step", it.StepNorm,
		"alpha", it.Alpha)
	if rf.trace != nil {
		rf.trace(it)
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if math.IsNaN(v) {
			return math.NaN()
		}
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func cloneArgs(args [][]float64) [][]float64 {
	out := make([][]float64, len(args))
	for i, a := range args {
		out[i] = slices.Clone(a)
	}
	return out
}
