package rootfinder

import (
	"fmt"
	"log/slog"

	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/variant"
)

// Common lists the options accepted by every algorithm.
var Common = plugin.OptionTable{
	{Name: "abstol", Type: variant.TypeDouble, Default: variant.NewDouble(1e-12),
		Description: "Stopping criterion tolerance on max(|F|)"},
	{Name: "abstolStep", Type: variant.TypeDouble, Default: variant.NewDouble(1e-12),
		Description: "Stopping criterion tolerance on step size"},
	{Name: "max_iter", Type: variant.TypeInt, Default: variant.NewInt(1000),
		Description: "Maximum number of iterations to perform before returning."},
	{Name: "linear_solver", Type: variant.TypeString, Default: variant.NewString("lu"),
		Description: "Linear solver plugin used for steps and sensitivities."},
	{Name: "linear_solver_options", Type: variant.TypeDict,
		Description: "Options to be passed to the linear solver."},
	{Name: "constraints", Type: variant.TypeIntList,
		Description: "Constrain the unknowns. 0 (default): no constraint on ui, 1: ui >= 0.0, -1: ui <= 0.0, 2: ui = 0.0."},
	{Name: "implicit_input", Type: variant.TypeInt, Default: variant.NewInt(0),
		Description: "Index of the input that corresponds to the actual root-finding"},
	{Name: "verbose", Type: variant.TypeBool, Default: variant.NewBool(false),
		Description: "Log every iteration at info level."},
}

// Option configures a Rootfinder from Go code.
type Option func(*Rootfinder)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Rootfinder) {
		r.logger = l
	}
}

// WithTrace registers fn to observe every iteration, starting with the
// initial guess as iteration 0.
func WithTrace(fn func(Iteration)) Option {
	return func(r *Rootfinder) {
		r.trace = fn
	}
}

// Constraint restricts the sign of one unknown.
type Constraint int

const (
	None        Constraint = 0
	NonNegative Constraint = 1
	NonPositive Constraint = -1
	Zero        Constraint = 2
)

func (c Constraint) String() string {
	switch c {
	case None:
		return "none"
	case NonNegative:
		return ">=0"
	case NonPositive:
		return "<=0"
	case Zero:
		return "=0"
	}
	return fmt.Sprintf("constraint(%d)", int(c))
}

// Project returns the point of the feasible set closest to x.
func (c Constraint) Project(x float64) float64 {
	switch c {
	case NonNegative:
		return max(x, 0)
	case NonPositive:
		return min(x, 0)
	case Zero:
		return 0
	}
	return x
}

// parseConstraints reads the constraints option. A missing option means no
// constraints.
func parseConstraints(opts variant.Dict, n int) ([]Constraint, error) {
	out := make([]Constraint, n)
	v, ok := opts["constraints"]
	if !ok {
		return out, nil
	}
	codes, err := v.ToIntList()
	if err != nil {
		return nil, err
	}
	if len(codes) != n {
		return nil, &plugin.OptionError{
			Code:    plugin.ErrCodeOptionType,
			Key:     "constraints",
			Message: fmt.Sprintf("got %d entries for %d unknowns", len(codes), n),
		}
	}
	for i, c := range codes {
		switch Constraint(c) {
		case None, NonNegative, NonPositive, Zero:
			out[i] = Constraint(c)
		default:
			return nil, &plugin.OptionError{
				Code:    plugin.ErrCodeOptionType,
				Key:     "constraints",
				Message: fmt.Sprintf("entry %d: unknown constraint %d", i, c),
			}
		}
	}
	return out, nil
}
