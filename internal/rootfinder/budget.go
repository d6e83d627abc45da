package rootfinder

// budget bounds the number of iterations of one solve.
//
// Every committed step is counted. The algorithm is stopped with a
// NOT_CONVERGED error once the count passes max_iter, which guarantees
// termination even when the algorithm itself never gives up.
type budget struct {
	maxIter int
	current int
}

func newBudget(maxIter int) *budget {
	return &budget{maxIter: maxIter}
}

// check counts one iteration and reports whether the budget is exhausted.
func (b *budget) check() error {
	b.current++
	if b.current > b.maxIter {
		return &NumericError{
			Code:    ErrCodeNotConverged,
			Message: "max_iter exceeded",
		}
	}
	return nil
}

// remaining returns the number of iterations left.
func (b *budget) remaining() int {
	return max(0, b.maxIter-b.current)
}
