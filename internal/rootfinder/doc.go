// Package rootfinder solves F(z, p1, ..., pn) = 0 for z and synthesizes
// derivative functions of the root with respect to the parameters through
// the implicit function theorem.
//
// A Rootfinder wraps a residual function.Function and is itself a
// function.Function: it takes the residual's inputs, with the unknown's
// input reinterpreted as the initial guess, and returns the root.
//
// The iterative algorithm is a plugin resolved from the Algorithms
// registry ("newton" by default, or "chord"). The core owns everything
// around it:
//
//   - the Jacobian dF/dz and the linear solver plugin bound by Init
//   - the factorization state machine (uninitialized, stale, factorized)
//   - constraint projection of every step
//   - the iteration budget (max_iter)
//   - structural sparsity propagation through the solve
//   - forward and reverse derivative functions that reuse the factorization
//     left behind by the last successful solve
//
// Instances are not safe for concurrent use. Distinct instances share
// nothing except the plugin registries.
package rootfinder
