// Package function defines the evaluator contract shared by residuals,
// Jacobians, rootfinders and derivative functions, together with a
// callback-backed implementation and a finite-difference Jacobian.
//
// Every input and output is a matrix with a fixed sparsity pattern. Numeric
// data travels as the slice of structural nonzeros in pattern order.
package function
