// Package linsol provides the linear solver plugins used by the rootfinder
// to factorize the Jacobian of a residual and solve against it.
//
// Solvers are registered in the Solvers registry under a short name and
// instantiated for a fixed sparsity pattern. The built-in solvers, "lu" and
// "qr", work on a dense copy of the matrix and report dense structural
// coupling to sparsity propagation.
package linsol
