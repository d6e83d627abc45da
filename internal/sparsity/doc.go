// Package sparsity implements structural sparsity patterns and the
// bit-vector propagation primitives used to track which entries of a
// function's outputs may depend on which entries of its inputs.
//
// Patterns are stored in compressed column format. Seeds are slices of
// Word, one word per structural nonzero. Every bit position of a word is an
// independent seed direction, so a single propagation pass traces up to
// WordBits directions at once.
//
// Forward and Adjoint are pure with respect to their source arguments: they
// only ever OR bits into the destination. Callers that need overwrite
// semantics clear the destination first.
package sparsity
