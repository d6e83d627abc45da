package sparsity

import "math/bits"

// Word holds one seed bit per propagation direction.
type Word uint64

// WordBits is the number of directions propagated per pass.
const WordBits = 64

// Has reports whether direction bit is set.
func (w Word) Has(bit int) bool { return w&(1<<uint(bit)) != 0 }

// Set returns w with direction bit set.
func (w Word) Set(bit int) Word { return w | 1<<uint(bit) }

// Count returns the number of directions set.
func (w Word) Count() int { return bits.OnesCount64(uint64(w)) }

// Or accumulates src into dst elementwise. The slices must have equal
// length.
func Or(dst, src []Word) {
	for i, w := range src {
		dst[i] |= w
	}
}

// Reduce returns the union of all words in src.
func Reduce(src []Word) Word {
	var acc Word
	for _, w := range src {
		acc |= w
	}
	return acc
}

// Fill ORs w into every word of dst.
func Fill(dst []Word, w Word) {
	for i := range dst {
		dst[i] |= w
	}
}

// Clear zeroes dst.
func Clear(dst []Word) {
	for i := range dst {
		dst[i] = 0
	}
}

// Forward propagates input seeds through a dependency pattern. jac has one
// row per output nonzero and one column per input nonzero; each output word
// receives the OR of the input words it depends on.
func Forward(jac Pattern, out, in []Word) {
	for c := 0; c < jac.ncol; c++ {
		w := in[c]
		if w == 0 {
			continue
		}
		for k := jac.colind[c]; k < jac.colind[c+1]; k++ {
			out[jac.row[k]] |= w
		}
	}
}

// Adjoint is the transpose of Forward: each input word receives the OR of
// the output words that depend on it.
func Adjoint(jac Pattern, in, out []Word) {
	for c := 0; c < jac.ncol; c++ {
		var w Word
		for k := jac.colind[c]; k < jac.colind[c+1]; k++ {
			w |= out[jac.row[k]]
		}
		in[c] |= w
	}
}

// Batch splits n seed directions into passes of at most WordBits and calls
// fn with the first direction and width of each pass.
func Batch(n int, fn func(offset, width int) error) error {
	for off := 0; off < n; off += WordBits {
		if err := fn(off, min(WordBits, n-off)); err != nil {
			return err
		}
	}
	return nil
}
