package sparsity

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidPattern is returned when compressed column data is malformed.
var ErrInvalidPattern = errors.New("sparsity: invalid pattern")

// Pattern is an immutable structural sparsity pattern in compressed column
// storage. The nonzeros of column c are row[colind[c]:colind[c+1]], sorted
// by row index.
type Pattern struct {
	nrow, ncol int
	colind     []int
	row        []int
}

// New creates a pattern from compressed column data. The slices are copied.
func New(nrow, ncol int, colind, row []int) (Pattern, error) {
	if nrow < 0 || ncol < 0 {
		return Pattern{}, fmt.Errorf("%w: negative shape %dx%d", ErrInvalidPattern, nrow, ncol)
	}
	if len(colind) != ncol+1 {
		return Pattern{}, fmt.Errorf("%w: colind has %d entries, want %d", ErrInvalidPattern, len(colind), ncol+1)
	}
	if colind[0] != 0 || colind[ncol] != len(row) {
		return Pattern{}, fmt.Errorf("%w: colind must span [0, %d]", ErrInvalidPattern, len(row))
	}
	for c := 0; c < ncol; c++ {
		if colind[c] > colind[c+1] {
			return Pattern{}, fmt.Errorf("%w: colind decreases at column %d", ErrInvalidPattern, c)
		}
		for k := colind[c]; k < colind[c+1]; k++ {
			if row[k] < 0 || row[k] >= nrow {
				return Pattern{}, fmt.Errorf("%w: row %d out of range in column %d", ErrInvalidPattern, row[k], c)
			}
			if k > colind[c] && row[k] <= row[k-1] {
				return Pattern{}, fmt.Errorf("%w: rows not strictly increasing in column %d", ErrInvalidPattern, c)
			}
		}
	}
	return Pattern{nrow: nrow, ncol: ncol, colind: slices.Clone(colind), row: slices.Clone(row)}, nil
}

// MustNew is New for patterns known to be valid.
func MustNew(nrow, ncol int, colind, row []int) Pattern {
	p, err := New(nrow, ncol, colind, row)
	if err != nil {
		panic(err)
	}
	return p
}

// FromTriplets builds a pattern from (row, col) coordinates. Duplicates are
// merged and order does not matter.
func FromTriplets(nrow, ncol int, rows, cols []int) (Pattern, error) {
	if len(rows) != len(cols) {
		return Pattern{}, fmt.Errorf("%w: %d rows but %d cols", ErrInvalidPattern, len(rows), len(cols))
	}
	perCol := make([][]int, ncol)
	for k := range rows {
		r, c := rows[k], cols[k]
		if r < 0 || r >= nrow || c < 0 || c >= ncol {
			return Pattern{}, fmt.Errorf("%w: entry (%d,%d) outside %dx%d", ErrInvalidPattern, r, c, nrow, ncol)
		}
		perCol[c] = append(perCol[c], r)
	}
	colind := make([]int, ncol+1)
	var row []int
	for c, rs := range perCol {
		slices.Sort(rs)
		rs = slices.Compact(rs)
		row = append(row, rs...)
		colind[c+1] = len(row)
	}
	return Pattern{nrow: nrow, ncol: ncol, colind: colind, row: row}, nil
}

// Dense returns the fully dense nrow x ncol pattern.
func Dense(nrow, ncol int) Pattern {
	colind := make([]int, ncol+1)
	row := make([]int, 0, nrow*ncol)
	for c := 0; c < ncol; c++ {
		for r := 0; r < nrow; r++ {
			row = append(row, r)
		}
		colind[c+1] = len(row)
	}
	return Pattern{nrow: nrow, ncol: ncol, colind: colind, row: row}
}

// DenseColumn returns the dense n x 1 pattern.
func DenseColumn(n int) Pattern { return Dense(n, 1) }

// Empty returns the nrow x ncol pattern without nonzeros.
func Empty(nrow, ncol int) Pattern {
	return Pattern{nrow: nrow, ncol: ncol, colind: make([]int, ncol+1)}
}

// Diagonal returns the n x n diagonal pattern.
func Diagonal(n int) Pattern {
	colind := make([]int, n+1)
	row := make([]int, n)
	for i := 0; i < n; i++ {
		row[i] = i
		colind[i+1] = i + 1
	}
	return Pattern{nrow: n, ncol: n, colind: colind, row: row}
}

func (p Pattern) Rows() int  { return p.nrow }
func (p Pattern) Cols() int  { return p.ncol }
func (p Pattern) Nnz() int   { return len(p.row) }
func (p Pattern) Numel() int { return p.nrow * p.ncol }

// ColInd returns a copy of the column offsets.
func (p Pattern) ColInd() []int {
	if p.colind == nil {
		return []int{0}
	}
	return slices.Clone(p.colind)
}

// RowInd returns a copy of the row indices of the nonzeros.
func (p Pattern) RowInd() []int { return slices.Clone(p.row) }

func (p Pattern) IsDense() bool  { return p.Nnz() == p.Numel() }
func (p Pattern) IsColumn() bool { return p.ncol == 1 }
func (p Pattern) IsEmpty() bool  { return p.Nnz() == 0 }

// IsDenseColumn reports whether p is a dense column vector.
func (p Pattern) IsDenseColumn() bool { return p.IsColumn() && p.IsDense() }

// Find returns the row and column of every nonzero, in storage order.
func (p Pattern) Find() (rows, cols []int) {
	rows = make([]int, p.Nnz())
	cols = make([]int, p.Nnz())
	for c := 0; c < p.ncol; c++ {
		for k := p.colind[c]; k < p.colind[c+1]; k++ {
			rows[k] = p.row[k]
			cols[k] = c
		}
	}
	return rows, cols
}

// Index returns the nonzero index of entry (r, c), or -1 if it is
// structurally zero.
func (p Pattern) Index(r, c int) int {
	if c < 0 || c >= p.ncol {
		return -1
	}
	lo, hi := p.colind[c], p.colind[c+1]
	k, ok := slices.BinarySearch(p.row[lo:hi], r)
	if !ok {
		return -1
	}
	return lo + k
}

// Has reports whether entry (r, c) is structurally nonzero.
func (p Pattern) Has(r, c int) bool { return p.Index(r, c) >= 0 }

// Transpose returns the transposed pattern and, for every nonzero of the
// result, the index of the corresponding nonzero of p.
func (p Pattern) Transpose() (Pattern, []int) {
	count := make([]int, p.nrow+1)
	for _, r := range p.row {
		count[r+1]++
	}
	for r := 0; r < p.nrow; r++ {
		count[r+1] += count[r]
	}
	colind := slices.Clone(count)
	row := make([]int, p.Nnz())
	mapping := make([]int, p.Nnz())
	for c := 0; c < p.ncol; c++ {
		for k := p.colind[c]; k < p.colind[c+1]; k++ {
			dst := count[p.row[k]]
			count[p.row[k]]++
			row[dst] = c
			mapping[dst] = k
		}
	}
	return Pattern{nrow: p.ncol, ncol: p.nrow, colind: colind, row: row}, mapping
}

// Union returns the pattern holding the nonzeros of both a and b.
func Union(a, b Pattern) (Pattern, error) {
	if a.nrow != b.nrow || a.ncol != b.ncol {
		return Pattern{}, fmt.Errorf("sparsity: union of %s and %s", a.Shape(), b.Shape())
	}
	ar, ac := a.Find()
	br, bc := b.Find()
	return FromTriplets(a.nrow, a.ncol, append(ar, br...), append(ac, bc...))
}

// Equal reports structural equality.
func (p Pattern) Equal(o Pattern) bool {
	return p.nrow == o.nrow && p.ncol == o.ncol &&
		slices.Equal(p.ColInd(), o.ColInd()) && slices.Equal(p.row, o.row)
}

// Shape renders the dimensions, e.g. "3x1".
func (p Pattern) Shape() string { return fmt.Sprintf("%dx%d", p.nrow, p.ncol) }

func (p Pattern) String() string {
	if p.IsDense() {
		return "dense " + p.Shape()
	}
	return fmt.Sprintf("%s, %d nnz", p.Shape(), p.Nnz())
}

// Densify scatters nonzeros into a column-major dense nrow*ncol slice.
func (p Pattern) Densify(nz []float64) []float64 {
	out := make([]float64, p.Numel())
	for c := 0; c < p.ncol; c++ {
		for k := p.colind[c]; k < p.colind[c+1]; k++ {
			out[c*p.nrow+p.row[k]] = nz[k]
		}
	}
	return out
}
