package splitmerge

import (
	"github.com/pkg/errors"
)

// Table is a dense row-major probability table indexed by subsymbols. A
// binary rule has dimensions (parent, left, right), an unary rule (parent,
// child) and a lexical rule (parent)
type Table struct {
	Dims []int
	Data []float64
}

// NewTable creates a zero filled table
func NewTable(dims ...int) *Table {
	size := 1
	for _, d := range dims {
		size *= d
	}
	return &Table{
		Dims: append([]int(nil), dims...),
		Data: make([]float64, size),
	}
}

// NewTableFrom creates a table over data. The length of data must match
// dims
func NewTableFrom(data []float64, dims ...int) (*Table, error) {
	t := &Table{Dims: append([]int(nil), dims...), Data: data}
	if size := t.size(); size != len(data) {
		return nil, errors.Wrapf(
			ErrInconsistent,
			"table %v needs %d values, %d found",
			dims,
			size,
			len(data))
	}
	return t, nil
}

func (t *Table) size() int {
	size := 1
	for _, d := range t.Dims {
		size *= d
	}
	return size
}

// offset converts a subsymbol index tuple to the position in Data
func (t *Table) offset(index []int) int {
	if len(index) != len(t.Dims) {
		panic("Table: wrong number of indices")
	}
	offset := 0
	for d, i := range index {
		if i < 0 || i >= t.Dims[d] {
			panic("Table: index out of range")
		}
		offset = offset*t.Dims[d] + i
	}
	return offset
}

// At returns the probability at index
func (t *Table) At(index ...int) float64 {
	return t.Data[t.offset(index)]
}

// Set stores the probability at index
func (t *Table) Set(value float64, index ...int) {
	t.Data[t.offset(index)] = value
}

// Clone returns a deep copy of t
func (t *Table) Clone() *Table {
	return &Table{
		Dims: append([]int(nil), t.Dims...),
		Data: append([]float64(nil), t.Data...),
	}
}

// DimMerge describes how one dimension of a table collapses. Pairs holds the
// ascending even indices whose pair (i, i+1) becomes one entry. When Weights
// is nil the two entries of a pair are added, otherwise they are combined as
// Weights[i]*P[i] + Weights[i+1]*P[i+1]
type DimMerge struct {
	Pairs   []int
	Weights []float64
}

// Collapse returns a new table where every dimension is reduced by merges.
// A nil entry in merges leaves that dimension untouched. Entries not
// involved in a merged pair are copied unchanged
func (t *Table) Collapse(merges []*DimMerge) (*Table, error) {
	if len(merges) != len(t.Dims) {
		return nil, errors.Errorf(
			"Collapse: %d merge instructions for %d dimensions",
			len(merges),
			len(t.Dims))
	}

	// Mapping from old to new index and the factor of every old index, per
	// dimension
	mappings := make([][]int, len(t.Dims))
	factors := make([][]float64, len(t.Dims))
	newDims := make([]int, len(t.Dims))
	for d, n := range t.Dims {
		m := merges[d]
		factor := make([]float64, n)
		for i := range factor {
			factor[i] = 1.0
		}
		if m == nil || len(m.Pairs) == 0 {
			mapping := make([]int, n)
			for i := range mapping {
				mapping[i] = i
			}
			mappings[d], factors[d], newDims[d] = mapping, factor, n
			continue
		}
		for _, p := range m.Pairs {
			if p%2 != 0 || p+1 >= n {
				return nil, errors.Wrapf(
					ErrInconsistent,
					"Collapse: pair %d out of range for dimension %d of size %d",
					p,
					d,
					n)
			}
			if m.Weights != nil {
				if len(m.Weights) != n {
					return nil, errors.Wrapf(
						ErrInconsistent,
						"Collapse: %d weights for dimension %d of size %d",
						len(m.Weights),
						d,
						n)
				}
				factor[p] = m.Weights[p]
				factor[p+1] = m.Weights[p+1]
			}
		}
		mappings[d], newDims[d] = subsymbolMapping(n, m.Pairs)
		factors[d] = factor
	}

	collapsed := NewTable(newDims...)
	index := make([]int, len(t.Dims))
	for offset, value := range t.Data {
		// Decode offset into index, last dimension changes fastest
		rest := offset
		for d := len(t.Dims) - 1; d >= 0; d-- {
			index[d] = rest % t.Dims[d]
			rest /= t.Dims[d]
		}

		newOffset := 0
		factor := 1.0
		for d, i := range index {
			newOffset = newOffset*newDims[d] + mappings[d][i]
			factor *= factors[d][i]
		}
		if factor == 1.0 {
			collapsed.Data[newOffset] += value
		} else {
			collapsed.Data[newOffset] += factor * value
		}
	}
	return collapsed, nil
}
