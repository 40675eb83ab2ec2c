package splitmerge

import (
	"github.com/pkg/errors"
)

// RootId is the id of RootSymbol in every SymbolTable. The root is never
// split or merged
const RootId = 0

// SymbolTable maps nonterminal names to dense ids and tracks how many
// subsymbols each nonterminal currently has
type SymbolTable struct {
	// Map from symbol name to its id
	ids map[string]int

	// Map from symbol id to symbol name
	names []string

	// Number of subsymbols for each symbol id
	numSubsymbols []int
}

// NewSymbolTable creates a symbol table that contains only the root symbol
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{
		ids:           map[string]int{},
		names:         []string{},
		numSubsymbols: []int{},
	}
	t.Add(string(RootSymbol))
	return t
}

// Add gets the id of symbol name. If the symbol does not exist in the table
// insert a new one with a single subsymbol
func (t *SymbolTable) Add(name string) int {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := len(t.names)
	t.ids[name] = id
	t.names = append(t.names, name)
	t.numSubsymbols = append(t.numSubsymbols, 1)
	return id
}

// Id returns the id of name
func (t *SymbolTable) Id(name string) (int, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Name returns the name of symbol id
func (t *SymbolTable) Name(id int) string {
	if id < 0 || id >= len(t.names) {
		return "<?>"
	}
	return t.names[id]
}

// Len returns the number of symbols, root included
func (t *SymbolTable) Len() int {
	return len(t.names)
}

// Contains reports whether id is a valid symbol id
func (t *SymbolTable) Contains(id int) bool {
	return id >= 0 && id < len(t.names)
}

// NumSubsymbols returns the current subsymbol count of symbol id
func (t *SymbolTable) NumSubsymbols(id int) int {
	return t.numSubsymbols[id]
}

// SetNumSubsymbols updates the subsymbol count of a single symbol
func (t *SymbolTable) SetNumSubsymbols(id, n int) error {
	if !t.Contains(id) {
		return errors.Wrapf(ErrInconsistent, "unknown symbol id %d", id)
	}
	if n < 1 {
		return errors.Wrapf(ErrInconsistent, "%s: subsymbol count %d", t.Name(id), n)
	}
	if id == RootId && n != 1 {
		return errors.Wrapf(ErrInconsistent, "root symbol can not be split")
	}
	t.numSubsymbols[id] = n
	return nil
}

// SubsymbolCounts returns a copy of the subsymbol count vector
func (t *SymbolTable) SubsymbolCounts() []int {
	counts := make([]int, len(t.numSubsymbols))
	copy(counts, t.numSubsymbols)
	return counts
}

// SetSubsymbolCounts replaces the whole subsymbol count vector
func (t *SymbolTable) SetSubsymbolCounts(counts []int) error {
	if len(counts) != len(t.names) {
		return errors.Wrapf(
			ErrInconsistent,
			"subsymbol vector has %d entries, %d symbols expected",
			len(counts),
			len(t.names))
	}
	for id, n := range counts {
		if n < 1 || (id == RootId && n != 1) {
			return errors.Wrapf(ErrInconsistent, "%s: subsymbol count %d", t.Name(id), n)
		}
	}
	copy(t.numSubsymbols, counts)
	return nil
}
