package splitmerge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Symbol represents a symbol in a rule head, both terminal and non-terminal.
// Non-terminals are written in angle brackets like <NP>
type Symbol string

// The build-in root symbol, it always has the id RootId
const RootSymbol = Symbol("<root>")

var symbolPattern = regexp.MustCompile("^(<[-$.,:'`\\w]+>|[^<>\"|\\s]+)$")

// IsValid checks the symbol string is valid
func (s Symbol) IsValid() bool {
	return symbolPattern.MatchString(string(s))
}

// IsTerminal checks if it is a terminal symbol, assuming s.IsValid() == true
func (s Symbol) IsTerminal() bool {
	return s[0] != '<'
}

// RuleHead is the textual identity of a rule, like
//
//	<S> ::= <NP> <VP>
//	<NP> ::= <NN>
//	<NN> ::= dog
type RuleHead struct {
	Left  Symbol
	Right []Symbol
}

// ParseRuleHead parses a rule head from string. A head has one nonterminal
// on the left and either two nonterminals, one nonterminal or one terminal
// on the right
func ParseRuleHead(text string) (*RuleHead, error) {
	fields := strings.Split(text, "::=")
	if len(fields) != 2 {
		return nil, errors.Errorf("ParseRuleHead: unexpected number of ::= token in '%s'", text)
	}

	// Left part
	head := &RuleHead{Left: Symbol(strings.TrimSpace(fields[0]))}
	if !head.Left.IsValid() || head.Left.IsTerminal() {
		return nil, errors.Errorf("ParseRuleHead: '%s': nonterminal symbol expected in the left", text)
	}

	// Right part
	for _, symbolString := range strings.Fields(fields[1]) {
		symbol := Symbol(symbolString)
		if !symbol.IsValid() {
			return nil, errors.Errorf("ParseRuleHead: unexpected '%s' in '%s'", symbolString, text)
		}
		head.Right = append(head.Right, symbol)
	}

	switch {
	case len(head.Right) == 1:
	case len(head.Right) == 2 && !head.Right[0].IsTerminal() && !head.Right[1].IsTerminal():
	default:
		return nil, errors.Errorf("ParseRuleHead: '%s' is not a binary, unary or lexical rule", text)
	}
	return head, nil
}

// String converts rule head to string format
func (h *RuleHead) String() string {
	symbols := []string{}
	for _, symbol := range h.Right {
		symbols = append(symbols, string(symbol))
	}
	return fmt.Sprintf("%s ::= %s", h.Left, strings.Join(symbols, " "))
}

// RuleKind tells the shape of a rule
type RuleKind int

const (
	// A -> B C
	Binary RuleKind = iota

	// A -> B
	Unary

	// A -> word
	Lexical
)

func (k RuleKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Unary:
		return "unary"
	case Lexical:
		return "lexical"
	}
	return fmt.Sprintf("RuleKind(%d)", int(k))
}

// Rule is a latent-annotated rule. Probs is indexed by the subsymbols of the
// symbols returned by Symbols(), in that order
type Rule struct {
	Kind RuleKind

	// Symbol id in the left of rule
	Parent int

	// Symbol ids in the right of rule. Right is only used by binary rules,
	// Left is unused by lexical rules
	Left  int
	Right int

	// Terminal word of a lexical rule
	Word string

	Probs *Table
}

// NewBinaryRule creates parent -> left right with a zero table
func NewBinaryRule(symbols *SymbolTable, parent, left, right int) *Rule {
	return &Rule{
		Kind:   Binary,
		Parent: parent,
		Left:   left,
		Right:  right,
		Probs: NewTable(
			symbols.NumSubsymbols(parent),
			symbols.NumSubsymbols(left),
			symbols.NumSubsymbols(right)),
	}
}

// NewUnaryRule creates parent -> child with a zero table
func NewUnaryRule(symbols *SymbolTable, parent, child int) *Rule {
	return &Rule{
		Kind:   Unary,
		Parent: parent,
		Left:   child,
		Probs:  NewTable(symbols.NumSubsymbols(parent), symbols.NumSubsymbols(child)),
	}
}

// NewLexicalRule creates parent -> word with a zero table
func NewLexicalRule(symbols *SymbolTable, parent int, word string) *Rule {
	return &Rule{
		Kind:   Lexical,
		Parent: parent,
		Word:   word,
		Probs:  NewTable(symbols.NumSubsymbols(parent)),
	}
}

// NewRuleFromHead creates a rule with a zero table from a parsed head,
// adding unknown nonterminals to symbols
func NewRuleFromHead(symbols *SymbolTable, head *RuleHead) *Rule {
	parent := symbols.Add(string(head.Left))
	if len(head.Right) == 2 {
		return NewBinaryRule(
			symbols,
			parent,
			symbols.Add(string(head.Right[0])),
			symbols.Add(string(head.Right[1])))
	}
	if head.Right[0].IsTerminal() {
		return NewLexicalRule(symbols, parent, string(head.Right[0]))
	}
	return NewUnaryRule(symbols, parent, symbols.Add(string(head.Right[0])))
}

// Symbols returns the symbol of each subsymbol dimension of the table
func (r *Rule) Symbols() []int {
	switch r.Kind {
	case Binary:
		return []int{r.Parent, r.Left, r.Right}
	case Unary:
		return []int{r.Parent, r.Left}
	}
	return []int{r.Parent}
}

// Head converts the rule back to its textual identity
func (r *Rule) Head(symbols *SymbolTable) *RuleHead {
	head := &RuleHead{Left: Symbol(symbols.Name(r.Parent))}
	switch r.Kind {
	case Binary:
		head.Right = []Symbol{Symbol(symbols.Name(r.Left)), Symbol(symbols.Name(r.Right))}
	case Unary:
		head.Right = []Symbol{Symbol(symbols.Name(r.Left))}
	default:
		head.Right = []Symbol{Symbol(r.Word)}
	}
	return head
}

// ruleKey is the identity of a rule inside a grammar
type ruleKey struct {
	kind   RuleKind
	parent int
	left   int
	right  int
	word   string
}

func (r *Rule) key() ruleKey {
	return ruleKey{r.Kind, r.Parent, r.Left, r.Right, r.Word}
}

// check verifies that the table shape matches the subsymbol counts in
// symbols
func (r *Rule) check(symbols *SymbolTable) error {
	if r.Probs == nil {
		return errors.Wrapf(ErrInconsistent, "%s rule without table", r.Kind)
	}
	dims := r.Symbols()
	if len(r.Probs.Dims) != len(dims) {
		return errors.Wrapf(
			ErrInconsistent,
			"%s rule has a %d dimensional table",
			r.Kind,
			len(r.Probs.Dims))
	}
	for d, symbol := range dims {
		if !symbols.Contains(symbol) {
			return errors.Wrapf(ErrInconsistent, "%s rule references symbol %d", r.Kind, symbol)
		}
		if r.Probs.Dims[d] != symbols.NumSubsymbols(symbol) {
			return errors.Wrapf(
				ErrInconsistent,
				"%s: dimension %d has %d subsymbols, %s has %d",
				r.Head(symbols),
				d,
				r.Probs.Dims[d],
				symbols.Name(symbol),
				symbols.NumSubsymbols(symbol))
		}
	}
	if len(r.Probs.Data) != r.Probs.size() {
		return errors.Wrapf(ErrInconsistent, "%s: table data does not match %v", r.Head(symbols), r.Probs.Dims)
	}
	if r.Kind == Lexical && r.Word == "" {
		return errors.Wrapf(ErrInconsistent, "lexical rule of %s without word", symbols.Name(r.Parent))
	}
	return nil
}

// merge collapses the table of r according to the merge instructions. Along
// the parent dimension a merged pair is combined with weights, along child
// dimensions the pair is added
func (r *Rule) merge(instructions map[int][]int, weights MergeWeights) (*Table, bool, error) {
	symbols := r.Symbols()
	merges := make([]*DimMerge, len(symbols))
	touched := false
	for d, symbol := range symbols {
		pairs := instructions[symbol]
		if len(pairs) == 0 {
			continue
		}
		touched = true
		m := &DimMerge{Pairs: pairs}
		if d == 0 {
			m.Weights = weights[symbol]
		}
		merges[d] = m
	}
	if !touched {
		return r.Probs, false, nil
	}
	collapsed, err := r.Probs.Collapse(merges)
	return collapsed, true, err
}
