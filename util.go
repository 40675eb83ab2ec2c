package splitmerge

import (
	"github.com/pkg/errors"
)

// Errors returned by a merge round. Use errors.Cause to compare
var (
	// ErrMissingScores means a node has no inner/outer probabilities
	ErrMissingScores = errors.New("missing inside-outside statistics")

	// ErrInconsistent means a rule or a node disagrees with the symbol table
	ErrInconsistent = errors.New("structural inconsistency")

	// ErrInvalidRate means the merge rate is not usable
	ErrInvalidRate = errors.New("invalid merge rate")

	// ErrStaleCounts means the parent counts were invalidated and not
	// recomputed yet
	ErrStaleCounts = errors.New("parent counts are stale")

	// ErrDegenerate means a probability that must be positive is not
	ErrDegenerate = errors.New("degenerate probability")
)

// pairStart returns the even index of the subsymbol pair that i belongs to
func pairStart(i int) int {
	return i &^ 1
}

// subsymbolMapping returns, for a dimension of size n where the pairs
// starting at merged collapse, the new index of every old index and the new
// size of the dimension
func subsymbolMapping(n int, merged []int) ([]int, int) {
	isMerged := map[int]bool{}
	for _, p := range merged {
		isMerged[p] = true
	}
	mapping := make([]int, n)
	next := 0
	for i := 0; i < n; i++ {
		mapping[i] = next
		if isMerged[i] && i+1 < n {
			i++
			mapping[i] = next
		}
		next++
	}
	return mapping, next
}
