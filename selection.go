package splitmerge

import (
	"container/heap"
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// candidateHeap is a max-heap of candidates, the best candidate on top
type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].better(h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// BudgetPolicy limits the number of merges of a round to a fraction of all
// candidates
type BudgetPolicy struct {
	Rate float64
}

// MergeCount returns floor(total * rate). Rates above 1 are clamped to 1,
// rates not above 0 are rejected
func (p BudgetPolicy) MergeCount(total int) (int, error) {
	rate := p.Rate
	if err := checkRate(rate); err != nil {
		return 0, err
	}
	if rate > 1 {
		glog.Warningf("merge rate %g clamped to 1.0", rate)
		rate = 1
	}
	count := int(math.Floor(float64(total) * rate))
	if count > total {
		count = total
	}
	return count, nil
}

func checkRate(rate float64) error {
	if math.IsNaN(rate) || rate <= 0 {
		return errors.Wrapf(ErrInvalidRate, "rate %g", rate)
	}
	return nil
}

// EarlyStopPolicy stops the selection at the first candidate whose ratio is
// below Threshold. With KeepBoundary that candidate is still merged
type EarlyStopPolicy struct {
	Enabled      bool    `yaml:"enabled"`
	Threshold    float64 `yaml:"threshold"`
	KeepBoundary bool    `yaml:"keep_boundary"`
}

// accept tells whether c is merged and whether the selection stops after it
func (p EarlyStopPolicy) accept(c Candidate) (take, stop bool) {
	if !p.Enabled || c.Ratio >= p.Threshold {
		return true, false
	}
	return p.KeepBoundary, true
}

// SelectCandidates pops the best candidates from ranked until the budget is
// spent or the early stop policy fires. It returns the selected candidates
// and the number of merges the budget allowed
func SelectCandidates(ranked []Candidate, budget BudgetPolicy, stop EarlyStopPolicy) ([]Candidate, int, error) {
	mergeCount, err := budget.MergeCount(len(ranked))
	if err != nil {
		return nil, 0, err
	}

	h := make(candidateHeap, len(ranked))
	copy(h, ranked)
	heap.Init(&h)

	selected := []Candidate{}
	for len(selected) < mergeCount && h.Len() > 0 {
		c := heap.Pop(&h).(Candidate)
		take, halt := stop.accept(c)
		if take {
			selected = append(selected, c)
		}
		if halt {
			glog.Infof(
				"stopped after %d merges, candidate ratio %g below %g",
				len(selected),
				c.Ratio,
				stop.Threshold)
			break
		}
	}
	return selected, mergeCount, nil
}
