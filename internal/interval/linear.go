package interval

import (
	"github.com/apfelbeet/crs/internal/regression"
)

// LinearSearch tests one commit at a time, walking backward from the
// Fail boundary, and stops as soon as it has dispatched enough of the
// path to see an unbroken Pass→Fail seam: the commit right after the
// highest-index Pass result with no untested gap before a Fail.
type LinearSearch struct {
	path              []string
	results           []*regression.TestResult
	index             int
	highestValidIndex int
	highestValidHash  string
	validCount        int
	regressionPoint   string
	hasRegression     bool
	jobAwait          map[string]int
	interrupts        []string
}

// NewLinearSearch builds a LinearSearch over path, ordered left (Pass) to
// right (Fail).
func NewLinearSearch(path []string) *LinearSearch {
	if len(path) <= 1 {
		panic("interval: path is too short for a regression point")
	}
	pass, fail := regression.Pass, regression.Fail
	results := make([]*regression.TestResult, len(path))
	results[0] = &pass
	results[len(path)-1] = &fail

	l := &LinearSearch{
		path:              path,
		results:           results,
		index:             len(path) - 2,
		highestValidIndex: 0,
		highestValidHash:  path[0],
		validCount:        1,
		jobAwait:          make(map[string]int),
	}
	if l.index == 0 {
		l.regressionPoint = path[len(path)-1]
		l.hasRegression = true
	}
	return l
}

// AddResult implements regression.RegressionAlgorithm.
func (l *LinearSearch) AddResult(commit string, result regression.TestResult) {
	idx, ok := l.jobAwait[commit]
	if !ok {
		return
	}
	delete(l.jobAwait, commit)
	res := result
	l.results[idx] = &res

	if result == regression.Pass {
		l.validCount++
		if idx > l.highestValidIndex {
			l.highestValidIndex = idx
			l.highestValidHash = commit
		}
	}

	for i := l.highestValidIndex + 1; i < len(l.path); i++ {
		r := l.results[i]
		if r == nil {
			break
		}
		if *r == regression.Fail {
			for c := range l.jobAwait {
				l.interrupts = append(l.interrupts, c)
			}
			l.regressionPoint = l.path[i]
			l.hasRegression = true
			break
		}
	}
}

// NextJob implements regression.RegressionAlgorithm.
func (l *LinearSearch) NextJob(_, _ int) regression.AlgorithmResponse {
	if l.index > 0 && l.validCount < 2 {
		commit := l.path[l.index]
		l.jobAwait[commit] = l.index
		l.index--
		return regression.JobResponse(commit)
	}
	if len(l.jobAwait) == 0 {
		return regression.ErrorResponse("linear search: no jobs left")
	}
	return regression.WaitResponse()
}

// Interrupts implements regression.RegressionAlgorithm.
func (l *LinearSearch) Interrupts() []string {
	i := l.interrupts
	l.interrupts = nil
	return i
}

// Done implements regression.RegressionAlgorithm.
func (l *LinearSearch) Done() bool { return l.hasRegression }

// Results implements regression.RegressionAlgorithm.
func (l *LinearSearch) Results() []regression.RegressionPoint {
	if !l.hasRegression {
		return nil
	}
	return []regression.RegressionPoint{{
		Target:          l.path[len(l.path)-1],
		RegressionPoint: l.regressionPoint,
	}}
}
