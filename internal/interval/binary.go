package interval

import (
	"github.com/apfelbeet/crs/internal/regression"
)

// BinarySearch narrows a commit path by testing an evenly spaced sample
// each round and keeping only the half of the interval that still
// contains the regression point.
type BinarySearch struct {
	path       []string
	target     string
	left       string
	right      string
	step       *step
	candidates []regression.RegressionPoint
	interrupts []string
	done       bool
}

// NewBinarySearch builds a BinarySearch over path, ordered left (Pass) to
// right (Fail). path must contain at least two commits.
func NewBinarySearch(path []string) *BinarySearch {
	if len(path) <= 1 {
		panic("interval: path is too short for a regression point")
	}
	b := &BinarySearch{
		path:   path,
		target: path[len(path)-1],
		left:   path[0],
		right:  path[len(path)-1],
	}
	b.checkDone()
	return b
}

func (b *BinarySearch) checkDone() {
	n, err := lengthOfPath(b.path, b.left, b.right)
	if err != nil {
		panic("interval: " + err.Error())
	}
	if n <= 2 {
		b.done = true
	}
}

// AddResult implements regression.RegressionAlgorithm.
func (b *BinarySearch) AddResult(commit string, result regression.TestResult) {
	if b.step == nil {
		panic("interval: binary search has no active step")
	}
	if !b.step.await[commit] {
		panic("interval: binary search did not expect a result for " + commit)
	}
	delete(b.step.await, commit)

	idx := indexOf(b.step.jobs, commit)
	res := result
	b.step.results[idx] = &res

	if result == regression.Pass {
		// Snapshot the prior best before scanning: jobs is in ascending
		// path order, so whichever of {commit, prevLowest} is matched
		// last is the one with the higher index. Comparing against a
		// live b.step.lowest here would self-interfere the moment the
		// loop overwrites it mid-scan.
		prevLowest, prevHasLower := b.step.lowest, b.step.hasLower
		for _, job := range b.step.jobs {
			if job == commit || (prevHasLower && job == prevLowest) {
				b.step.lowest = job
				b.step.hasLower = true
			}
		}
	}

	b.tryFinishStep()
}

// tryFinishStep scans forward from just past the highest known Pass
// toward the Fail boundary. A Fail found before every sample has reported
// ends the round immediately, draining whatever is still in flight into
// interrupts; Skip results are transparent and the scan continues past
// them. If no Fail turns up, the round only finishes once every sample
// has reported, and right stays where it was. Either way left moves to
// the highest Pass, and every Skip sample is dropped from the path so
// later rounds never sample it again.
func (b *BinarySearch) tryFinishStep() {
	start := 0
	if b.step.hasLower {
		start = indexOf(b.step.jobs, b.step.lowest) + 1
	}

	failIdx := -1
	for i := start; i < len(b.step.jobs); i++ {
		r := b.step.results[i]
		if r == nil {
			return
		}
		if *r == regression.Fail {
			failIdx = i
			break
		}
	}

	if failIdx < 0 && len(b.step.await) != 0 {
		return
	}

	if failIdx >= 0 {
		for c := range b.step.await {
			b.interrupts = append(b.interrupts, c)
		}
		b.right = b.step.jobs[failIdx]
	}

	if b.step.hasLower {
		b.left = b.step.lowest
	}
	kept := make([]string, 0, len(b.path))
	for _, c := range b.path {
		if i := indexOf(b.step.jobs, c); i >= 0 && b.step.results[i] != nil && *b.step.results[i] == regression.Skip {
			continue
		}
		kept = append(kept, c)
	}
	b.path = kept
	b.step = nil
	b.checkDone()
}

// NextJob implements regression.RegressionAlgorithm.
func (b *BinarySearch) NextJob(capacity, _ int) regression.AlgorithmResponse {
	if b.step == nil {
		jobs, err := takeUniformSample(b.path, b.left, b.right, capacity)
		if err != nil {
			return regression.ErrorResponse("binary search: " + err.Error())
		}
		b.step = newStep(jobs)
	}

	job, ok := b.step.popJob()
	if ok {
		return regression.JobResponse(job)
	}
	if len(b.step.await) == 0 {
		return regression.ErrorResponse("binary search: missing next step")
	}
	return regression.WaitResponse()
}

// Interrupts implements regression.RegressionAlgorithm: drains the
// samples abandoned by the most recent early-terminated round.
func (b *BinarySearch) Interrupts() []string {
	i := b.interrupts
	b.interrupts = nil
	return i
}

// Done implements regression.RegressionAlgorithm.
func (b *BinarySearch) Done() bool { return b.done }

// Results implements regression.RegressionAlgorithm.
func (b *BinarySearch) Results() []regression.RegressionPoint {
	regs := append([]regression.RegressionPoint(nil), b.candidates...)
	if b.done {
		regs = append(regs, regression.RegressionPoint{Target: b.target, RegressionPoint: b.right})
	}
	return regs
}
