package interval

import (
	"github.com/apfelbeet/crs/internal/regression"
)

// MultiplyingSearch narrows a commit path by sampling at exponentially
// growing distances from the right (Fail) boundary, so a long path
// collapses toward the regression point in far fewer rounds than a linear
// scan when the point sits close to the known-bad end.
type MultiplyingSearch struct {
	path       []string
	target     string
	left       string
	right      string
	step       *step
	interrupts []string
	done       bool
	iteration  int
}

// NewMultiplyingSearch builds a MultiplyingSearch over path, ordered left
// (Pass) to right (Fail).
func NewMultiplyingSearch(path []string) *MultiplyingSearch {
	if len(path) <= 1 {
		panic("interval: path is too short for a regression point")
	}
	m := &MultiplyingSearch{
		path:   path,
		target: path[len(path)-1],
		left:   path[0],
		right:  path[len(path)-1],
	}
	m.checkDone()
	return m
}

func (m *MultiplyingSearch) checkDone() {
	n, err := lengthOfPath(m.path, m.left, m.right)
	if err != nil {
		panic("interval: " + err.Error())
	}
	if n <= 2 {
		m.done = true
	}
}

// AddResult implements regression.RegressionAlgorithm.
func (m *MultiplyingSearch) AddResult(commit string, result regression.TestResult) {
	if m.step == nil {
		panic("interval: multiplying search has no active step")
	}
	if !m.step.await[commit] {
		panic("interval: multiplying search did not expect a result for " + commit)
	}
	delete(m.step.await, commit)

	idx := indexOf(m.step.jobs, commit)
	res := result
	m.step.results[idx] = &res

	if result == regression.Pass {
		// jobs is in descending path order (index 0 closest to the Fail
		// boundary), so the first match hit while scanning forward is
		// whichever of {commit, current lowest} has the higher index;
		// the break stops the scan there before it can self-interfere.
		for _, job := range m.step.jobs {
			if job == commit || (m.step.hasLower && job == m.step.lowest) {
				m.step.lowest = job
				m.step.hasLower = true
				break
			}
		}
	}

	m.tryFinishStep()
}

// tryFinishStep scans from just past the highest known Pass back toward
// the Fail boundary (decreasing index, since jobs descends from the Fail
// side). A Fail found before every sample has reported ends the round
// immediately, draining whatever is still in flight into interrupts;
// Skip results are transparent and the scan continues past them. If no
// Fail turns up, the round only finishes once every sample has reported,
// matching the prior all-results-known behavior.
func (m *MultiplyingSearch) tryFinishStep() {
	n := len(m.step.jobs)
	start := n - 1
	if m.step.hasLower {
		start = indexOf(m.step.jobs, m.step.lowest) - 1
	}

	failIdx := -1
	for i := start; i >= 0; i-- {
		r := m.step.results[i]
		if r == nil {
			return
		}
		if *r == regression.Fail {
			failIdx = i
			break
		}
	}

	if failIdx < 0 && len(m.step.await) != 0 {
		return
	}

	if failIdx >= 0 {
		for c := range m.step.await {
			m.interrupts = append(m.interrupts, c)
		}
		m.right = m.step.jobs[failIdx]
		m.iteration = 0
	} else if m.step.hasLower {
		idx := indexOf(m.step.jobs, m.step.lowest)
		if idx > 0 {
			m.right = m.step.jobs[idx-1]
		}
		m.iteration = 0
	} else {
		m.right = m.step.jobs[n-1]
		m.iteration++
	}

	if m.step.hasLower {
		m.left = m.step.lowest
	}
	m.step = nil
	m.checkDone()
}

// NextJob implements regression.RegressionAlgorithm.
func (m *MultiplyingSearch) NextJob(capacity, _ int) regression.AlgorithmResponse {
	if m.step == nil {
		jobs, err := takeSamples(m.path, m.left, m.right, capacity, m.iteration)
		if err != nil {
			return regression.ErrorResponse("multiplying search: " + err.Error())
		}
		m.step = newStep(jobs)
	}

	job, ok := m.step.popJob()
	if ok {
		return regression.JobResponse(job)
	}
	if len(m.step.await) == 0 {
		return regression.ErrorResponse("multiplying search: missing next step")
	}
	return regression.WaitResponse()
}

// Interrupts implements regression.RegressionAlgorithm: drains the
// samples abandoned by the most recent early-terminated round.
func (m *MultiplyingSearch) Interrupts() []string {
	i := m.interrupts
	m.interrupts = nil
	return i
}

// Done implements regression.RegressionAlgorithm.
func (m *MultiplyingSearch) Done() bool { return m.done }

// Results implements regression.RegressionAlgorithm.
func (m *MultiplyingSearch) Results() []regression.RegressionPoint {
	if !m.done {
		return nil
	}
	return []regression.RegressionPoint{{Target: m.target, RegressionPoint: m.right}}
}
