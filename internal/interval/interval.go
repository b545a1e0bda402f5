// Package interval implements the three single-path regression search
// strategies RPA can drive once it has narrowed a target down to a
// concrete commit path: BinarySearch (uniform sampling), LinearSearch
// (one commit at a time), and MultiplyingSearch (exponentially spaced
// sampling that favors the boundary closest to the known-bad commit).
// All three satisfy regression.PathAlgorithm and share the same left/right
// boundary invariant: left is the most recent commit known (or assumed)
// to Pass, right is the most recent commit known to Fail, and a path of
// length 2 between them means right IS the regression point.
package interval

import (
	"fmt"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/regression"
)

// step tracks one batch of in-flight samples shared by BinarySearch and
// MultiplyingSearch: a FIFO of hashes still to dispatch, the set still
// awaited, the full sample (in dispatch order) for post-hoc scanning, the
// result recorded for each sample so far (nil until it reports), and the
// best known-Pass sample seen so far in this batch.
type step struct {
	queue    []string
	await    map[string]bool
	jobs     []string
	results  []*regression.TestResult
	lowest   string
	hasLower bool
}

func newStep(jobs []string) *step {
	queue := make([]string, len(jobs))
	copy(queue, jobs)
	return &step{
		queue:   queue,
		await:   make(map[string]bool, len(jobs)),
		jobs:    jobs,
		results: make([]*regression.TestResult, len(jobs)),
	}
}

// popJob removes and returns the next hash to dispatch, taking from the
// end of the queue the way the source algorithm pops its job deque. For
// BinarySearch's ascending sample that is the job nearest the right
// boundary; for MultiplyingSearch's descending sample, the one nearest
// the left.
func (s *step) popJob() (string, bool) {
	if len(s.queue) == 0 {
		return "", false
	}
	job := s.queue[len(s.queue)-1]
	s.queue = s.queue[:len(s.queue)-1]
	s.await[job] = true
	return job, true
}

func indexOf(jobs []string, hash string) int {
	for i, j := range jobs {
		if j == hash {
			return i
		}
	}
	return -1
}

func lengthOfPath(path []string, left, right string) (int, error) {
	l, r := indexOf(path, left), indexOf(path, right)
	if l < 0 || r < 0 {
		return 0, fmt.Errorf("interval: %q or %q not on path", left, right)
	}
	if l > r {
		l, r = r, l
	}
	return r - l + 1, nil
}

// takeUniformSample picks up to sampleSize hashes evenly spaced strictly
// between left and right (exclusive of both), in ascending path order,
// for BinarySearch.
func takeUniformSample(path []string, left, right string, sampleSize int) ([]string, error) {
	l, r := indexOf(path, left), indexOf(path, right)
	if l < 0 || r < 0 {
		return nil, fmt.Errorf("interval: %q or %q not on path", left, right)
	}
	if l > r {
		l, r = r, l
	}

	length := r - l
	ss := length
	if sampleSize+1 < ss {
		ss = sampleSize + 1
	}
	delta := float64(length) / float64(ss)

	var res []string
	current := float64(l)
	for len(res) <= ss {
		idx := int(current + 0.5)
		if idx < 0 || idx >= len(path) {
			return nil, fmt.Errorf("interval: sample index %d out of range", idx)
		}
		res = append(res, path[idx])
		current += delta
	}

	if len(res) >= 2 {
		res = res[1 : len(res)-1]
	} else {
		res = nil
	}
	return res, nil
}

// takeSamples picks exponentially spaced hashes descending from right
// toward left for MultiplyingSearch, growing the step factor geometrically
// with iteration so repeated empty rounds probe progressively closer to
// left.
func takeSamples(path []string, left, right string, sampleSize, iteration int) ([]string, error) {
	l, r := indexOf(path, left), indexOf(path, right)
	if l < 0 || r < 0 {
		return nil, fmt.Errorf("interval: %q or %q not on path", left, right)
	}
	if l > r {
		l, r = r, l
	}

	length := r - l - 1
	if length <= 0 {
		return nil, nil
	}

	var samples []string
	factor := sampleSize + 1
	for factor > 1 {
		sum := 0
		summand := 1
		for i := 0; i < iteration; i++ {
			summand *= factor
		}
		invalid := false
		samples = nil
		for i := 0; i < sampleSize; i++ {
			sum += summand
			summand *= factor

			if i == sampleSize-1 {
				if length < sum {
					sum = length
				}
			} else if sum >= length {
				invalid = true
				break
			}

			idx := r - sum
			if idx < 0 || idx >= len(path) {
				return nil, fmt.Errorf("interval: sample index %d out of range", idx)
			}
			samples = append(samples, path[idx])
		}

		if invalid {
			samples = nil
			factor--
			continue
		}
		break
	}

	if factor == 1 {
		n := sampleSize
		if length < n {
			n = length
		}
		samples = nil
		for i := r - 1; i > r-1-n; i-- {
			samples = append(samples, path[i])
		}
	}

	return samples, nil
}

// pathFromNodeIDs converts a graph path (as produced by pathselect) into
// the hash slice every interval search operates on.
func pathFromNodeIDs(hashOf func(adag.NodeID) string, ids []adag.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = hashOf(id)
	}
	return out
}
