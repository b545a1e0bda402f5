// Package rpaext implements Extended RPA: once plain RPA reports a
// candidate regression point, it can still be wrong if one of the
// candidate's untested parents turns out to Fail too (the true regression
// point then lies further back). ExtendedSearch first probes the
// candidate's parents (the "parent-verification" phase); if a parent is
// already known to Fail, or a probe discovers one, it narrows again from
// the nearest valid commit to that parent (the "subsearch" phase) and
// repeats until no Fail parent remains.
package rpaext

import (
	"fmt"
	"strings"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/pathselect"
	"github.com/apfelbeet/crs/internal/regression"
)

// NewSearchFunc builds a fresh single-path search (binary, linear, or
// multiplying) over the given hash path, ordered left (Pass) to right
// (Fail).
type NewSearchFunc func(path []string) regression.PathAlgorithm

// parentsSearch tracks the parent-verification phase: parents still to
// dispatch and parents currently in flight.
type parentsSearch struct {
	parents      []string
	parentsAwait map[string]bool
}

// ExtendedSearch drives one regression candidate through parent
// verification and, if needed, a subsearch toward an earlier Fail parent.
type ExtendedSearch struct {
	graph      *adag.Adag[regression.Node]
	pathSel    pathselect.PathSelection
	newSearch  NewSearchFunc
	parents    *parentsSearch
	sub        regression.PathAlgorithm
	interrupts []string
	regression string
	hasReg     bool
	target     string
	validNodes map[adag.NodeID]bool
}

// New builds an ExtendedSearch for the candidate regression point reg,
// probing its parents on graph. validNodes is owned by the caller and
// mutated in place as Pass results arrive.
func New(
	graph *adag.Adag[regression.Node],
	reg regression.RegressionPoint,
	validNodes map[adag.NodeID]bool,
	pathSel pathselect.PathSelection,
	newSearch NewSearchFunc,
) *ExtendedSearch {
	regIndex := graph.MustIndex(reg.RegressionPoint)

	queue := []adag.NodeID{regIndex}
	queued := map[adag.NodeID]bool{regIndex: true}

	var cachedParent adag.NodeID
	hasCachedParent := false
	var untestedParents []string

	for len(queue) > 0 && !hasCachedParent {
		current := queue[0]
		queue = queue[1:]

		for _, parentID := range graph.Parents(current) {
			node := graph.Node(parentID)
			if node.Result == nil {
				untestedParents = append(untestedParents, node.Hash)
				continue
			}
			switch *node.Result {
			case regression.Fail:
				cachedParent = parentID
				hasCachedParent = true
			case regression.Skip:
				if !queued[parentID] {
					queued[parentID] = true
					queue = append(queue, parentID)
				}
			case regression.Pass:
			}
			if hasCachedParent {
				break
			}
		}
	}

	es := &ExtendedSearch{
		graph:      graph,
		pathSel:    pathSel,
		newSearch:  newSearch,
		target:     reg.Target,
		validNodes: validNodes,
	}

	switch {
	case hasCachedParent:
		es.sub = createSub(graph, graph.Hash(cachedParent), validNodes, pathSel, newSearch)
		es.checkSubDone()
	case len(untestedParents) == 0:
		// No untested parents and no cached Fail parent: the candidate
		// stands as-is.
	default:
		es.parents = &parentsSearch{
			parents:      untestedParents,
			parentsAwait: make(map[string]bool),
		}
	}

	return es
}

func (e *ExtendedSearch) checkSubDone() {
	if e.sub != nil && e.sub.Done() {
		reg := e.sub.Results()[0]
		e.regression = reg.RegressionPoint
		e.hasReg = true
		e.sub = nil
	}
}

// createSub builds a fresh single-path search from the nearest valid node
// to target, using pathSel to pick which valid node is "nearest".
func createSub(
	graph *adag.Adag[regression.Node],
	target string,
	validNodes map[adag.NodeID]bool,
	pathSel pathselect.PathSelection,
	newSearch NewSearchFunc,
) regression.PathAlgorithm {
	targetIndex := graph.MustIndex(target)
	targets := map[adag.NodeID]bool{targetIndex: true}

	ordering := pathSel.CalculateDistances(graph, targets, validNodes)
	key, _, ok := ordering.Pop()
	if !ok {
		panic("rpaext: no path found toward " + target)
	}

	path := pathSel.ExtractPath(graph, key.Source, targetIndex)
	hashPath := make([]string, len(path))
	for i, id := range path {
		hashPath[i] = graph.Hash(id)
	}

	return newSearch(hashPath)
}

// AddResult implements regression.RegressionAlgorithm.
func (e *ExtendedSearch) AddResult(commit string, result regression.TestResult) {
	idx := e.graph.MustIndex(commit)
	node := e.graph.Node(idx)
	r := result
	node.Result = &r
	e.graph.SetNode(idx, node)

	if result == regression.Pass {
		e.validNodes[idx] = true
	}

	var newTarget string
	hasNewTarget := false

	if e.parents != nil && e.parents.parentsAwait[commit] {
		delete(e.parents.parentsAwait, commit)

		queue := []string{commit}
		visited := map[string]bool{}
		for _, p := range e.parents.parents {
			visited[p] = true
		}
		for p := range e.parents.parentsAwait {
			visited[p] = true
		}

	probe:
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			currentIndex := e.graph.MustIndex(current)
			res := e.graph.Node(currentIndex).Result

			switch {
			case res == nil:
				e.parents.parents = append(e.parents.parents, current)
			case *res == regression.Pass:
			case *res == regression.Fail:
				newTarget = current
				hasNewTarget = true
				for p := range e.parents.parentsAwait {
					e.interrupts = append(e.interrupts, p)
				}
				break probe
			case *res == regression.Skip:
				for _, parentID := range e.graph.Parents(currentIndex) {
					parentHash := e.graph.Hash(parentID)
					if !visited[parentHash] {
						visited[parentHash] = true
						queue = append(queue, parentHash)
					}
				}
			}
		}
	} else if e.sub != nil {
		e.sub.AddResult(commit, result)
		e.interrupts = append(e.interrupts, e.sub.Interrupts()...)
		e.checkSubDone()
	}

	if e.parents != nil && len(e.parents.parents) == 0 && len(e.parents.parentsAwait) == 0 {
		e.parents = nil
	}

	if hasNewTarget {
		e.parents = nil
		e.sub = createSub(e.graph, newTarget, e.validNodes, e.pathSel, e.newSearch)
		e.checkSubDone()
	}
}

// NextJob implements regression.RegressionAlgorithm.
func (e *ExtendedSearch) NextJob(capacity, expectedCapacity int) regression.AlgorithmResponse {
	if e.parents != nil {
		if len(e.parents.parents) == 0 {
			if len(e.parents.parentsAwait) == 0 {
				return regression.ErrorResponse("extended search: unexpected request")
			}
			return regression.WaitResponse()
		}
		hash := e.parents.parents[0]
		e.parents.parents = e.parents.parents[1:]
		e.parents.parentsAwait[hash] = true
		return regression.JobResponse(hash)
	}
	if e.sub != nil {
		return e.sub.NextJob(capacity, expectedCapacity)
	}
	return regression.ErrorResponse("extended search: unexpected request")
}

// Interrupts implements regression.RegressionAlgorithm.
func (e *ExtendedSearch) Interrupts() []string {
	i := e.interrupts
	e.interrupts = nil
	return i
}

// Done implements regression.RegressionAlgorithm: true once neither the
// parent-verification phase nor a subsearch is active.
func (e *ExtendedSearch) Done() bool {
	return e.parents == nil && e.sub == nil
}

// Results implements regression.RegressionAlgorithm. An empty result means
// the original candidate was confirmed; the caller should keep it as-is.
func (e *ExtendedSearch) Results() []regression.RegressionPoint {
	if !e.hasReg {
		return nil
	}
	return []regression.RegressionPoint{{Target: e.target, RegressionPoint: e.regression}}
}

// Display renders the current parent-probe state, for per-iteration log
// summaries.
func (e *ExtendedSearch) Display() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "target: %s\n", e.target)
	if e.hasReg {
		fmt.Fprintf(&sb, "candidate regression point: %s\n", e.regression)
	}
	switch {
	case e.parents != nil:
		fmt.Fprintf(&sb, "phase: parent-verification (%d queued, %d in flight)\n",
			len(e.parents.parents), len(e.parents.parentsAwait))
	case e.sub != nil:
		sb.WriteString("phase: subsearch toward an earlier fail parent\n")
	default:
		sb.WriteString("phase: done\n")
	}
	return sb.String()
}
