// Package rpa implements the core Regression Point Analysis driver: it
// owns the annotated commit graph, decides which source→target path to
// search next (via a pathselect.PathSelection policy), drives a single
// interval search (regression.PathAlgorithm) to completion over that
// path, optionally hands the candidate off to rpaext.ExtendedSearch for
// verification, and propagates a confirmed regression point to every
// target reachable from it unless propagation is disabled.
package rpa

import (
	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/pathselect"
	"github.com/apfelbeet/crs/internal/regression"
	"github.com/apfelbeet/crs/internal/rpaext"
)

// Settings controls optional RPA behavior.
type Settings struct {
	// Propagate reports a confirmed regression point as the answer for
	// every remaining target reachable from it, instead of only the
	// target the search that found it was working on.
	Propagate bool
	// ExtendedSearch runs Extended RPA's parent-verification pass over
	// every candidate before accepting it.
	ExtendedSearch bool
}

// RPA is a regression.RegressionAlgorithm driving interval searches over
// an annotated commit graph.
type RPA struct {
	commits          *adag.Adag[regression.Node]
	pathSel          pathselect.PathSelection
	newSearch        rpaext.NewSearchFunc
	ordering         *pathselect.Ordering
	remainingTargets map[adag.NodeID]bool
	validNodes       map[adag.NodeID]bool
	currentSearch    regression.PathAlgorithm
	extendedSearch   *rpaext.ExtendedSearch
	extendedReg      *regression.RegressionPoint
	regressions      []regression.RegressionPoint
	settings         Settings
	interrupts       []string
	counter          int
}

// New builds an RPA over graph (as returned by a dvcs.DVCS's commit graph
// walk), annotating every node with its initial result: Pass for sources,
// Fail for targets, unknown otherwise.
func New(
	graph *adag.Adag[struct{}],
	settings Settings,
	pathSel pathselect.PathSelection,
	newSearch rpaext.NewSearchFunc,
) *RPA {
	sourceSet := toSet(graph.Sources)
	targetSet := toSet(graph.Targets)

	commits := adag.FilterMap(graph, func(id adag.NodeID, _ struct{}) (regression.Node, bool) {
		hash := graph.Hash(id)
		isSource, isTarget := sourceSet[id], targetSet[id]
		if isSource && isTarget {
			panic(hash + " is a source as well as a target!")
		}
		var result *regression.TestResult
		switch {
		case isSource:
			result = regression.ResultOrNil(regression.Pass)
		case isTarget:
			result = regression.ResultOrNil(regression.Fail)
		}
		return regression.Node{Hash: hash, Result: result}, true
	})

	validNodes := toSet(commits.Sources)
	remainingTargets := toSet(commits.Targets)

	ordering := pathSel.CalculateDistances(commits, remainingTargets, validNodes)

	return &RPA{
		commits:          commits,
		pathSel:          pathSel,
		newSearch:        newSearch,
		ordering:         ordering,
		remainingTargets: remainingTargets,
		validNodes:       validNodes,
		settings:         settings,
	}
}

func toSet(ids []adag.NodeID) map[adag.NodeID]bool {
	set := make(map[adag.NodeID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// AddResult implements regression.RegressionAlgorithm.
func (r *RPA) AddResult(commit string, result regression.TestResult) {
	idx := r.commits.MustIndex(commit)
	node := r.commits.Node(idx)
	res := result
	node.Result = &res
	r.commits.SetNode(idx, node)

	if result == regression.Pass {
		r.validNodes[idx] = true
	}

	var regPoint *regression.RegressionPoint

	switch {
	case r.extendedSearch != nil:
		r.extendedSearch.AddResult(commit, result)
		r.interrupts = append(r.interrupts, r.extendedSearch.Interrupts()...)
	case r.currentSearch != nil:
		r.currentSearch.AddResult(commit, result)
		r.interrupts = append(r.interrupts, r.currentSearch.Interrupts()...)
		if r.currentSearch.Done() {
			tempReg := r.currentSearch.Results()[0]
			r.counter++
			if r.settings.ExtendedSearch {
				r.extendedReg = &tempReg
				r.extendedSearch = rpaext.New(r.commits, tempReg, r.validNodes, r.pathSel, r.newSearch)
			} else {
				regPoint = &tempReg
			}
			r.currentSearch = nil
		}
	}

	for r.extendedSearch != nil {
		if !r.extendedSearch.Done() {
			break
		}
		regs := r.extendedSearch.Results()
		if len(regs) == 0 {
			regPoint = r.extendedReg
			r.extendedSearch = nil
			break
		}
		newReg := regs[0]
		r.counter++
		r.extendedReg = &newReg
		r.extendedSearch = rpaext.New(r.commits, newReg, r.validNodes, r.pathSel, r.newSearch)
	}

	if regPoint != nil {
		if r.settings.Propagate {
			r.propagateResults(r.commits.MustIndex(regPoint.RegressionPoint))
		} else {
			delete(r.remainingTargets, r.commits.MustIndex(regPoint.Target))
			r.regressions = append(r.regressions, *regPoint)
		}
	}

	if result == regression.Pass {
		r.ordering = r.pathSel.CalculateDistances(r.commits, r.remainingTargets, r.validNodes)
	}
}

// NextJob implements regression.RegressionAlgorithm.
func (r *RPA) NextJob(capacity, expectedCapacity int) regression.AlgorithmResponse {
	if r.currentSearch == nil && r.extendedSearch == nil {
		r.counter++
		var start, end adag.NodeID
		found := false
		for !r.ordering.Empty() {
			key, _, ok := r.ordering.Pop()
			if !ok {
				break
			}
			if r.remainingTargets[key.Target] {
				start, end = key.Source, key.Target
				found = true
				break
			}
		}
		if !found {
			return regression.ErrorResponse("rpa: no relevant path was found")
		}

		pathIDs := r.pathSel.ExtractPath(r.commits, start, end)
		hashPath := make([]string, len(pathIDs))
		for i, id := range pathIDs {
			hashPath[i] = r.commits.Hash(id)
		}
		r.currentSearch = r.newSearch(hashPath)
	}

	if r.currentSearch != nil {
		return r.currentSearch.NextJob(capacity, expectedCapacity)
	}
	if r.extendedSearch != nil {
		return r.extendedSearch.NextJob(capacity, expectedCapacity)
	}
	return regression.ErrorResponse("rpa: no active search")
}

// Interrupts implements regression.RegressionAlgorithm.
func (r *RPA) Interrupts() []string {
	i := r.interrupts
	r.interrupts = nil
	return i
}

// Done implements regression.RegressionAlgorithm.
func (r *RPA) Done() bool {
	return len(r.remainingTargets) == 0
}

// Results implements regression.RegressionAlgorithm.
func (r *RPA) Results() []regression.RegressionPoint {
	return r.regressions
}

// propagateResults walks forward from a confirmed regression point and
// reports it as the answer for every remaining target it reaches.
func (r *RPA) propagateResults(regressionID adag.NodeID) {
	regressionHash := r.commits.Hash(regressionID)
	queue := []adag.NodeID{regressionID}
	visited := map[adag.NodeID]bool{regressionID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if r.remainingTargets[current] {
			delete(r.remainingTargets, current)
			r.regressions = append(r.regressions, regression.RegressionPoint{
				Target:          r.commits.Hash(current),
				RegressionPoint: regressionHash,
			})
		}

		for _, next := range r.commits.Children(current) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
}
